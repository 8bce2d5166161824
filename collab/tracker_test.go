package collab

import (
	"fmt"
	"sort"
	"testing"
)

func TestTrackerMarkUnmark(t *testing.T) {
	tr := NewTracker()

	if tr.IsManipulated("r1") {
		t.Error("Expected fresh tracker to report nothing manipulated")
	}

	tr.Mark("r1")
	if !tr.IsManipulated("r1") {
		t.Error("Expected r1 to be manipulated after Mark")
	}

	tr.Unmark("r1")
	if tr.IsManipulated("r1") {
		t.Error("Expected r1 to be released after Unmark")
	}
}

func TestTrackerIdempotent(t *testing.T) {
	tr := NewTracker()

	tr.Mark("r1")
	tr.Mark("r1")
	if got := len(tr.Active()); got != 1 {
		t.Errorf("Expected one active ID after double Mark, got %d", got)
	}

	tr.Unmark("r1")
	tr.Unmark("r1")
	tr.Unmark("never-marked")
	if got := len(tr.Active()); got != 0 {
		t.Errorf("Expected empty active set, got %d entries", got)
	}
}

func TestTrackerActiveSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.Mark("a")
	tr.Mark("b")

	ids := tr.Active()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected active [a b], got %v", ids)
	}

	// The returned slice is a copy; mutating it must not touch the set.
	ids[0] = "z"
	if !tr.IsManipulated("a") {
		t.Error("Expected tracker state to be unaffected by caller mutation")
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	done := make(chan bool)

	for i := 0; i < 8; i++ {
		go func(n int) {
			id := fmt.Sprintf("obj-%d", n)
			for j := 0; j < 200; j++ {
				tr.Mark(id)
				tr.IsManipulated(id)
				tr.Active()
				tr.Unmark(id)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 8; i++ {
		<-done
	}

	if got := len(tr.Active()); got != 0 {
		t.Errorf("Expected empty active set after all workers released, got %d", got)
	}
}
