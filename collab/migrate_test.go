package collab

import (
	"testing"

	"boardsync/core"
)

func TestNeedsMigrationCleanSet(t *testing.T) {
	objects := []core.CanvasObject{
		{ID: "g1", Type: core.TypeGroup, Visible: true},
		{ID: "r1", Type: core.TypeRectangle, ParentID: "g1", Visible: true},
		{ID: "r2", Type: core.TypeRectangle, Visible: true},
	}

	if NeedsMigration(objects) {
		t.Error("Expected no migration for a set that only parents into groups")
	}
}

func TestNeedsMigrationNonGroupParent(t *testing.T) {
	objects := []core.CanvasObject{
		{ID: "a", Type: core.TypeGroup, Visible: true},
		{ID: "b", Type: core.TypeRectangle, ParentID: "c", Visible: true},
		{ID: "c", Type: core.TypeRectangle, Visible: true},
	}

	if !NeedsMigration(objects) {
		t.Error("Expected migration when a rectangle is used as a parent")
	}
}

func TestNeedsMigrationDanglingParent(t *testing.T) {
	objects := []core.CanvasObject{
		{ID: "r1", Type: core.TypeRectangle, ParentID: "gone", Visible: true},
	}

	if !NeedsMigration(objects) {
		t.Error("Expected migration when a parentId points at a missing object")
	}
}

func TestFlattenPromotesInvalidChildren(t *testing.T) {
	objects := []core.CanvasObject{
		{ID: "a", Type: core.TypeGroup, Visible: true},
		{ID: "b", Type: core.TypeRectangle, ParentID: "c", Visible: true},
		{ID: "c", Type: core.TypeRectangle, Visible: true},
		{ID: "d", Type: core.TypeText, ParentID: "a", Visible: true},
	}

	out, flattened := Flatten(objects)

	if len(flattened) != 1 || flattened[0] != "b" {
		t.Errorf("Expected exactly [b] flattened, got %v", flattened)
	}

	m := byID(out)
	if m["b"].ParentID != "" {
		t.Errorf("Expected b promoted to root, got parent %q", m["b"].ParentID)
	}
	if m["d"].ParentID != "a" {
		t.Errorf("Expected valid group membership of d preserved, got %q", m["d"].ParentID)
	}
}

func TestFlattenIdempotent(t *testing.T) {
	objects := []core.CanvasObject{
		{ID: "r1", Type: core.TypeRectangle, ParentID: "gone", Visible: true},
		{ID: "g1", Type: core.TypeGroup, Visible: true},
		{ID: "r2", Type: core.TypeRectangle, ParentID: "g1", Visible: true},
	}

	once, first := Flatten(objects)
	twice, second := Flatten(once)

	if len(first) != 1 || first[0] != "r1" {
		t.Errorf("Expected [r1] flattened on first pass, got %v", first)
	}
	if len(second) != 0 {
		t.Errorf("Expected second pass to change nothing, got %v", second)
	}
	if !core.ObjectsEqual(once, twice) {
		t.Error("Expected flattened set to be a fixed point")
	}

	if NeedsMigration(once) {
		t.Error("Expected flattened set to no longer need migration")
	}
}

func TestFlattenGroupLoopTerminates(t *testing.T) {
	// Groups parenting each other form a loop; the sweep must still
	// finish, and since both parents are groups nothing is rewritten.
	objects := []core.CanvasObject{
		{ID: "g1", Type: core.TypeGroup, ParentID: "g2", Visible: true},
		{ID: "g2", Type: core.TypeGroup, ParentID: "g1", Visible: true},
	}

	out, flattened := Flatten(objects)

	if len(flattened) != 0 {
		t.Errorf("Expected group-to-group parents untouched, got %v", flattened)
	}
	if len(out) != 2 {
		t.Errorf("Expected both objects returned, got %d", len(out))
	}
}

func TestFlattenLeavesInputAlone(t *testing.T) {
	objects := []core.CanvasObject{
		{ID: "b", Type: core.TypeRectangle, ParentID: "c", Visible: true},
	}

	Flatten(objects)

	if objects[0].ParentID != "c" {
		t.Error("Expected Flatten to return a corrected copy, not mutate its input")
	}
}
