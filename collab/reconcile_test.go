package collab

import (
	"testing"

	"boardsync/core"
)

func never(string) bool { return false }

func only(ids ...string) func(string) bool {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

func rect(id string, x float64) core.CanvasObject {
	return core.CanvasObject{ID: id, Type: core.TypeRectangle, X: x, Width: 10, Height: 10, Visible: true}
}

func byID(objects []core.CanvasObject) map[string]core.CanvasObject {
	m := make(map[string]core.CanvasObject, len(objects))
	for _, o := range objects {
		m[o.ID] = o
	}
	return m
}

func TestReconcileRemoteWinsWhenIdle(t *testing.T) {
	local := []core.CanvasObject{rect("r1", 10), rect("r2", 20)}
	remote := []core.CanvasObject{rect("r1", 99), rect("r2", 20)}

	merged := byID(Reconcile(local, remote, never))

	if merged["r1"].X != 99 {
		t.Errorf("Expected remote position 99 for idle object, got %v", merged["r1"].X)
	}
	if merged["r2"].X != 20 {
		t.Errorf("Expected r2 unchanged, got %v", merged["r2"].X)
	}
}

func TestReconcileLocalWinsDuringManipulation(t *testing.T) {
	// Mid-drag the local copy is ahead of any snapshot in flight; a
	// stale remote position must not yank the object backwards.
	local := []core.CanvasObject{rect("r1", 150), rect("r2", 20)}
	remote := []core.CanvasObject{rect("r1", 100), rect("r2", 25)}

	merged := byID(Reconcile(local, remote, only("r1")))

	if merged["r1"].X != 150 {
		t.Errorf("Expected manipulated r1 to keep local position 150, got %v", merged["r1"].X)
	}
	if merged["r2"].X != 25 {
		t.Errorf("Expected idle r2 to take remote position 25, got %v", merged["r2"].X)
	}
}

func TestReconcileRemoteDeleteRemovesIdleObject(t *testing.T) {
	local := []core.CanvasObject{rect("r1", 10), rect("r2", 20)}
	remote := []core.CanvasObject{rect("r2", 20)}

	merged := Reconcile(local, remote, never)

	if len(merged) != 1 || merged[0].ID != "r2" {
		t.Errorf("Expected only r2 to survive remote delete, got %v", merged)
	}
}

func TestReconcileRetainsManipulatedLocalOnly(t *testing.T) {
	// An optimistic create under manipulation has not round-tripped yet;
	// it must survive snapshots that do not contain it.
	local := []core.CanvasObject{rect("new1", 5)}
	remote := []core.CanvasObject{rect("r1", 10)}

	merged := byID(Reconcile(local, remote, only("new1")))

	if _, ok := merged["new1"]; !ok {
		t.Error("Expected manipulated local-only object to be retained")
	}
	if _, ok := merged["r1"]; !ok {
		t.Error("Expected remote object to be present")
	}
}

func TestReconcileManipulatedButMissingEverywhere(t *testing.T) {
	// A marked ID present in neither set stays gone.
	local := []core.CanvasObject{rect("r1", 10)}
	remote := []core.CanvasObject{rect("r1", 10)}

	merged := Reconcile(local, remote, only("ghost"))

	if len(merged) != 1 {
		t.Errorf("Expected one object, got %d", len(merged))
	}
}

func TestReconcileManipulatedWithoutLocalCopyFallsBackToRemote(t *testing.T) {
	remote := []core.CanvasObject{rect("r1", 42)}

	merged := byID(Reconcile(nil, remote, only("r1")))

	if merged["r1"].X != 42 {
		t.Errorf("Expected remote copy when no local exists, got %v", merged["r1"].X)
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	if got := Reconcile(nil, nil, never); len(got) != 0 {
		t.Errorf("Expected empty merge, got %v", got)
	}

	remote := []core.CanvasObject{rect("r1", 1)}
	if got := Reconcile(nil, remote, never); len(got) != 1 {
		t.Errorf("Expected remote passthrough on empty local, got %v", got)
	}
}

func TestReconcileDoesNotMutateInputs(t *testing.T) {
	local := []core.CanvasObject{rect("r1", 150)}
	remote := []core.CanvasObject{rect("r1", 100), rect("r2", 20)}

	Reconcile(local, remote, only("r1"))

	if local[0].X != 150 || remote[0].X != 100 {
		t.Error("Expected Reconcile to leave its inputs untouched")
	}
}
