package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"boardsync/core"
)

func newTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "boardsync_test.db"))
}

func rect(id string, x float64) *core.CanvasObject {
	return &core.CanvasObject{ID: id, Type: core.TypeRectangle, X: x, Width: 10, Height: 10, Visible: true}
}

func TestBatchUpdateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.BatchUpdate(ctx, "p1", map[string]*core.CanvasObject{
		"r1": rect("r1", 10),
		"r2": rect("r2", 20),
	})
	if err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}

	objects, err := store.FetchAll(ctx, "p1")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("Expected 2 objects, got %d", len(objects))
	}

	for _, obj := range objects {
		if obj.Type != core.TypeRectangle {
			t.Errorf("Expected rectangle, got %v", obj.Type)
		}
	}
}

func TestBatchUpdateUpsertAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.BatchUpdate(ctx, "p1", map[string]*core.CanvasObject{"r1": rect("r1", 10), "r2": rect("r2", 20)}); err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}
	if err := store.BatchUpdate(ctx, "p1", map[string]*core.CanvasObject{"r1": rect("r1", 99), "r2": nil}); err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}

	objects, err := store.FetchAll(ctx, "p1")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(objects) != 1 || objects[0].ID != "r1" || objects[0].X != 99 {
		t.Errorf("Expected only r1 at x=99, got %v", objects)
	}
}

func TestFetchAllUnknownProject(t *testing.T) {
	store := newTestStore(t)

	objects, err := store.FetchAll(context.Background(), "nope")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("Expected empty set, got %v", objects)
	}
}

func TestListProjectsAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.BatchUpdate(ctx, "p1", map[string]*core.CanvasObject{"r1": rect("r1", 1)}); err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}
	if err := store.BatchUpdate(ctx, "p2", map[string]*core.CanvasObject{"r1": rect("r1", 1), "r2": rect("r2", 2)}); err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}

	projects, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("Expected 2 projects, got %d", len(projects))
	}
	for _, p := range projects {
		if p.UpdatedAt.IsZero() {
			t.Errorf("Expected non-zero UpdatedAt for %s", p.ID)
		}
	}

	if err := store.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	projects, err = store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != "p2" {
		t.Errorf("Expected only p2 to remain, got %v", projects)
	}
}
