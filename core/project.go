package core

import (
	"context"
	"time"
)

type (
	// Project is the metadata for one collaborative canvas.
	Project struct {
		ID          string    `json:"id"`
		Name        string    `json:"name,omitempty"`
		ObjectCount int       `json:"objectCount"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// ProjectStore persists the full object set of each project. It is
	// the durable half of the replication channel; fan-out to live
	// subscribers happens above it.
	ProjectStore interface {
		// FetchAll returns the complete object set of a project. A
		// project that was never written returns an empty set, not an
		// error.
		FetchAll(ctx context.Context, projectID string) ([]CanvasObject, error)

		// BatchUpdate applies upserts and deletes in one atomic commit.
		// A nil value deletes the object with that ID.
		BatchUpdate(ctx context.Context, projectID string, updates map[string]*CanvasObject) error

		// ListProjects returns metadata for every known project.
		ListProjects(ctx context.Context) ([]*Project, error)

		// DeleteProject removes a project and all of its objects.
		DeleteProject(ctx context.Context, projectID string) error
	}
)
