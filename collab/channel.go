package collab

import (
	"context"

	"boardsync/core"
)

type (
	// UnsubscribeFunc tears down one subscription.
	UnsubscribeFunc func()

	// Channel is the replication channel a session runs against. Every
	// snapshot callback delivers a full-replacement object set, never a
	// diff. Implementations: channels/local (in-process, store-backed)
	// and channels/ws (relay over websocket).
	Channel interface {
		// GoOnline writes the presence record for this session and arms
		// the server-side on-disconnect cleanup. On some transports the
		// first write is what completes the connection handshake, so
		// sessions call it before any subscription.
		GoOnline(ctx context.Context, projectID, userID, displayName string) error

		// GoOffline reverts the presence record and releases this
		// session's lock and cursor records.
		GoOffline(ctx context.Context, projectID string) error

		SubscribeObjects(projectID string, fn func([]core.CanvasObject)) (UnsubscribeFunc, error)
		SubscribeManipulations(projectID string, kind core.ManipulationKind, fn func(map[string]core.ManipulationState)) (UnsubscribeFunc, error)
		SubscribeCursors(projectID string, fn func([]core.CursorState)) (UnsubscribeFunc, error)

		// CleanupStaleDragStates removes manipulation lock records of
		// every kind whose owning session is no longer present. Safe to
		// call redundantly; locks of live sessions are untouched.
		CleanupStaleDragStates(ctx context.Context, projectID string) error

		// CleanupStaleCursors removes cursor records of departed sessions.
		CleanupStaleCursors(ctx context.Context, projectID string) error

		// SetManipulation publishes or clears this session's lock record
		// for one object under one kind.
		SetManipulation(ctx context.Context, projectID string, kind core.ManipulationKind, objectID string, active bool) error

		// SetCursor publishes this session's pointer position.
		SetCursor(ctx context.Context, projectID string, x, y float64) error

		// BatchUpdate commits upserts and deletes atomically; nil values
		// delete. Used for regular edits and by the migration pass.
		BatchUpdate(ctx context.Context, projectID string, updates map[string]*core.CanvasObject) error

		// FetchAll reads the current object set directly, independent of
		// subscription timing.
		FetchAll(ctx context.Context, projectID string) ([]core.CanvasObject, error)
	}

	// Sinks is where a session publishes its merged output. SetObjects
	// receives a full replacement list; PruneSelection receives the set
	// of IDs that survived the merge so stale selections can be dropped;
	// OnReady fires once, when the initial load settles.
	Sinks struct {
		SetObjects     func([]core.CanvasObject)
		PruneSelection func(valid map[string]struct{})
		OnReady        func()
	}
)
