package core

import (
	"context"
	"time"
)

// ManipulationKind distinguishes the per-object lock records the channel
// keeps while a user drags, resizes or text-edits an object.
type ManipulationKind string

const (
	ManipDrag   ManipulationKind = "drag"
	ManipResize ManipulationKind = "resize"
	ManipEdit   ManipulationKind = "edit"
)

// ManipulationKinds lists every lock record family, in the order the
// stale-state cleanup scans them.
var ManipulationKinds = []ManipulationKind{ManipDrag, ManipResize, ManipEdit}

type (
	// PresenceRecord marks one live editing session in a project.
	PresenceRecord struct {
		SessionID   string    `json:"sessionId"`
		UserID      string    `json:"userId"`
		DisplayName string    `json:"displayName,omitempty"`
		OnlineAt    time.Time `json:"onlineAt"`
	}

	// ManipulationState is the persisted lock record for one object
	// under one manipulation kind.
	ManipulationState struct {
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
	}

	// CursorState is one session's pointer position.
	CursorState struct {
		SessionID string  `json:"sessionId"`
		UserID    string  `json:"userId"`
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
	}

	// PresenceStore keeps the ephemeral per-project session state:
	// presence records, manipulation locks and cursors. Everything in it
	// is scoped to live connections, so implementations are in-memory.
	PresenceStore interface {
		SetPresence(ctx context.Context, projectID string, record PresenceRecord) error
		RemovePresence(ctx context.Context, projectID, sessionID string) error
		ListPresence(ctx context.Context, projectID string) ([]PresenceRecord, error)

		SetManipulation(ctx context.Context, projectID string, kind ManipulationKind, objectID string, state ManipulationState) error
		ClearManipulation(ctx context.Context, projectID string, kind ManipulationKind, objectID string) error
		ListManipulations(ctx context.Context, projectID string, kind ManipulationKind) (map[string]ManipulationState, error)

		SetCursor(ctx context.Context, projectID string, cursor CursorState) error
		ClearCursor(ctx context.Context, projectID, sessionID string) error
		ListCursors(ctx context.Context, projectID string) ([]CursorState, error)

		// ReleaseSession drops every record one session owns — presence,
		// manipulation locks, cursor — and returns the lock kinds that
		// changed. This is the on-disconnect reversal: it runs without
		// further client action when a connection dies.
		ReleaseSession(ctx context.Context, projectID, sessionID string) ([]ManipulationKind, error)
	}
)
