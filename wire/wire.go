// Package wire defines the JSON frames spoken on the relay's /ws
// endpoint. Both the server hub and the client channel marshal through
// these types so the two halves cannot drift.
package wire

import "boardsync/core"

// Client-to-server frame types. join, fetch, batch and the cleanups are
// request/response (correlated by Req); manip and cursor are
// fire-and-forget.
const (
	TypeJoin           = "join"
	TypeFetch          = "fetch"
	TypeBatch          = "batch"
	TypeManip          = "manip"
	TypeCursor         = "cursor"
	TypeCleanupLocks   = "cleanup-locks"
	TypeCleanupCursors = "cleanup-cursors"
)

// Server-to-client frame types. snapshot, manip-state, cursor-state and
// presence fan out to the whole project room.
const (
	TypeAck         = "ack"
	TypeError       = "error"
	TypeSnapshot    = "snapshot"
	TypeFetchResult = "fetch-result"
	TypeManipState  = "manip-state"
	TypeCursorState = "cursor-state"
	TypePresence    = "presence"
)

// Frame is one message in either direction. Fields are populated
// per-type; unused fields stay at their zero value and are omitted.
type Frame struct {
	Type    string                `json:"type"`
	Req     string                `json:"req,omitempty"`
	Session string                `json:"session,omitempty"`
	User    string                `json:"user,omitempty"`
	Name    string                `json:"name,omitempty"`
	Kind    core.ManipulationKind `json:"kind,omitempty"`
	Object  string                `json:"object,omitempty"`
	Active  bool                  `json:"active,omitempty"`
	X       float64               `json:"x,omitempty"`
	Y       float64               `json:"y,omitempty"`

	Objects []core.CanvasObject               `json:"objects,omitempty"`
	Updates map[string]*core.CanvasObject     `json:"updates,omitempty"`
	States  map[string]core.ManipulationState `json:"states,omitempty"`
	Cursors []core.CursorState                `json:"cursors,omitempty"`
	Users   []core.PresenceRecord             `json:"users,omitempty"`

	Error string `json:"error,omitempty"`
}
