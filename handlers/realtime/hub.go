package realtime

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"boardsync/core"
	"boardsync/wire"
)

// Hub tracks the live websocket clients of every project room and fans
// state changes out to them. All durable state goes through the project
// store; everything session-scoped goes through the presence store.
type Hub struct {
	store    core.ProjectStore
	presence core.PresenceStore

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub(store core.ProjectStore, presenceStore core.PresenceStore) *Hub {
	return &Hub{
		store:    store,
		presence: presenceStore,
		rooms:    make(map[string]map[*client]struct{}),
	}
}

// ActiveProjects returns the live client count per project room.
func (h *Hub) ActiveProjects() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.rooms))
	for projectID, clients := range h.rooms {
		counts[projectID] = len(clients)
	}
	return counts
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	room, ok := h.rooms[c.projectID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.projectID] = room
	}
	room[c] = struct{}{}
	size := len(room)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"project_id": c.projectID,
		"session_id": c.sessionID,
		"room_size":  size,
	}).Info("Client joined project room")
}

// leave removes the client and runs the on-disconnect reversal: the
// departed session's presence, locks and cursor vanish without any
// further client action, and the room hears about every table that
// changed.
func (h *Hub) leave(c *client) {
	h.mu.Lock()
	room := h.rooms[c.projectID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.projectID)
	}
	h.mu.Unlock()

	if c.sessionID == "" {
		return
	}

	ctx := context.Background()
	changedKinds, err := h.presence.ReleaseSession(ctx, c.projectID, c.sessionID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": c.projectID,
			"session_id": c.sessionID,
			"error":      err,
		}).Warn("Failed to release departed session state")
		return
	}
	for _, kind := range changedKinds {
		h.broadcastManipulations(c.projectID, kind)
	}
	h.broadcastCursors(c.projectID)
	h.broadcastPresence(c.projectID)

	logrus.WithFields(logrus.Fields{
		"project_id": c.projectID,
		"session_id": c.sessionID,
	}).Info("Client left project room")
}

func (h *Hub) broadcast(projectID string, frame wire.Frame) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[projectID]))
	for c := range h.rooms[projectID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(frame)
	}
}

// NotifyUpdated pushes the current snapshot to a project room. HTTP
// writers call this after committing through the store directly.
func (h *Hub) NotifyUpdated(projectID string) {
	h.broadcastSnapshot(projectID)
}

func (h *Hub) broadcastSnapshot(projectID string) {
	objects, err := h.store.FetchAll(context.Background(), projectID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": projectID,
			"error":      err,
		}).Error("Failed to fetch objects for snapshot broadcast")
		return
	}
	if objects == nil {
		objects = []core.CanvasObject{}
	}
	h.broadcast(projectID, wire.Frame{Type: wire.TypeSnapshot, Objects: objects})
}

func (h *Hub) broadcastManipulations(projectID string, kind core.ManipulationKind) {
	states, err := h.presence.ListManipulations(context.Background(), projectID, kind)
	if err != nil {
		return
	}
	h.broadcast(projectID, wire.Frame{Type: wire.TypeManipState, Kind: kind, States: states})
}

func (h *Hub) broadcastCursors(projectID string) {
	cursors, err := h.presence.ListCursors(context.Background(), projectID)
	if err != nil {
		return
	}
	h.broadcast(projectID, wire.Frame{Type: wire.TypeCursorState, Cursors: cursors})
}

func (h *Hub) broadcastPresence(projectID string) {
	users, err := h.presence.ListPresence(context.Background(), projectID)
	if err != nil {
		return
	}
	h.broadcast(projectID, wire.Frame{Type: wire.TypePresence, Users: users})
}

// cleanupStaleLocks removes lock records of sessions with no presence
// record and re-broadcasts every table that changed. Locks of live
// sessions are never touched.
func (h *Hub) cleanupStaleLocks(ctx context.Context, projectID string) error {
	live, err := h.liveSessions(ctx, projectID)
	if err != nil {
		return err
	}
	for _, kind := range core.ManipulationKinds {
		states, err := h.presence.ListManipulations(ctx, projectID, kind)
		if err != nil {
			return err
		}
		var removed int
		for objectID, state := range states {
			if _, ok := live[state.SessionID]; ok {
				continue
			}
			if err := h.presence.ClearManipulation(ctx, projectID, kind, objectID); err != nil {
				return err
			}
			removed++
		}
		if removed > 0 {
			logrus.WithFields(logrus.Fields{
				"project_id": projectID,
				"kind":       kind,
				"removed":    removed,
			}).Info("Removed stale manipulation locks")
			h.broadcastManipulations(projectID, kind)
		}
	}
	return nil
}

func (h *Hub) cleanupStaleCursors(ctx context.Context, projectID string) error {
	live, err := h.liveSessions(ctx, projectID)
	if err != nil {
		return err
	}
	cursors, err := h.presence.ListCursors(ctx, projectID)
	if err != nil {
		return err
	}
	var removed int
	for _, cursor := range cursors {
		if _, ok := live[cursor.SessionID]; ok {
			continue
		}
		if err := h.presence.ClearCursor(ctx, projectID, cursor.SessionID); err != nil {
			return err
		}
		removed++
	}
	if removed > 0 {
		h.broadcastCursors(projectID)
	}
	return nil
}

func (h *Hub) liveSessions(ctx context.Context, projectID string) (map[string]struct{}, error) {
	records, err := h.presence.ListPresence(ctx, projectID)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(records))
	for _, record := range records {
		live[record.SessionID] = struct{}{}
	}
	return live, nil
}
