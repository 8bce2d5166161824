package presence

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"boardsync/core"
)

// Store is the in-memory core.PresenceStore. Presence, lock and cursor
// records are scoped to live connections, so durable storage would only
// ever outlive the sessions that own the records.
type Store struct {
	mu       sync.RWMutex
	presence map[string]map[string]core.PresenceRecord                         // project -> session -> record
	locks    map[string]map[core.ManipulationKind]map[string]core.ManipulationState // project -> kind -> object -> state
	cursors  map[string]map[string]core.CursorState                           // project -> session -> cursor
}

func NewStore() *Store {
	return &Store{
		presence: make(map[string]map[string]core.PresenceRecord),
		locks:    make(map[string]map[core.ManipulationKind]map[string]core.ManipulationState),
		cursors:  make(map[string]map[string]core.CursorState),
	}
}

func (s *Store) SetPresence(ctx context.Context, projectID string, record core.PresenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions, ok := s.presence[projectID]
	if !ok {
		sessions = make(map[string]core.PresenceRecord)
		s.presence[projectID] = sessions
	}
	if record.OnlineAt.IsZero() {
		record.OnlineAt = time.Now()
	}
	sessions[record.SessionID] = record
	return nil
}

func (s *Store) RemovePresence(ctx context.Context, projectID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presence[projectID], sessionID)
	return nil
}

func (s *Store) ListPresence(ctx context.Context, projectID string) ([]core.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := s.presence[projectID]
	records := make([]core.PresenceRecord, 0, len(sessions))
	for _, record := range sessions {
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) SetManipulation(ctx context.Context, projectID string, kind core.ManipulationKind, objectID string, state core.ManipulationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds, ok := s.locks[projectID]
	if !ok {
		kinds = make(map[core.ManipulationKind]map[string]core.ManipulationState)
		s.locks[projectID] = kinds
	}
	objects, ok := kinds[kind]
	if !ok {
		objects = make(map[string]core.ManipulationState)
		kinds[kind] = objects
	}
	objects[objectID] = state
	return nil
}

func (s *Store) ClearManipulation(ctx context.Context, projectID string, kind core.ManipulationKind, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks[projectID][kind], objectID)
	return nil
}

func (s *Store) ListManipulations(ctx context.Context, projectID string, kind core.ManipulationKind) (map[string]core.ManipulationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects := s.locks[projectID][kind]
	states := make(map[string]core.ManipulationState, len(objects))
	for objectID, state := range objects {
		states[objectID] = state
	}
	return states, nil
}

func (s *Store) SetCursor(ctx context.Context, projectID string, cursor core.CursorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions, ok := s.cursors[projectID]
	if !ok {
		sessions = make(map[string]core.CursorState)
		s.cursors[projectID] = sessions
	}
	sessions[cursor.SessionID] = cursor
	return nil
}

func (s *Store) ClearCursor(ctx context.Context, projectID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors[projectID], sessionID)
	return nil
}

func (s *Store) ListCursors(ctx context.Context, projectID string) ([]core.CursorState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := s.cursors[projectID]
	cursors := make([]core.CursorState, 0, len(sessions))
	for _, cursor := range sessions {
		cursors = append(cursors, cursor)
	}
	return cursors, nil
}

// ReleaseSession drops every record one session owns: its presence, all
// of its manipulation locks and its cursor. This is the server half of
// the on-disconnect cleanup. It returns the lock kinds that changed so
// the caller can re-broadcast only those tables.
func (s *Store) ReleaseSession(ctx context.Context, projectID, sessionID string) ([]core.ManipulationKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.presence[projectID], sessionID)
	delete(s.cursors[projectID], sessionID)

	var changed []core.ManipulationKind
	for kind, objects := range s.locks[projectID] {
		var released int
		for objectID, state := range objects {
			if state.SessionID == sessionID {
				delete(objects, objectID)
				released++
			}
		}
		if released > 0 {
			changed = append(changed, kind)
		}
	}
	if len(changed) > 0 {
		logrus.WithFields(logrus.Fields{
			"project_id": projectID,
			"session_id": sessionID,
			"kinds":      len(changed),
		}).Debug("Released manipulation locks of departed session")
	}
	return changed, nil
}
