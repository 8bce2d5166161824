package collab

import "sync"

// Tracker is the registry of object IDs the local user is actively
// manipulating (drag, resize, inline text edit). It is pure bookkeeping:
// no I/O, no awaiting, so a mark takes effect before the corresponding
// write to the channel is acknowledged. One instance is constructed at
// startup and handed to every session so tests can substitute their own.
type Tracker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]struct{})}
}

// Mark adds id to the active set. Idempotent.
func (t *Tracker) Mark(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[id] = struct{}{}
}

// Unmark removes id from the active set. No-op if absent.
func (t *Tracker) Unmark(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
}

// IsManipulated reports whether id is currently marked.
func (t *Tracker) IsManipulated(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[id]
	return ok
}

// Active returns a copy of the currently marked IDs.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	return ids
}
