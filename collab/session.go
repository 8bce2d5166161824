package collab

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"boardsync/core"
)

type (
	// SessionConfig identifies one user's editing session on one project.
	SessionConfig struct {
		ProjectID   string
		UserID      string
		DisplayName string
		// Settle overrides the initial-load debounce window. Zero means
		// DefaultSettle.
		Settle time.Duration
	}

	// Session owns the client side of project replication: it brings the
	// presence channel up, runs the one-time structural migration on the
	// first snapshot, reconciles every snapshot against local in-flight
	// edits and publishes the merged set to the render sinks.
	Session struct {
		channel Channel
		tracker *Tracker
		cfg     SessionConfig
		sinks   Sinks
		ready   *Gate

		mu          sync.Mutex
		objects     []core.CanvasObject
		seq         uint64
		migrated    bool
		closed      bool
		unsubs      []UnsubscribeFunc
		localHolds  map[core.ManipulationKind]map[string]bool
		remoteHolds map[core.ManipulationKind]map[string]bool

		publishMu sync.Mutex
		published uint64
	}
)

// NewSession wires a session against a channel. The tracker is injected
// so callers share one across every subscription handler and tests get a
// fresh instance per case.
func NewSession(channel Channel, tracker *Tracker, cfg SessionConfig, sinks Sinks) *Session {
	s := &Session{
		channel:     channel,
		tracker:     tracker,
		cfg:         cfg,
		sinks:       sinks,
		localHolds:  make(map[core.ManipulationKind]map[string]bool),
		remoteHolds: make(map[core.ManipulationKind]map[string]bool),
	}
	s.ready = NewGate(cfg.Settle, sinks.OnReady)
	return s
}

// Open brings the session up: presence first (the first write completes
// the connection handshake on some transports, and subscriptions issued
// before it can stall), then the one-time stale-state cleanup, a forced
// initial fetch, and finally the subscriptions. Presence and cleanup
// failures are logged and swallowed; only a failed object subscription
// is fatal, because without it there is no data path.
func (s *Session) Open(ctx context.Context) error {
	log := logrus.WithFields(logrus.Fields{
		"project_id": s.cfg.ProjectID,
		"user_id":    s.cfg.UserID,
	})

	if err := s.channel.GoOnline(ctx, s.cfg.ProjectID, s.cfg.UserID, s.cfg.DisplayName); err != nil {
		log.WithError(err).Warn("Presence write failed, continuing without liveness")
	}
	if err := s.channel.CleanupStaleDragStates(ctx, s.cfg.ProjectID); err != nil {
		log.WithError(err).Warn("Stale manipulation-state cleanup failed")
	}
	if err := s.channel.CleanupStaleCursors(ctx, s.cfg.ProjectID); err != nil {
		log.WithError(err).Warn("Stale cursor cleanup failed")
	}

	if initial, err := s.channel.FetchAll(ctx, s.cfg.ProjectID); err != nil {
		log.WithError(err).Warn("Initial fetch failed, waiting on subscription stream")
	} else {
		s.ingest(initial)
	}

	unsubObjects, err := s.channel.SubscribeObjects(s.cfg.ProjectID, s.ingest)
	if err != nil {
		return err
	}
	s.addUnsub(unsubObjects)

	for _, kind := range core.ManipulationKinds {
		kind := kind
		unsub, err := s.channel.SubscribeManipulations(s.cfg.ProjectID, kind, func(states map[string]core.ManipulationState) {
			s.observeManipulations(kind, states)
		})
		if err != nil {
			s.Close()
			return err
		}
		s.addUnsub(unsub)
	}

	log.Debug("Session opened")
	return nil
}

func (s *Session) addUnsub(unsub UnsubscribeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubs = append(s.unsubs, unsub)
}

// ingest processes one full-replacement snapshot: first-snapshot
// migration, then the merge, then publication behind the value-equality
// short-circuit.
func (s *Session) ingest(remote []core.CanvasObject) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if !s.migrated {
		s.migrated = true
		remote = s.migrateLocked(remote)
	}

	merged := Reconcile(s.objects, remote, s.tracker.IsManipulated)
	changed := !core.ObjectsEqual(s.objects, merged)
	var seq uint64
	if changed {
		s.objects = merged
		s.seq++
		seq = s.seq
	}
	s.mu.Unlock()

	s.ready.Observe()

	if !changed {
		return
	}

	// Snapshot callbacks can arrive on different goroutines. Publication
	// is serialized in commit order; a merge that another callback has
	// already superseded is dropped rather than published late.
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if seq <= s.published {
		return
	}
	s.published = seq

	if s.sinks.SetObjects != nil {
		s.sinks.SetObjects(append([]core.CanvasObject(nil), merged...))
	}
	if s.sinks.PruneSelection != nil {
		valid := make(map[string]struct{}, len(merged))
		for _, o := range merged {
			valid[o.ID] = struct{}{}
		}
		s.sinks.PruneSelection(valid)
	}
}

// migrateLocked runs the structural migration on the first snapshot and
// kicks off the asynchronous write-back of the fix. The corrected set is
// used locally whether or not the write-back succeeds.
func (s *Session) migrateLocked(remote []core.CanvasObject) []core.CanvasObject {
	if !NeedsMigration(remote) {
		return remote
	}

	fixed, flattenedIDs := Flatten(remote)
	updates := make(map[string]*core.CanvasObject, len(flattenedIDs))
	byID := make(map[string]int, len(fixed))
	for i, o := range fixed {
		byID[o.ID] = i
	}
	for _, id := range flattenedIDs {
		obj := fixed[byID[id]]
		updates[id] = &obj
	}

	logrus.WithFields(logrus.Fields{
		"project_id": s.cfg.ProjectID,
		"flattened":  len(flattenedIDs),
	}).Info("Promoted objects with non-group parents to root")

	go s.persistMigration(updates)
	return fixed
}

func (s *Session) persistMigration(updates map[string]*core.CanvasObject) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.channel.BatchUpdate(ctx, s.cfg.ProjectID, updates); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": s.cfg.ProjectID,
			"error":      err,
		}).Warn("Failed to persist flattened parents, keeping corrected state locally")
	}
}

// BeginManipulation marks an object before the caller applies an
// optimistic local mutation, then publishes the channel lock record. The
// mark is synchronous; the record write is advisory and best-effort.
func (s *Session) BeginManipulation(ctx context.Context, kind core.ManipulationKind, objectID string) {
	s.mu.Lock()
	holds := s.localHolds[kind]
	if holds == nil {
		holds = make(map[string]bool)
		s.localHolds[kind] = holds
	}
	holds[objectID] = true
	s.mu.Unlock()

	s.tracker.Mark(objectID)

	if err := s.channel.SetManipulation(ctx, s.cfg.ProjectID, kind, objectID, true); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": s.cfg.ProjectID,
			"object_id":  objectID,
			"kind":       kind,
			"error":      err,
		}).Warn("Failed to publish manipulation lock")
	}
}

// EndManipulation releases one kind's hold on an object. The object is
// unmarked only when no other kind — local gesture or remote-confirmed
// record — still holds it.
func (s *Session) EndManipulation(ctx context.Context, kind core.ManipulationKind, objectID string) {
	s.mu.Lock()
	delete(s.localHolds[kind], objectID)
	stillHeld := s.heldLocked(objectID)
	s.mu.Unlock()

	if !stillHeld {
		s.tracker.Unmark(objectID)
	}

	if err := s.channel.SetManipulation(ctx, s.cfg.ProjectID, kind, objectID, false); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": s.cfg.ProjectID,
			"object_id":  objectID,
			"kind":       kind,
			"error":      err,
		}).Warn("Failed to clear manipulation lock")
	}
}

// heldLocked reports whether any kind still holds objectID. Caller holds
// s.mu.
func (s *Session) heldLocked(objectID string) bool {
	for _, holds := range s.localHolds {
		if holds[objectID] {
			return true
		}
	}
	for _, holds := range s.remoteHolds {
		if holds[objectID] {
			return true
		}
	}
	return false
}

// observeManipulations mirrors the channel's lock table for one kind
// into the tracker. Only records owned by the local user matter: a newly
// appearing record confirms an in-flight mark, a vanished record means
// the remote observed the gesture's completion.
func (s *Session) observeManipulations(kind core.ManipulationKind, states map[string]core.ManipulationState) {
	mine := make(map[string]bool, len(states))
	for objectID, state := range states {
		if state.UserID == s.cfg.UserID {
			mine[objectID] = true
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	previous := s.remoteHolds[kind]
	s.remoteHolds[kind] = mine

	var added, released []string
	for objectID := range mine {
		if !previous[objectID] {
			added = append(added, objectID)
		}
	}
	for objectID := range previous {
		if !mine[objectID] && !s.heldLocked(objectID) {
			released = append(released, objectID)
		}
	}
	s.mu.Unlock()

	for _, objectID := range added {
		s.tracker.Mark(objectID)
	}
	for _, objectID := range released {
		s.tracker.Unmark(objectID)
	}
}

// ApplyLocal records an optimistic local edit in the session's mirror so
// a concurrent snapshot cannot roll it back while the object is marked.
func (s *Session) ApplyLocal(obj core.CanvasObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.objects {
		if s.objects[i].ID == obj.ID {
			s.objects[i] = obj
			return
		}
	}
	s.objects = append(s.objects, obj)
}

// RemoveLocal drops an object from the session's mirror ahead of the
// delete round-tripping through the channel.
func (s *Session) RemoveLocal(objectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.objects {
		if s.objects[i].ID == objectID {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			return
		}
	}
}

// Objects returns a copy of the currently merged object set.
func (s *Session) Objects() []core.CanvasObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CanvasObject(nil), s.objects...)
}

// Ready reports whether the initial load has settled.
func (s *Session) Ready() bool {
	return s.ready.Stable()
}

// Close tears the session down: stops the settle timer so a late fire
// cannot mutate state, unsubscribes everything, releases the tracker
// marks this session holds and reverts presence.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil

	held := make(map[string]struct{})
	for _, holds := range s.localHolds {
		for objectID := range holds {
			held[objectID] = struct{}{}
		}
	}
	for _, holds := range s.remoteHolds {
		for objectID := range holds {
			held[objectID] = struct{}{}
		}
	}
	s.localHolds = make(map[core.ManipulationKind]map[string]bool)
	s.remoteHolds = make(map[core.ManipulationKind]map[string]bool)
	s.mu.Unlock()

	s.ready.Stop()
	for _, unsub := range unsubs {
		unsub()
	}
	for objectID := range held {
		s.tracker.Unmark(objectID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.channel.GoOffline(ctx, s.cfg.ProjectID); err != nil {
		logrus.WithFields(logrus.Fields{
			"project_id": s.cfg.ProjectID,
			"error":      err,
		}).Debug("Presence teardown failed")
	}
}
