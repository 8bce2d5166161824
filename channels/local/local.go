package local

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"boardsync/collab"
	"boardsync/core"
)

// Bus fans snapshots, lock tables and cursor tables out to every
// in-process subscriber. All channels of one process share a bus, which
// is what makes the local transport multi-writer.
type Bus struct {
	store    core.ProjectStore
	presence core.PresenceStore

	mu         sync.Mutex
	nextSubID  int
	objectSubs map[string]map[int]func([]core.CanvasObject)
	manipSubs  map[manipKey]map[int]func(map[string]core.ManipulationState)
	cursorSubs map[string]map[int]func([]core.CursorState)
}

type manipKey struct {
	projectID string
	kind      core.ManipulationKind
}

func NewBus(store core.ProjectStore, presenceStore core.PresenceStore) *Bus {
	return &Bus{
		store:      store,
		presence:   presenceStore,
		objectSubs: make(map[string]map[int]func([]core.CanvasObject)),
		manipSubs:  make(map[manipKey]map[int]func(map[string]core.ManipulationState)),
		cursorSubs: make(map[string]map[int]func([]core.CursorState)),
	}
}

func (b *Bus) publishObjects(projectID string, objects []core.CanvasObject) {
	b.mu.Lock()
	fns := make([]func([]core.CanvasObject), 0, len(b.objectSubs[projectID]))
	for _, fn := range b.objectSubs[projectID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(append([]core.CanvasObject(nil), objects...))
	}
}

func (b *Bus) publishManipulations(projectID string, kind core.ManipulationKind) {
	states, err := b.presence.ListManipulations(context.Background(), projectID, kind)
	if err != nil {
		return
	}
	b.mu.Lock()
	subs := b.manipSubs[manipKey{projectID, kind}]
	fns := make([]func(map[string]core.ManipulationState), 0, len(subs))
	for _, fn := range subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(states)
	}
}

func (b *Bus) publishCursors(projectID string) {
	cursors, err := b.presence.ListCursors(context.Background(), projectID)
	if err != nil {
		return
	}
	b.mu.Lock()
	fns := make([]func([]core.CursorState), 0, len(b.cursorSubs[projectID]))
	for _, fn := range b.cursorSubs[projectID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(cursors)
	}
}

// Channel is the in-process collab.Channel. One instance per editing
// session; instances sharing a bus see each other's writes immediately.
type Channel struct {
	bus       *Bus
	sessionID string

	mu     sync.Mutex
	userID string
}

func NewChannel(bus *Bus) *Channel {
	return &Channel{bus: bus, sessionID: uuid.NewString()}
}

// SessionID exposes the channel's session identity, mostly for tests.
func (c *Channel) SessionID() string {
	return c.sessionID
}

func (c *Channel) GoOnline(ctx context.Context, projectID, userID, displayName string) error {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
	return c.bus.presence.SetPresence(ctx, projectID, core.PresenceRecord{
		SessionID:   c.sessionID,
		UserID:      userID,
		DisplayName: displayName,
		OnlineAt:    time.Now(),
	})
}

func (c *Channel) GoOffline(ctx context.Context, projectID string) error {
	changed, err := c.bus.presence.ReleaseSession(ctx, projectID, c.sessionID)
	if err != nil {
		return err
	}
	for _, kind := range changed {
		c.bus.publishManipulations(projectID, kind)
	}
	c.bus.publishCursors(projectID)
	return nil
}

func (c *Channel) SubscribeObjects(projectID string, fn func([]core.CanvasObject)) (collab.UnsubscribeFunc, error) {
	b := c.bus
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	if b.objectSubs[projectID] == nil {
		b.objectSubs[projectID] = make(map[int]func([]core.CanvasObject))
	}
	b.objectSubs[projectID][id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.objectSubs[projectID], id)
		b.mu.Unlock()
	}, nil
}

func (c *Channel) SubscribeManipulations(projectID string, kind core.ManipulationKind, fn func(map[string]core.ManipulationState)) (collab.UnsubscribeFunc, error) {
	b := c.bus
	key := manipKey{projectID, kind}
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	if b.manipSubs[key] == nil {
		b.manipSubs[key] = make(map[int]func(map[string]core.ManipulationState))
	}
	b.manipSubs[key][id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.manipSubs[key], id)
		b.mu.Unlock()
	}, nil
}

func (c *Channel) SubscribeCursors(projectID string, fn func([]core.CursorState)) (collab.UnsubscribeFunc, error) {
	b := c.bus
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	if b.cursorSubs[projectID] == nil {
		b.cursorSubs[projectID] = make(map[int]func([]core.CursorState))
	}
	b.cursorSubs[projectID][id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.cursorSubs[projectID], id)
		b.mu.Unlock()
	}, nil
}

// CleanupStaleDragStates scans every lock kind and removes records whose
// owning session has no presence record. Locks of live sessions are
// never touched, so redundant calls are harmless.
func (c *Channel) CleanupStaleDragStates(ctx context.Context, projectID string) error {
	live, err := liveSessions(ctx, c.bus.presence, projectID)
	if err != nil {
		return err
	}
	for _, kind := range core.ManipulationKinds {
		states, err := c.bus.presence.ListManipulations(ctx, projectID, kind)
		if err != nil {
			return err
		}
		var removed int
		for objectID, state := range states {
			if _, ok := live[state.SessionID]; ok {
				continue
			}
			if err := c.bus.presence.ClearManipulation(ctx, projectID, kind, objectID); err != nil {
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
			c.bus.publishManipulations(projectID, kind)
		}
	}
	return nil
}

func (c *Channel) CleanupStaleCursors(ctx context.Context, projectID string) error {
	live, err := liveSessions(ctx, c.bus.presence, projectID)
	if err != nil {
		return err
	}
	cursors, err := c.bus.presence.ListCursors(ctx, projectID)
	if err != nil {
		return err
	}
	var removed int
	for _, cursor := range cursors {
		if _, ok := live[cursor.SessionID]; ok {
			continue
		}
		if err := c.bus.presence.ClearCursor(ctx, projectID, cursor.SessionID); err != nil {
			return err
		}
		removed++
	}
	if removed > 0 {
		c.bus.publishCursors(projectID)
	}
	return nil
}

func (c *Channel) SetManipulation(ctx context.Context, projectID string, kind core.ManipulationKind, objectID string, active bool) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	var err error
	if active {
		err = c.bus.presence.SetManipulation(ctx, projectID, kind, objectID, core.ManipulationState{
			UserID:    userID,
			SessionID: c.sessionID,
		})
	} else {
		err = c.bus.presence.ClearManipulation(ctx, projectID, kind, objectID)
	}
	if err != nil {
		return err
	}
	c.bus.publishManipulations(projectID, kind)
	return nil
}

func (c *Channel) SetCursor(ctx context.Context, projectID string, x, y float64) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if err := c.bus.presence.SetCursor(ctx, projectID, core.CursorState{
		SessionID: c.sessionID,
		UserID:    userID,
		X:         x,
		Y:         y,
	}); err != nil {
		return err
	}
	c.bus.publishCursors(projectID)
	return nil
}

func (c *Channel) BatchUpdate(ctx context.Context, projectID string, updates map[string]*core.CanvasObject) error {
	if err := c.bus.store.BatchUpdate(ctx, projectID, updates); err != nil {
		return err
	}
	objects, err := c.bus.store.FetchAll(ctx, projectID)
	if err != nil {
		return err
	}
	c.bus.publishObjects(projectID, objects)
	return nil
}

func (c *Channel) FetchAll(ctx context.Context, projectID string) ([]core.CanvasObject, error) {
	return c.bus.store.FetchAll(ctx, projectID)
}

func liveSessions(ctx context.Context, store core.PresenceStore, projectID string) (map[string]struct{}, error) {
	records, err := store.ListPresence(ctx, projectID)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(records))
	for _, record := range records {
		live[record.SessionID] = struct{}{}
	}
	return live, nil
}
