package ws

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"boardsync/collab"
	"boardsync/core"
	"boardsync/wire"
)

// Channel speaks the relay's /ws protocol. One channel carries one
// session on one project: the connection is established by GoOnline —
// the presence write doubles as the transport handshake, which is why
// sessions call it before subscribing — and torn down by GoOffline or a
// read error. The server reverts presence and locks on disconnect.
type Channel struct {
	endpoint  string
	sessionID string

	mu         sync.Mutex
	conn       *websocket.Conn
	projectID  string
	userID     string
	closed     bool
	pending    map[string]chan wire.Frame
	nextSubID  int
	objectSubs map[int]func([]core.CanvasObject)
	manipSubs  map[core.ManipulationKind]map[int]func(map[string]core.ManipulationState)
	cursorSubs map[int]func([]core.CursorState)

	writeMu sync.Mutex
}

// NewChannel points a channel at a relay endpoint such as
// ws://host:3002/ws. No connection is made until GoOnline.
func NewChannel(endpoint string) *Channel {
	return &Channel{
		endpoint:   endpoint,
		sessionID:  uuid.NewString(),
		pending:    make(map[string]chan wire.Frame),
		objectSubs: make(map[int]func([]core.CanvasObject)),
		manipSubs:  make(map[core.ManipulationKind]map[int]func(map[string]core.ManipulationState)),
		cursorSubs: make(map[int]func([]core.CursorState)),
	}
}

// SessionID exposes the channel's session identity.
func (c *Channel) SessionID() string {
	return c.sessionID
}

func (c *Channel) GoOnline(ctx context.Context, projectID, userID, displayName string) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("channel already online on project %s", c.projectID)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	q := u.Query()
	q.Set("project", projectID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to dial relay: %w", err)
	}
	c.conn = conn
	c.projectID = projectID
	c.userID = userID
	c.closed = false
	c.mu.Unlock()

	go c.readLoop(conn)

	_, err = c.request(ctx, wire.Frame{
		Type:    wire.TypeJoin,
		Session: c.sessionID,
		User:    userID,
		Name:    displayName,
	})
	return err
}

func (c *Channel) GoOffline(ctx context.Context, projectID string) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	// The server releases this session's presence, locks and cursor when
	// the connection drops; a polite close frame is all that is needed.
	c.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.failPending(err)
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				logrus.WithError(err).Warn("Relay connection lost")
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame wire.Frame) {
	switch frame.Type {
	case wire.TypeAck, wire.TypeError, wire.TypeFetchResult:
		c.mu.Lock()
		waiter := c.pending[frame.Req]
		delete(c.pending, frame.Req)
		c.mu.Unlock()
		if waiter != nil {
			waiter <- frame
		}

	case wire.TypeSnapshot:
		objects := frame.Objects
		if objects == nil {
			objects = []core.CanvasObject{}
		}
		for _, fn := range c.snapshotFns() {
			fn(append([]core.CanvasObject(nil), objects...))
		}

	case wire.TypeManipState:
		c.mu.Lock()
		fns := make([]func(map[string]core.ManipulationState), 0, len(c.manipSubs[frame.Kind]))
		for _, fn := range c.manipSubs[frame.Kind] {
			fns = append(fns, fn)
		}
		c.mu.Unlock()
		states := frame.States
		if states == nil {
			states = map[string]core.ManipulationState{}
		}
		for _, fn := range fns {
			fn(states)
		}

	case wire.TypeCursorState:
		c.mu.Lock()
		fns := make([]func([]core.CursorState), 0, len(c.cursorSubs))
		for _, fn := range c.cursorSubs {
			fns = append(fns, fn)
		}
		c.mu.Unlock()
		for _, fn := range fns {
			fn(frame.Cursors)
		}

	case wire.TypePresence:
		// Presence fan-out is informational for the sync core; render
		// layers wanting roster UI can subscribe via a dedicated
		// channel wrapper later.
	}
}

func (c *Channel) snapshotFns() []func([]core.CanvasObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fns := make([]func([]core.CanvasObject), 0, len(c.objectSubs))
	for _, fn := range c.objectSubs {
		fns = append(fns, fn)
	}
	return fns
}

func (c *Channel) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan wire.Frame)
	c.mu.Unlock()
	for req, waiter := range pending {
		waiter <- wire.Frame{Type: wire.TypeError, Req: req, Error: err.Error()}
	}
}

// request writes a correlated frame and waits for its ack, error or
// result.
func (c *Channel) request(ctx context.Context, frame wire.Frame) (wire.Frame, error) {
	frame.Req = ulid.Make().String()
	waiter := make(chan wire.Frame, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return wire.Frame{}, fmt.Errorf("channel is offline")
	}
	conn := c.conn
	c.pending[frame.Req] = waiter
	c.mu.Unlock()

	if err := c.write(conn, frame); err != nil {
		c.mu.Lock()
		delete(c.pending, frame.Req)
		c.mu.Unlock()
		return wire.Frame{}, err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, frame.Req)
		c.mu.Unlock()
		return wire.Frame{}, ctx.Err()
	case reply := <-waiter:
		if reply.Type == wire.TypeError {
			return reply, fmt.Errorf("relay error: %s", reply.Error)
		}
		return reply, nil
	}
}

func (c *Channel) send(frame wire.Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("channel is offline")
	}
	return c.write(conn, frame)
}

func (c *Channel) write(conn *websocket.Conn, frame wire.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (c *Channel) SubscribeObjects(projectID string, fn func([]core.CanvasObject)) (collab.UnsubscribeFunc, error) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.objectSubs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.objectSubs, id)
		c.mu.Unlock()
	}, nil
}

func (c *Channel) SubscribeManipulations(projectID string, kind core.ManipulationKind, fn func(map[string]core.ManipulationState)) (collab.UnsubscribeFunc, error) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	if c.manipSubs[kind] == nil {
		c.manipSubs[kind] = make(map[int]func(map[string]core.ManipulationState))
	}
	c.manipSubs[kind][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.manipSubs[kind], id)
		c.mu.Unlock()
	}, nil
}

func (c *Channel) SubscribeCursors(projectID string, fn func([]core.CursorState)) (collab.UnsubscribeFunc, error) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.cursorSubs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.cursorSubs, id)
		c.mu.Unlock()
	}, nil
}

func (c *Channel) CleanupStaleDragStates(ctx context.Context, projectID string) error {
	_, err := c.request(ctx, wire.Frame{Type: wire.TypeCleanupLocks})
	return err
}

func (c *Channel) CleanupStaleCursors(ctx context.Context, projectID string) error {
	_, err := c.request(ctx, wire.Frame{Type: wire.TypeCleanupCursors})
	return err
}

func (c *Channel) SetManipulation(ctx context.Context, projectID string, kind core.ManipulationKind, objectID string, active bool) error {
	return c.send(wire.Frame{
		Type:   wire.TypeManip,
		Kind:   kind,
		Object: objectID,
		Active: active,
	})
}

func (c *Channel) SetCursor(ctx context.Context, projectID string, x, y float64) error {
	return c.send(wire.Frame{Type: wire.TypeCursor, X: x, Y: y})
}

func (c *Channel) BatchUpdate(ctx context.Context, projectID string, updates map[string]*core.CanvasObject) error {
	_, err := c.request(ctx, wire.Frame{Type: wire.TypeBatch, Updates: updates})
	return err
}

func (c *Channel) FetchAll(ctx context.Context, projectID string) ([]core.CanvasObject, error) {
	reply, err := c.request(ctx, wire.Frame{Type: wire.TypeFetch})
	if err != nil {
		return nil, err
	}
	return reply.Objects, nil
}
