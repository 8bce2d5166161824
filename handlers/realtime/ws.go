package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"boardsync/core"
	"boardsync/wire"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The HTTP layer already applies CORS; websocket upgrades from any
	// origin are accepted the way the socket.io endpoint does.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one websocket connection in one project room.
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan wire.Frame
	done      chan struct{}
	projectID string
	sessionID string
	userID    string
}

// enqueue never blocks and never panics: send stays open forever and a
// frame buffered after teardown is simply collected with the client.
func (c *client) enqueue(frame wire.Frame) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		// A reader this far behind is beyond saving; drop the
		// connection and let the client re-establish.
		logrus.WithFields(logrus.Fields{
			"project_id": c.projectID,
			"session_id": c.sessionID,
		}).Warn("Send buffer full, closing connection")
		c.conn.Close()
	}
}

// ServeWS upgrades a relay connection. The project is bound at upgrade
// time via the query string; the session announces itself with the
// first join frame.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := r.URL.Query().Get("project")
		if projectID == "" {
			http.Error(w, "project query parameter is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("Websocket upgrade failed")
			return
		}

		c := &client{
			hub:       hub,
			conn:      conn,
			send:      make(chan wire.Frame, sendBuffer),
			done:      make(chan struct{}),
			projectID: projectID,
		}
		hub.join(c)

		go c.writePump()
		c.readPump()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame wire.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{
					"project_id": c.projectID,
					"session_id": c.sessionID,
					"error":      err,
				}).Debug("Websocket read failed")
			}
			return
		}
		c.handle(frame)
	}
}

func (c *client) handle(frame wire.Frame) {
	ctx := context.Background()

	switch frame.Type {
	case wire.TypeJoin:
		c.sessionID = frame.Session
		c.userID = frame.User
		err := c.hub.presence.SetPresence(ctx, c.projectID, core.PresenceRecord{
			SessionID:   frame.Session,
			UserID:      frame.User,
			DisplayName: frame.Name,
			OnlineAt:    time.Now(),
		})
		c.reply(frame.Req, err)
		if err == nil {
			c.hub.broadcastPresence(c.projectID)
			// Late joiner catch-up: current lock tables and cursors.
			for _, kind := range core.ManipulationKinds {
				if states, err := c.hub.presence.ListManipulations(ctx, c.projectID, kind); err == nil {
					c.enqueue(wire.Frame{Type: wire.TypeManipState, Kind: kind, States: states})
				}
			}
			if cursors, err := c.hub.presence.ListCursors(ctx, c.projectID); err == nil {
				c.enqueue(wire.Frame{Type: wire.TypeCursorState, Cursors: cursors})
			}
		}

	case wire.TypeFetch:
		objects, err := c.hub.store.FetchAll(ctx, c.projectID)
		if err != nil {
			c.enqueue(wire.Frame{Type: wire.TypeError, Req: frame.Req, Error: err.Error()})
			return
		}
		if objects == nil {
			objects = []core.CanvasObject{}
		}
		c.enqueue(wire.Frame{Type: wire.TypeFetchResult, Req: frame.Req, Objects: objects})

	case wire.TypeBatch:
		err := c.hub.store.BatchUpdate(ctx, c.projectID, frame.Updates)
		c.reply(frame.Req, err)
		if err == nil {
			c.hub.broadcastSnapshot(c.projectID)
		}

	case wire.TypeManip:
		var err error
		if frame.Active {
			err = c.hub.presence.SetManipulation(ctx, c.projectID, frame.Kind, frame.Object, core.ManipulationState{
				UserID:    c.userID,
				SessionID: c.sessionID,
			})
		} else {
			err = c.hub.presence.ClearManipulation(ctx, c.projectID, frame.Kind, frame.Object)
		}
		if err == nil {
			c.hub.broadcastManipulations(c.projectID, frame.Kind)
		}

	case wire.TypeCursor:
		err := c.hub.presence.SetCursor(ctx, c.projectID, core.CursorState{
			SessionID: c.sessionID,
			UserID:    c.userID,
			X:         frame.X,
			Y:         frame.Y,
		})
		if err == nil {
			c.hub.broadcastCursors(c.projectID)
		}

	case wire.TypeCleanupLocks:
		c.reply(frame.Req, c.hub.cleanupStaleLocks(ctx, c.projectID))

	case wire.TypeCleanupCursors:
		c.reply(frame.Req, c.hub.cleanupStaleCursors(ctx, c.projectID))

	default:
		logrus.WithFields(logrus.Fields{
			"project_id": c.projectID,
			"type":       frame.Type,
		}).Warn("Unknown frame type")
	}
}

func (c *client) reply(req string, err error) {
	if req == "" {
		return
	}
	if err != nil {
		c.enqueue(wire.Frame{Type: wire.TypeError, Req: req, Error: err.Error()})
		return
	}
	c.enqueue(wire.Frame{Type: wire.TypeAck, Req: req})
}
