package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Per-connection outbound buffer.
	sendBufferSize = 256

	// A connection that has not sent an application ping within this window
	// is presumed dead and swept by the hub.
	livenessTimeout = 75 * time.Second

	// How often the hub sweeps for dead connections.
	livenessSweepPeriod = 30 * time.Second
)

// Conn is one live dispatcher connection. It is ephemeral and owned
// exclusively by the Hub: created on socket accept, destroyed on socket
// close or liveness timeout, never persisted.
type Conn struct {
	id   string
	hub  *Hub
	ws   *websocket.Conn
	send chan []byte

	// Mutated only inside the hub loop (identity) or under the hub lock
	// (rooms, closed).
	userID   uint
	memberID uint
	rooms    map[string]struct{}
	lastSeen time.Time
	closed   bool
}

// NewConn wraps an accepted websocket in a hub connection.
func NewConn(h *Hub, ws *websocket.Conn) *Conn {
	return &Conn{
		id:    uuid.NewString(),
		hub:   h,
		ws:    ws,
		send:  make(chan []byte, sendBufferSize),
		rooms: make(map[string]struct{}),
	}
}

// ID returns the opaque connection identifier.
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated user, or 0 before auth.
func (c *Conn) UserID() uint { return c.userID }

// Run starts the read and write pumps.
func (c *Conn) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// CloseSocket closes the underlying websocket, if any.
func (c *Conn) CloseSocket() {
	if c.ws != nil {
		c.ws.Close()
	}
}

// ReadPump pumps raw messages from the websocket into the hub loop. It runs
// in its own goroutine; on any read error it requests unregistration and
// closes the socket.
func (c *Conn) ReadPump() {
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.id})
	defer func() {
		c.hub.Unregister(c)
		c.CloseSocket()
		logCtx.Info("ReadPump exited, connection unregistered")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("Websocket read error (unexpected close)")
			} else {
				logCtx.Debug("Websocket connection closed")
			}
			break
		}
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Ignoring non-text message type: %d", messageType)
			continue
		}
		if !c.hub.QueueInbound(c, message) {
			logCtx.Warn("Hub request channel full, dropping client message")
		}
	}
}

// WritePump pumps messages from the send channel to the websocket and keeps
// the transport alive with periodic pings.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": c.id})
	defer func() {
		ticker.Stop()
		c.CloseSocket()
		logCtx.Debug("WritePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the send channel during unregister.
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send transport ping")
				return
			}
		}
	}
}
