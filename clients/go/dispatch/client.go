// Package dispatch is the client side of the dispatch-center realtime core:
// a connection manager that keeps one logical socket to the hub alive, a
// cache invalidation layer that maps inbound events onto locally cached
// queries, and a polling backstop for the events the socket misses.
package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// State is the connection manager's lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	// StateError means the connection dropped unexpectedly and the manager
	// has exhausted its reconnect attempts; a manual Connect is required.
	StateError State = "error"
)

const (
	defaultReconnectDelay       = 3 * time.Second
	defaultMaxReconnectAttempts = 5
	defaultPingInterval         = 25 * time.Second
)

// Event is a server-to-client message.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Room string          `json:"room,omitempty"`
}

// Message is the client-to-server control message shape.
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// wireConn is the subset of the websocket connection the manager uses.
// *websocket.Conn satisfies it; tests substitute an in-memory fake.
type wireConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc opens one socket to the hub.
type DialFunc func(ctx context.Context, url string) (wireConn, error)

func defaultDial(ctx context.Context, url string) (wireConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config configures a Client.
type Config struct {
	// URL of the hub websocket endpoint, including any auth token.
	URL string

	// Identity sent in the auth message after connecting. Zero UserID skips
	// auth entirely.
	UserID   uint
	MemberID uint

	// BaselineRooms are subscribed on every successful connect. Defaults to
	// the calls and queue rooms.
	BaselineRooms []string

	// ReconnectDelay is the fixed wait between reconnect attempts. The room
	// set is small and reconnection is cheap, so there is no backoff; the
	// attempt cap below bounds retries against a dead hub.
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// PingInterval is the period of the application-level liveness ping
	// while connected.
	PingInterval time.Duration

	// OnEvent receives every inbound event. Called from the read goroutine.
	OnEvent func(Event)

	// Dial replaces the websocket dialer. Tests use this.
	Dial DialFunc
}

// Client maintains exactly one logical connection to the hub across planned
// and unplanned disruptions.
//
// All state transitions, the reconnect timer and the ping timer are
// serialized under one mutex, and every timer callback re-checks the
// generation counter at fire time: a timer left over from a previous
// connection epoch is a guaranteed no-op, not just an unlikely one.
type Client struct {
	cfg Config

	mu       sync.Mutex
	state    State
	conn     wireConn
	attempts int

	// gen increments on every Connect/Disconnect epoch. Read goroutines and
	// timers carry the gen they were started under and bail out when it no
	// longer matches.
	gen uint64

	reconnectTimer *time.Timer
	pingStop       chan struct{}
}

// NewClient creates a Client in the disconnected state.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		panic("URL cannot be empty for dispatch client")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.BaselineRooms == nil {
		cfg.BaselineRooms = []string{"calls", "queue"}
	}
	if cfg.Dial == nil {
		cfg.Dial = defaultDial
	}
	return &Client{
		cfg:   cfg,
		state: StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection. A no-op when already connected.
// Calling it externally (as opposed to the internal retry path) also clears
// a previous reconnect exhaustion.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.cancelReconnectLocked()
	c.attempts = 0
	c.mu.Unlock()

	return c.connect(ctx)
}

// connect performs one connection attempt. Shared by Connect and the
// reconnect timer; the attempt counter is managed by the callers.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.cfg.Dial(ctx, c.cfg.URL)

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect happened while dialing; discard the socket.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		logrus.WithError(err).Warn("dispatch client: connection attempt failed")
		c.state = StateDisconnected
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()
		return err
	}

	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	stop := make(chan struct{})
	c.pingStop = stop
	c.mu.Unlock()

	if c.cfg.UserID != 0 {
		c.Send(outboundAuth(c.cfg.UserID, c.cfg.MemberID))
	}
	for _, room := range c.cfg.BaselineRooms {
		c.Subscribe(room)
	}

	go c.pingLoop(gen, stop)
	go c.readLoop(gen, conn)

	logrus.WithField("url", c.cfg.URL).Info("dispatch client: connected")
	return nil
}

// Disconnect closes the connection and synchronously cancels the reconnect
// and ping timers. Safe to call repeatedly and from any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.cancelReconnectLocked()
	c.stopPingLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
}

// Send writes one control message. Returns whether the write succeeded; a
// failed send never triggers a reconnect by itself, that is driven only by
// the read loop observing the socket close.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return false
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("dispatch client: failed to marshal outbound message")
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logrus.WithError(err).Warn("dispatch client: send failed")
		return false
	}
	return true
}

// Subscribe joins a room.
func (c *Client) Subscribe(room string) bool {
	return c.Send(Message{Type: "subscribe", Data: map[string]any{"room": room}})
}

// Unsubscribe leaves a room. Leaving a room never joined is a no-op on the
// hub side.
func (c *Client) Unsubscribe(room string) bool {
	return c.Send(Message{Type: "unsubscribe", Data: map[string]any{"room": room}})
}

func outboundAuth(userID, memberID uint) Message {
	data := map[string]any{"userId": userID}
	if memberID != 0 {
		data["memberId"] = memberID
	}
	return Message{Type: "auth", Data: data}
}

// readLoop forwards inbound events until the socket dies, then hands the
// close to the reconnect path.
func (c *Client) readLoop(gen uint64, conn wireConn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen)
			return
		}
		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			logrus.WithError(err).Warn("dispatch client: dropping malformed event")
			continue
		}
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(evt)
		}
	}
}

// pingLoop keeps the application-level liveness ping going while connected.
func (c *Client) pingLoop(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			live := c.gen == gen && c.state == StateConnected
			c.mu.Unlock()
			if !live {
				return
			}
			c.Send(Message{Type: "ping"})
		}
	}
}

// handleClose reacts to an unplanned socket close: schedule one reconnect
// after the fixed delay while attempts remain, otherwise park in the error
// state until Connect is called again.
func (c *Client) handleClose(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		// A Disconnect or a newer connection already superseded this socket.
		return
	}
	c.stopPingLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.attempts >= c.cfg.MaxReconnectAttempts {
		logrus.WithField("attempts", c.attempts).Warn("dispatch client: reconnect attempts exhausted")
		c.state = StateError
		return
	}
	c.state = StateDisconnected
	c.scheduleReconnectLocked(gen)
}

// scheduleReconnectLocked arms the reconnect timer. Caller holds c.mu. The
// fired callback re-checks generation and state before acting, so a timer
// that outlives a Disconnect does nothing.
func (c *Client) scheduleReconnectLocked(gen uint64) {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		logrus.WithField("attempts", c.attempts).Warn("dispatch client: reconnect attempts exhausted")
		c.state = StateError
		return
	}
	c.attempts++
	attempt := c.attempts
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		stale := c.gen != gen || c.state != StateDisconnected
		c.mu.Unlock()
		if stale {
			return
		}
		logrus.WithField("attempt", attempt).Info("dispatch client: reconnecting")
		_ = c.connect(context.Background())
	})
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) stopPingLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}
