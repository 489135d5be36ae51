package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dispatch-center/internal/domain"
)

// op is the kind of request flowing through the hub loop.
type op int

const (
	opRegister op = iota
	opUnregister
	opInbound
)

// request is one unit of work for the hub loop.
type request struct {
	op   op
	conn *Conn
	raw  []byte
}

// Hub owns the connection registry and the room index and routes every
// inbound control message and outbound broadcast.
//
// All registry mutations funnel through a single Run loop (register,
// unregister, inbound control), so connects and disconnects never interleave
// mid-operation. Broadcast runs on caller goroutines against a read-locked
// snapshot of the room; writes to individual connections are non-blocking and
// a failed write is treated as an implicit disconnect. A single bad message
// or broken connection never affects the others.
type Hub struct {
	requests chan request
	done     chan struct{}

	mu    sync.RWMutex
	conns map[string]*Conn
	// Two-way index: room -> connections for broadcast, and Conn.rooms for
	// O(1) cleanup on disconnect.
	rooms map[string]map[*Conn]struct{}

	stopOnce sync.Once
}

// NewHub creates a Hub. Run must be started in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		requests: make(chan request, 512),
		done:     make(chan struct{}),
		conns:    make(map[string]*Conn),
		rooms:    make(map[string]map[*Conn]struct{}),
	}
}

// Run drives the hub loop until Stop. It also sweeps connections whose
// liveness timestamp has gone stale.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	sweep := time.NewTicker(livenessSweepPeriod)
	defer sweep.Stop()

	for {
		select {
		case req := <-h.requests:
			switch req.op {
			case opRegister:
				h.register(req.conn)
			case opUnregister:
				h.unregister(req.conn)
			case opInbound:
				h.handleInbound(req.conn, req.raw)
			}
		case <-sweep.C:
			h.closeStale()
		case <-h.done:
			log.Info("Hub stopped")
			return
		}
	}
}

// Stop shuts the hub loop down, rejects further requests and closes every
// live socket. The request channel itself is never closed: read pumps keep
// calling Unregister while their sockets unwind, and those calls must degrade
// to no-ops rather than panic.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.RLock()
		conns := make([]*Conn, 0, len(h.conns))
		for _, c := range h.conns {
			conns = append(conns, c)
		}
		h.mu.RUnlock()
		for _, c := range conns {
			c.CloseSocket()
		}
	})
}

// queue enqueues a request without blocking; a full channel drops it and a
// stopped hub rejects it.
func (h *Hub) queue(req request) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.requests <- req:
		return true
	default:
		logrus.WithField("component", "hub").Warn("Hub request channel full, dropping request")
		return false
	}
}

// closeStale disconnects every connection that has not pinged within the
// liveness window. Runs inside the hub loop.
func (h *Hub) closeStale() {
	cutoff := time.Now().Add(-livenessTimeout)
	h.mu.RLock()
	var stale []*Conn
	for _, c := range h.conns {
		if c.lastSeen.Before(cutoff) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		logrus.WithField("conn_id", c.id).Warn("Connection liveness timed out, disconnecting")
		c.CloseSocket()
		h.unregister(c)
	}
}

// Register queues a new connection for registration.
func (h *Hub) Register(c *Conn) bool { return h.queue(request{op: opRegister, conn: c}) }

// Unregister queues a disconnect. Safe to call repeatedly.
func (h *Hub) Unregister(c *Conn) bool { return h.queue(request{op: opUnregister, conn: c}) }

// QueueInbound queues a raw client message for dispatch.
func (h *Hub) QueueInbound(c *Conn, raw []byte) bool {
	return h.queue(request{op: opInbound, conn: c, raw: raw})
}

// ConnectionCount reports the number of live connections. Observability
// only, no side effects.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// register adds the connection with an empty subscription set and greets it.
func (h *Hub) register(c *Conn) {
	if c == nil {
		logrus.Error("Hub: attempted to register a nil connection")
		return
	}
	h.mu.Lock()
	h.conns[c.id] = c
	c.lastSeen = time.Now()
	h.mu.Unlock()
	logrus.WithField("conn_id", c.id).Info("Connection registered")

	h.sendEvent(c, domain.Event{
		Type: domain.EventConnected,
		Data: map[string]any{"connectionId": c.id},
	})
}

// unregister removes the connection from every room and the registry.
// Idempotent: a second call for the same connection is a no-op.
func (h *Hub) unregister(c *Conn) {
	if c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	c.rooms = make(map[string]struct{})
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	logrus.WithField("conn_id", c.id).Info("Connection unregistered")
}

// handleInbound dispatches one client control message. Malformed or unknown
// messages are logged and dropped; the connection stays open.
func (h *Hub) handleInbound(c *Conn, raw []byte) {
	logCtx := logrus.WithField("conn_id", c.id)

	msg, err := ParseInbound(raw)
	if err != nil {
		logCtx.WithError(err).Warn("Dropping inbound message")
		return
	}

	switch msg.Type {
	case InboundAuth:
		// Idempotent; last call wins. Subscriptions are unaffected.
		c.userID = msg.Data.UserID
		c.memberID = msg.Data.MemberID
		logCtx.WithFields(logrus.Fields{"user_id": c.userID, "member_id": c.memberID}).
			Debug("Connection authenticated")

	case InboundSubscribe:
		room := msg.TargetRoom()
		if room == "" {
			logCtx.Warn("Subscribe without a room, dropping")
			return
		}
		h.subscribe(c, room)
		h.sendEvent(c, domain.Event{Type: domain.EventSubscribed, Data: map[string]any{"room": room}})

	case InboundUnsubscribe:
		room := msg.TargetRoom()
		if room == "" {
			logCtx.Warn("Unsubscribe without a room, dropping")
			return
		}
		// Unsubscribing from a room the connection is not in is a no-op.
		h.unsubscribe(c, room)
		h.sendEvent(c, domain.Event{Type: domain.EventUnsubscribed, Data: map[string]any{"room": room}})

	case InboundPing:
		h.mu.Lock()
		c.lastSeen = time.Now()
		h.mu.Unlock()
		h.sendEvent(c, domain.Event{Type: domain.EventPong})
	}
}

func (h *Hub) subscribe(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	logrus.WithFields(logrus.Fields{"conn_id": c.id, "room": room}).Debug("Subscribed")
}

func (h *Hub) unsubscribe(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Broadcast delivers event to every connection subscribed to event.Room at
// the moment of the call. Best-effort and at-most-once: there is no buffering
// for connections that join later and no replay for ones that are gone. A
// connection whose outbound buffer is unwritable is disconnected.
func (h *Hub) Broadcast(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("event_type", event.Type).Error("Failed to marshal event for broadcast")
		return
	}

	h.mu.RLock()
	members := h.rooms[event.Room]
	targets := make([]*Conn, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	logrus.WithFields(logrus.Fields{
		"event_type":      event.Type,
		"room":            event.Room,
		"recipient_count": len(targets),
	}).Debug("Broadcasting event")

	var broken []*Conn
	h.mu.RLock()
	for _, c := range targets {
		if !h.trySend(c, payload) {
			broken = append(broken, c)
		}
	}
	h.mu.RUnlock()

	// A write that cannot be delivered is an implicit disconnect; clean the
	// connection up without touching the healthy ones.
	for _, c := range broken {
		logrus.WithField("conn_id", c.id).Warn("Outbound buffer unwritable during broadcast, disconnecting")
		c.CloseSocket()
		h.unregister(c)
	}
}

// sendEvent delivers a control reply to a single connection.
func (h *Hub) sendEvent(c *Conn, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal control event")
		return
	}
	h.mu.RLock()
	ok := h.trySend(c, payload)
	h.mu.RUnlock()
	if !ok {
		logrus.WithFields(logrus.Fields{"conn_id": c.id, "event_type": event.Type}).
			Warn("Dropped control event, connection unwritable")
	}
}

// trySend performs a non-blocking write to the connection's outbound buffer.
// Callers must hold h.mu (read or write).
func (h *Hub) trySend(c *Conn, payload []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
