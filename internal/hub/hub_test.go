package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-center/internal/domain"
)

// testConn builds a registered connection with no underlying socket. All
// registry mutations in these tests go through the hub's own handlers, the
// same code paths the Run loop drives.
func testConn(h *Hub) *Conn {
	c := NewConn(h, nil)
	h.register(c)
	drain(c)
	return c
}

// drain empties the connection's outbound buffer.
func drain(c *Conn) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

// recvEvent pops one buffered outbound event, failing the test if none is
// pending.
func recvEvent(t *testing.T, c *Conn) domain.Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var evt domain.Event
		require.NoError(t, json.Unmarshal(payload, &evt))
		return evt
	default:
		t.Fatal("expected a pending outbound event, buffer was empty")
		return domain.Event{}
	}
}

func subscribeMsg(room string) []byte {
	return []byte(`{"type":"subscribe","data":{"room":"` + room + `"}}`)
}

func TestHub_RegisterGreetsConnection(t *testing.T) {
	h := NewHub()
	c := NewConn(h, nil)

	h.register(c)

	evt := recvEvent(t, c)
	assert.Equal(t, domain.EventConnected, evt.Type)
	assert.Equal(t, 1, h.ConnectionCount())
}

func TestHub_SubscriptionIsolation(t *testing.T) {
	// Arrange: A subscribes to the room, B does not.
	h := NewHub()
	a := testConn(h)
	b := testConn(h)
	h.handleInbound(a, subscribeMsg("calls"))
	drain(a)

	// Act
	h.Broadcast(domain.Event{Type: domain.EventCallCreated, Room: "calls"})

	// Assert: delivered to A, never to B.
	evt := recvEvent(t, a)
	assert.Equal(t, domain.EventCallCreated, evt.Type)
	assert.Empty(t, b.send, "unsubscribed connection must receive nothing")
}

func TestHub_BroadcastToEmptyRoomIsNoop(t *testing.T) {
	h := NewHub()
	c := testConn(h)

	h.Broadcast(domain.Event{Type: domain.EventCallUpdated, Room: "calls"})

	assert.Empty(t, c.send)
}

func TestHub_UnsubscribeIdempotence(t *testing.T) {
	h := NewHub()
	c := testConn(h)

	// Unsubscribing from a room never joined: no error, no state change,
	// and the hub still confirms it.
	h.handleInbound(c, []byte(`{"type":"unsubscribe","data":{"room":"calls"}}`))

	evt := recvEvent(t, c)
	assert.Equal(t, domain.EventUnsubscribed, evt.Type)
	assert.Empty(t, c.rooms)
	assert.Empty(t, h.rooms)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	c := testConn(h)
	h.handleInbound(c, subscribeMsg("queue"))
	h.handleInbound(c, []byte(`{"type":"unsubscribe","data":{"room":"queue"}}`))
	drain(c)

	h.Broadcast(domain.Event{Type: domain.EventQueueLogin, Room: "queue"})

	assert.Empty(t, c.send)
}

func TestHub_AuthIsIdempotentLastWins(t *testing.T) {
	h := NewHub()
	c := testConn(h)
	h.handleInbound(c, subscribeMsg("calls"))
	drain(c)

	h.handleInbound(c, []byte(`{"type":"auth","data":{"userId":7,"memberId":3}}`))
	h.handleInbound(c, []byte(`{"type":"auth","data":{"userId":9}}`))

	assert.Equal(t, uint(9), c.userID)
	// Re-auth must not touch subscriptions.
	assert.Contains(t, c.rooms, "calls")
}

func TestHub_PingUpdatesLivenessAndRepliesPong(t *testing.T) {
	h := NewHub()
	c := testConn(h)
	before := c.lastSeen

	h.handleInbound(c, []byte(`{"type":"ping"}`))

	evt := recvEvent(t, c)
	assert.Equal(t, domain.EventPong, evt.Type)
	assert.True(t, c.lastSeen.After(before) || c.lastSeen.Equal(before))
}

func TestHub_UnknownMessageTypeDropped(t *testing.T) {
	h := NewHub()
	c := testConn(h)

	h.handleInbound(c, []byte(`{"type":"teleport"}`))
	h.handleInbound(c, []byte(`not json at all`))

	// Connection survives and stays registered, nothing was sent back.
	assert.Empty(t, c.send)
	assert.Equal(t, 1, h.ConnectionCount())
}

func TestHub_UnregisterIdempotent(t *testing.T) {
	h := NewHub()
	c := testConn(h)
	h.handleInbound(c, subscribeMsg("calls"))

	h.unregister(c)
	h.unregister(c) // second call must be a no-op

	assert.Equal(t, 0, h.ConnectionCount())
	assert.Empty(t, h.rooms, "room index must be cleaned on disconnect")
}

func TestHub_UnregisterRemovesFromAllRooms(t *testing.T) {
	h := NewHub()
	a := testConn(h)
	b := testConn(h)
	h.handleInbound(a, subscribeMsg("calls"))
	h.handleInbound(a, subscribeMsg("queue"))
	h.handleInbound(b, subscribeMsg("calls"))
	drain(a)
	drain(b)

	h.unregister(a)
	h.Broadcast(domain.Event{Type: domain.EventCallUpdated, Room: "calls"})

	// B still gets the broadcast; A's membership is gone everywhere.
	evt := recvEvent(t, b)
	assert.Equal(t, domain.EventCallUpdated, evt.Type)
	_, queueExists := h.rooms["queue"]
	assert.False(t, queueExists, "empty rooms are dropped from the index")
}

func TestHub_BrokenConnectionIsolatedDuringBroadcast(t *testing.T) {
	// Arrange: two subscribers, one with a full outbound buffer.
	h := NewHub()
	healthy := testConn(h)
	broken := testConn(h)
	h.handleInbound(healthy, subscribeMsg("calls"))
	h.handleInbound(broken, subscribeMsg("calls"))
	drain(healthy)
	drain(broken)
	for i := 0; i < sendBufferSize; i++ {
		broken.send <- []byte("{}")
	}

	// Act
	h.Broadcast(domain.Event{Type: domain.EventCallCreated, Room: "calls"})

	// Assert: healthy subscriber delivered, broken one disconnected.
	evt := recvEvent(t, healthy)
	assert.Equal(t, domain.EventCallCreated, evt.Type)
	assert.Equal(t, 1, h.ConnectionCount())
	_, stillRegistered := h.conns[broken.id]
	assert.False(t, stillRegistered)
}

func TestHub_ConnectionCount(t *testing.T) {
	h := NewHub()
	assert.Equal(t, 0, h.ConnectionCount())

	a := testConn(h)
	_ = testConn(h)
	assert.Equal(t, 2, h.ConnectionCount())

	h.unregister(a)
	assert.Equal(t, 1, h.ConnectionCount())
}

func TestHub_RunExitsOnStop(t *testing.T) {
	h := NewHub()
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	h.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub loop did not exit after Stop")
	}
}

func TestHub_RequestsAfterStopAreNoops(t *testing.T) {
	h := NewHub()
	c := testConn(h)

	h.Stop()
	h.Stop() // idempotent

	// The exact sequence every read pump runs while its socket unwinds
	// during shutdown. None of it may panic or land in the loop.
	assert.False(t, h.Unregister(c))
	assert.False(t, h.Register(NewConn(h, nil)))
	assert.False(t, h.QueueInbound(c, []byte(`{"type":"ping"}`)))
}

func TestHub_StaleConnectionsSwept(t *testing.T) {
	h := NewHub()
	fresh := testConn(h)
	stale := testConn(h)
	h.mu.Lock()
	stale.lastSeen = time.Now().Add(-2 * livenessTimeout)
	h.mu.Unlock()

	h.closeStale()

	assert.Equal(t, 1, h.ConnectionCount())
	_, ok := h.conns[fresh.id]
	assert.True(t, ok, "a live connection must survive the sweep")
}

func TestParseInbound_ClosedTypeSet(t *testing.T) {
	for _, typ := range []InboundType{InboundAuth, InboundSubscribe, InboundUnsubscribe, InboundPing} {
		_, err := ParseInbound([]byte(`{"type":"` + string(typ) + `"}`))
		assert.NoError(t, err, "type %q", typ)
	}

	_, err := ParseInbound([]byte(`{"type":"broadcast"}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestInboundMessage_TargetRoom(t *testing.T) {
	msg, err := ParseInbound([]byte(`{"type":"subscribe","room":"calls"}`))
	require.NoError(t, err)
	assert.Equal(t, "calls", msg.TargetRoom())

	// data.room wins over the top-level field.
	msg, err = ParseInbound([]byte(`{"type":"subscribe","room":"calls","data":{"room":"queue"}}`))
	require.NoError(t, err)
	assert.Equal(t, "queue", msg.TargetRoom())
}
