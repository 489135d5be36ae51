package dispatch

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

// QueryCache is the local query cache the invalidator schedules refetches
// through. It performs no network I/O here; invalidating a key marks the
// cached result stale so the owning view refetches it.
type QueryCache interface {
	Invalidate(key ...string)
}

// Invalidator translates inbound events into cache invalidations using a
// static prefix table: call events touch the call queries, queue events
// touch the queue and dispatcher queries. Unrecognized domain events are
// logged and ignored, never fatal.
type Invalidator struct {
	cache QueryCache
}

// NewInvalidator creates an Invalidator.
func NewInvalidator(cache QueryCache) *Invalidator {
	if cache == nil {
		panic("QueryCache cannot be nil for Invalidator")
	}
	return &Invalidator{cache: cache}
}

// HandleEvent maps one event onto the queries it staled. Wire it to
// Config.OnEvent.
func (inv *Invalidator) HandleEvent(evt Event) {
	switch {
	case strings.HasPrefix(evt.Type, "call:"):
		inv.cache.Invalidate("calls")
		if id := eventCallID(evt.Data); id != "" {
			inv.cache.Invalidate("call", id)
		}

	case strings.HasPrefix(evt.Type, "queue:"):
		inv.cache.Invalidate("queue-sessions")
		inv.cache.Invalidate("queue-members")
		inv.cache.Invalidate("dispatcher-status")

	case evt.Type == "connected" || evt.Type == "subscribed" ||
		evt.Type == "unsubscribed" || evt.Type == "pong" || evt.Type == "notification":
		// Control traffic and notifications cache nothing.

	default:
		logrus.WithField("event_type", evt.Type).Debug("dispatch client: ignoring unrecognized event type")
	}
}

// eventCallID extracts the call identifier from an event payload, accepting
// either an "id" or a "callId" field, numeric or string.
func eventCallID(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var payload struct {
		ID     any `json:"id"`
		CallID any `json:"callId"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return ""
	}
	if id := idString(payload.ID); id != "" {
		return id
	}
	return idString(payload.CallID)
}

// idString normalizes a decoded identifier; anything but a string or a
// number yields "".
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return ""
	}
}
