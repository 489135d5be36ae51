package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeCache records every invalidated key set.
type fakeCache struct {
	invalidated [][]string
}

func (f *fakeCache) Invalidate(key ...string) {
	f.invalidated = append(f.invalidated, key)
}

func TestInvalidator_CallEvent(t *testing.T) {
	cache := &fakeCache{}
	inv := NewInvalidator(cache)

	inv.HandleEvent(Event{
		Type: "call:created",
		Data: json.RawMessage(`{"id":"c1"}`),
		Room: "calls",
	})

	assert.Equal(t, [][]string{{"calls"}, {"call", "c1"}}, cache.invalidated)
}

func TestInvalidator_CallEventNumericID(t *testing.T) {
	cache := &fakeCache{}
	inv := NewInvalidator(cache)

	inv.HandleEvent(Event{Type: "call:closed", Data: json.RawMessage(`{"id":42,"status":"closed"}`)})

	assert.Equal(t, [][]string{{"calls"}, {"call", "42"}}, cache.invalidated)
}

func TestInvalidator_CallEventStringCallIDField(t *testing.T) {
	cache := &fakeCache{}
	inv := NewInvalidator(cache)

	inv.HandleEvent(Event{Type: "call:assigned", Data: json.RawMessage(`{"callId":"17","memberId":3}`)})

	assert.Equal(t, [][]string{{"calls"}, {"call", "17"}}, cache.invalidated)
}

func TestInvalidator_CallEventWithoutID(t *testing.T) {
	cache := &fakeCache{}
	inv := NewInvalidator(cache)

	// No extractable id: only the list query goes stale.
	inv.HandleEvent(Event{Type: "call:updated"})

	assert.Equal(t, [][]string{{"calls"}}, cache.invalidated)
}

func TestInvalidator_QueueEvent(t *testing.T) {
	cache := &fakeCache{}
	inv := NewInvalidator(cache)

	inv.HandleEvent(Event{Type: "queue:login", Data: json.RawMessage(`{"memberId":3}`)})

	assert.Equal(t,
		[][]string{{"queue-sessions"}, {"queue-members"}, {"dispatcher-status"}},
		cache.invalidated)
}

func TestInvalidator_ControlAndUnknownEventsIgnored(t *testing.T) {
	cache := &fakeCache{}
	inv := NewInvalidator(cache)

	for _, typ := range []string{"connected", "subscribed", "unsubscribed", "pong", "notification", "weather:update"} {
		inv.HandleEvent(Event{Type: typ})
	}

	assert.Empty(t, cache.invalidated)
}
