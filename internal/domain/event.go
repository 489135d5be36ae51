package domain

import "fmt"

// EventType is the closed set of server-to-client message types. Adding a
// type here obliges every switch over EventType to handle it.
type EventType string

const (
	// Control replies.
	EventConnected    EventType = "connected"
	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
	EventPong         EventType = "pong"

	// Domain events.
	EventCallCreated    EventType = "call:created"
	EventCallUpdated    EventType = "call:updated"
	EventCallClosed     EventType = "call:closed"
	EventCallReopened   EventType = "call:reopened"
	EventCallAssigned   EventType = "call:assigned"
	EventCallUnassigned EventType = "call:unassigned"
	EventQueueLogin     EventType = "queue:login"
	EventQueueLogout    EventType = "queue:logout"
	EventQueueUpdated   EventType = "queue:updated"
	EventNotification   EventType = "notification"
)

// Room names. A broadcast targets exactly one room.
const (
	RoomCalls = "calls"
	RoomQueue = "queue"
)

// CallRoom returns the per-call detail room for a call id.
func CallRoom(callID uint) string {
	return fmt.Sprintf("call:%d", callID)
}

// Event is a fire-and-forget broadcast payload. No identifier, no delivery
// acknowledgment, no ordering guarantee across rooms.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
	Room string    `json:"room,omitempty"`
}
