package hub

import (
	"encoding/json"
	"errors"
	"fmt"
)

// InboundType is the closed set of client-to-server message types.
type InboundType string

const (
	InboundAuth        InboundType = "auth"
	InboundSubscribe   InboundType = "subscribe"
	InboundUnsubscribe InboundType = "unsubscribe"
	InboundPing        InboundType = "ping"
)

// ErrUnknownMessageType marks an inbound type outside the closed set. The
// hub logs and drops such messages; the connection stays open.
var ErrUnknownMessageType = errors.New("hub: unknown message type")

// InboundPayload carries the data object of an inbound message.
type InboundPayload struct {
	UserID   uint   `json:"userId,omitempty"`
	MemberID uint   `json:"memberId,omitempty"`
	Room     string `json:"room,omitempty"`
}

// InboundMessage is the wire shape of a client control message:
// { "type": string, "data"?: object, "room"?: string }.
type InboundMessage struct {
	Type InboundType    `json:"type"`
	Data InboundPayload `json:"data"`
	Room string         `json:"room,omitempty"`
}

// TargetRoom returns the room the message refers to, accepting it either
// inside data or at the top level.
func (m InboundMessage) TargetRoom() string {
	if m.Data.Room != "" {
		return m.Data.Room
	}
	return m.Room
}

// ParseInbound decodes and validates a raw client message.
func ParseInbound(raw []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("hub: malformed message: %w", err)
	}
	switch msg.Type {
	case InboundAuth, InboundSubscribe, InboundUnsubscribe, InboundPing:
		return msg, nil
	default:
		return InboundMessage{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
}
