package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeRoomSubscribe   = "room.subscribe"
	EventTypeRoomUnsubscribe = "room.unsubscribe"
	EventTypeTypingStart     = "typing.start"
	EventTypeTypingStop      = "typing.stop"
	EventTypePing            = "ping"
)

// Event types - Server → Client
const (
	EventTypeMessageCreated   = "message.created"
	EventTypeMessageUpdated   = "message.updated"
	EventTypeMessageDeleted   = "message.deleted"
	EventTypeRoomSubscribed   = "room.subscribed"
	EventTypeRoomUnsubscribed = "room.unsubscribed"
	EventTypeTyping           = "typing"
	EventTypePong             = "pong"
	EventTypeError            = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type RoomPayload struct {
	RoomID uuid.UUID `json:"room_id"`
}

// --- Server → Client payloads ---

type TypingPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Typing bool      `json:"typing"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, roomID *uuid.UUID, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// FromDomain builds the wire frame of a room event. Seq carries the
// message sequence so clients can order and dedupe without the payload.
func FromDomain(evt domain.Event) (*Event, error) {
	var eventType string
	switch evt.Kind {
	case domain.EventMessageCreated:
		eventType = EventTypeMessageCreated
	case domain.EventMessageUpdated:
		eventType = EventTypeMessageUpdated
	case domain.EventMessageDeleted:
		eventType = EventTypeMessageDeleted
	default:
		return nil, fmt.Errorf("unknown event kind %d", uint8(evt.Kind))
	}

	roomID := evt.RoomID
	frame, err := NewEvent(eventType, &roomID, evt.Message)
	if err != nil {
		return nil, err
	}
	frame.Seq = evt.Message.Sequence
	frame.Timestamp = evt.OccurredAt.UnixMilli()
	return frame, nil
}

func encodeDomainEvent(evt domain.Event) ([]byte, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	frame, err := FromDomain(evt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame)
}
