package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind is the closed set of room events.
type EventKind uint8

const (
	EventMessageCreated EventKind = iota + 1
	EventMessageUpdated
	EventMessageDeleted
)

var eventKindNames = map[EventKind]string{
	EventMessageCreated: "message.created",
	EventMessageUpdated: "message.updated",
	EventMessageDeleted: "message.deleted",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

func (k EventKind) Valid() bool {
	_, ok := eventKindNames[k]
	return ok
}

func (k EventKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid event kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	kind, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseEventKind maps a wire name back to its kind.
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range eventKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is a room event carrying the full resulting message state.
type Event struct {
	Kind       EventKind `json:"kind"`
	RoomID     uuid.UUID `json:"room_id"`
	Message    Message   `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(kind EventKind, msg Message) Event {
	return Event{
		Kind:       kind,
		RoomID:     msg.RoomID,
		Message:    msg,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate rejects events that cannot be routed or applied.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid event kind %d", uint8(e.Kind))
	}
	if e.RoomID == uuid.Nil || e.RoomID != e.Message.RoomID {
		return fmt.Errorf("event room %s does not match message room %s", e.RoomID, e.Message.RoomID)
	}
	return nil
}
