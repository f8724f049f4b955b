package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoomKind discriminates the two places messages can live.
type RoomKind string

const (
	RoomKindChannel      RoomKind = "channel"
	RoomKindConversation RoomKind = "conversation"
)

func (k RoomKind) Valid() bool {
	switch k {
	case RoomKindChannel, RoomKindConversation:
		return true
	}
	return false
}

// Room is a channel or a direct conversation. It is the unit of message
// grouping, sequencing and subscription.
type Room struct {
	ID           uuid.UUID `json:"id"`
	Kind         RoomKind  `json:"kind"`
	ServerID     uuid.UUID `json:"server_id"`
	LastSequence int64     `json:"last_sequence"`
	CreatedAt    time.Time `json:"created_at"`
}

// TopicPrefix prefixes every realtime topic name.
const TopicPrefix = "chorus:room:"

// Topic returns the realtime topic for a room.
func Topic(roomID uuid.UUID) string {
	return TopicPrefix + roomID.String()
}

// RoomFromTopic is the inverse of Topic.
func RoomFromTopic(topic string) (uuid.UUID, error) {
	if len(topic) <= len(TopicPrefix) || topic[:len(TopicPrefix)] != TopicPrefix {
		return uuid.Nil, fmt.Errorf("not a room topic: %q", topic)
	}
	return uuid.Parse(topic[len(TopicPrefix):])
}

type ChannelType string

const (
	ChannelTypeText  ChannelType = "TEXT"
	ChannelTypeAudio ChannelType = "AUDIO"
	ChannelTypeVideo ChannelType = "VIDEO"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelTypeText, ChannelTypeAudio, ChannelTypeVideo:
		return true
	}
	return false
}

// DefaultChannelName is created with every server and cannot be taken by other channels.
const DefaultChannelName = "general"

type Channel struct {
	ID        uuid.UUID   `json:"id"`
	ServerID  uuid.UUID   `json:"server_id"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type"`
	CreatedBy uuid.UUID   `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// Conversation is a direct room between two members of the same server.
// MemberOneID always sorts before MemberTwoID.
type Conversation struct {
	ID          uuid.UUID `json:"id"`
	ServerID    uuid.UUID `json:"server_id"`
	MemberOneID uuid.UUID `json:"member_one_id"`
	MemberTwoID uuid.UUID `json:"member_two_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasMember reports whether memberID is one of the two participants.
func (c *Conversation) HasMember(memberID uuid.UUID) bool {
	return c.MemberOneID == memberID || c.MemberTwoID == memberID
}

// CanonicalPair orders two member ids the way conversations are stored.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
