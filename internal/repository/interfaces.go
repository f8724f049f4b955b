package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
)

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type ServerRepository interface {
	// Create inserts the server, its first member and its default channel in one transaction.
	Create(ctx context.Context, server *domain.Server, owner *domain.Member, general *domain.Channel) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Server, error)
	GetByInviteCode(ctx context.Context, code string) (*domain.Server, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Server, error)
	Update(ctx context.Context, server *domain.Server) error
	Delete(ctx context.Context, id uuid.UUID) error
	// AddMember inserts member, or reactivates the user's former membership
	// of the server, in which case member.ID is set to the existing id.
	AddMember(ctx context.Context, member *domain.Member) error
	// RemoveMember marks the member as gone. Member lookups skip departed
	// members but their messages and conversations stay.
	RemoveMember(ctx context.Context, memberID uuid.UUID) error
	UpdateMemberRole(ctx context.Context, memberID uuid.UUID, role domain.MemberRole) error
	GetMember(ctx context.Context, serverID, userID uuid.UUID) (*domain.Member, error)
	GetMemberByID(ctx context.Context, memberID uuid.UUID) (*domain.Member, error)
	ListMembers(ctx context.Context, serverID uuid.UUID) ([]domain.Member, error)
}

type RoomRepository interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	CreateChannel(ctx context.Context, channel *domain.Channel) error
	GetChannel(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
	GetChannelByName(ctx context.Context, serverID uuid.UUID, name string) (*domain.Channel, error)
	ListChannels(ctx context.Context, serverID uuid.UUID) ([]domain.Channel, error)
	// CreateConversation stores conv unless the pair already has one; either
	// way it returns the stored conversation.
	CreateConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetConversationByMembers(ctx context.Context, memberOneID, memberTwoID uuid.UUID) (*domain.Conversation, error)
}

// MessageQuery selects a page of room history. At most one of Before and
// After is set; results are always in ascending sequence order.
type MessageQuery struct {
	RoomID uuid.UUID
	Before *int64
	After  *int64
	Limit  int
}

type MessageRepository interface {
	// Create assigns msg.Sequence atomically with the insert.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	List(ctx context.Context, q MessageQuery) ([]domain.Message, error)
	// UpdateContent edits a message that is not deleted and returns the new
	// state, or (nil, nil) if the message no longer qualifies.
	UpdateContent(ctx context.Context, id uuid.UUID, content string) (*domain.Message, error)
	// SoftDelete tombstones the message and returns the new state, or the
	// unchanged state if it was already deleted.
	SoftDelete(ctx context.Context, id uuid.UUID) (*domain.Message, bool, error)
}
