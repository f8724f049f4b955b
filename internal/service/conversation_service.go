package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/repository"
)

type ConversationService struct {
	roomRepo   repository.RoomRepository
	serverRepo repository.ServerRepository
}

func NewConversationService(roomRepo repository.RoomRepository, serverRepo repository.ServerRepository) *ConversationService {
	return &ConversationService{
		roomRepo:   roomRepo,
		serverRepo: serverRepo,
	}
}

type StartConversationInput struct {
	MemberID uuid.UUID `json:"member_id"`
}

// ConversationView is a conversation as seen by one of its participants.
type ConversationView struct {
	domain.Conversation
	OtherMember domain.Member `json:"other_member"`
}

// GetOrCreate finds or creates the conversation between the caller and
// another member of the same server.
func (s *ConversationService) GetOrCreate(ctx context.Context, userID, serverID uuid.UUID, input StartConversationInput) (*ConversationView, error) {
	me, err := s.serverRepo.GetMember(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return nil, ErrNotMember
	}

	other, err := s.serverRepo.GetMemberByID(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}
	if other == nil || other.ServerID != serverID {
		return nil, ErrMemberNotFound
	}
	if other.ID == me.ID {
		return nil, ErrConversationSelf
	}

	// Sort IDs so one < two (canonical order for CHECK constraint)
	one, two := domain.CanonicalPair(me.ID, other.ID)

	conv, err := s.roomRepo.GetConversationByMembers(ctx, one, two)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv, err = s.roomRepo.CreateConversation(ctx, &domain.Conversation{
			ID:          uuid.New(),
			ServerID:    serverID,
			MemberOneID: one,
			MemberTwoID: two,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
	}

	return &ConversationView{Conversation: *conv, OtherMember: *other}, nil
}
