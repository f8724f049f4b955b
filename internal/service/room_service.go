package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/repository"
)

// RoomAccess is what a user may do inside one room, resolved per request.
type RoomAccess struct {
	Room   domain.Room
	Member domain.Member
}

// MediaRoom identifies the voice/video room of a channel or conversation.
type MediaRoom struct {
	RoomID    uuid.UUID       `json:"room_id"`
	Kind      domain.RoomKind `json:"kind"`
	MediaRoom string          `json:"media_room"`
}

type RoomService struct {
	roomRepo   repository.RoomRepository
	serverRepo repository.ServerRepository
}

func NewRoomService(roomRepo repository.RoomRepository, serverRepo repository.ServerRepository) *RoomService {
	return &RoomService{
		roomRepo:   roomRepo,
		serverRepo: serverRepo,
	}
}

// Resolve checks that userID can view roomID and returns its member record.
func (s *RoomService) Resolve(ctx context.Context, userID, roomID uuid.UUID) (*RoomAccess, error) {
	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	member, err := s.serverRepo.GetMember(ctx, room.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotMember
	}

	switch room.Kind {
	case domain.RoomKindChannel:
		// Every member sees every channel of the server.
	case domain.RoomKindConversation:
		conv, err := s.roomRepo.GetConversation(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, ErrRoomNotFound
		}
		if !conv.HasMember(member.ID) {
			return nil, ErrNotParticipant
		}
	default:
		return nil, fmt.Errorf("room %s has unknown kind %q", roomID, room.Kind)
	}

	return &RoomAccess{Room: *room, Member: *member}, nil
}

// CanView is the realtime subscription check.
func (s *RoomService) CanView(ctx context.Context, userID, roomID uuid.UUID) error {
	_, err := s.Resolve(ctx, userID, roomID)
	return err
}

// Media returns the media room of a conversation or an audio/video channel.
func (s *RoomService) Media(ctx context.Context, userID, roomID uuid.UUID) (*MediaRoom, error) {
	access, err := s.Resolve(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	switch access.Room.Kind {
	case domain.RoomKindChannel:
		ch, err := s.roomRepo.GetChannel(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return nil, ErrChannelNotFound
		}
		if ch.Type == domain.ChannelTypeText {
			return nil, ErrNoMediaRoom
		}
	case domain.RoomKindConversation:
	default:
		return nil, fmt.Errorf("room %s has unknown kind %q", roomID, access.Room.Kind)
	}

	return &MediaRoom{
		RoomID:    roomID,
		Kind:      access.Room.Kind,
		MediaRoom: roomID.String(),
	}, nil
}
