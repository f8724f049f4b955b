package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/repository"
)

type ChannelService struct {
	roomRepo   repository.RoomRepository
	serverRepo repository.ServerRepository
}

func NewChannelService(roomRepo repository.RoomRepository, serverRepo repository.ServerRepository) *ChannelService {
	return &ChannelService{
		roomRepo:   roomRepo,
		serverRepo: serverRepo,
	}
}

type CreateChannelInput struct {
	Name string             `json:"name"`
	Type domain.ChannelType `json:"type"`
}

func (s *ChannelService) Create(ctx context.Context, userID, serverID uuid.UUID, input CreateChannelInput) (*domain.Channel, error) {
	member, err := s.member(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}
	if !member.Role.CanModerate() {
		return nil, ErrNotModerator
	}

	name := strings.ToLower(strings.TrimSpace(input.Name))
	if name == domain.DefaultChannelName {
		return nil, ErrChannelNameReserved
	}
	chType := input.Type
	if chType == "" {
		chType = domain.ChannelTypeText
	}
	if !chType.Valid() {
		return nil, ErrInvalidChannelType
	}

	ch := &domain.Channel{
		ID:        uuid.New(),
		ServerID:  serverID,
		Name:      name,
		Type:      chType,
		CreatedBy: userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.roomRepo.CreateChannel(ctx, ch); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrChannelNameTaken
		}
		return nil, fmt.Errorf("creating channel: %w", err)
	}
	return ch, nil
}

func (s *ChannelService) List(ctx context.Context, userID, serverID uuid.UUID) ([]domain.Channel, error) {
	if _, err := s.member(ctx, userID, serverID); err != nil {
		return nil, err
	}
	channels, err := s.roomRepo.ListChannels(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	return channels, nil
}

func (s *ChannelService) member(ctx context.Context, userID, serverID uuid.UUID) (*domain.Member, error) {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, ErrServerNotFound
	}
	member, err := s.serverRepo.GetMember(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotMember
	}
	return member, nil
}
