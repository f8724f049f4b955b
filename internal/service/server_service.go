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

type ServerService struct {
	serverRepo repository.ServerRepository
	roomRepo   repository.RoomRepository
}

func NewServerService(serverRepo repository.ServerRepository, roomRepo repository.RoomRepository) *ServerService {
	return &ServerService{
		serverRepo: serverRepo,
		roomRepo:   roomRepo,
	}
}

type CreateServerInput struct {
	Name     string  `json:"name"`
	ImageURL *string `json:"image_url"`
}

type UpdateServerInput struct {
	Name     *string `json:"name"`
	ImageURL *string `json:"image_url"`
}

type UpdateMemberInput struct {
	Role domain.MemberRole `json:"role"`
}

// Create makes userID the owner and first ADMIN of a new server that
// starts with a "general" text channel.
func (s *ServerService) Create(ctx context.Context, userID uuid.UUID, input CreateServerInput) (*domain.ServerDetails, error) {
	now := time.Now().UTC()
	server := &domain.Server{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(input.Name),
		ImageURL:   input.ImageURL,
		InviteCode: uuid.NewString(),
		OwnerID:    userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	owner := &domain.Member{
		ID:        uuid.New(),
		ServerID:  server.ID,
		UserID:    userID,
		Role:      domain.RoleAdmin,
		CreatedAt: now,
	}
	general := &domain.Channel{
		ID:        uuid.New(),
		ServerID:  server.ID,
		Name:      domain.DefaultChannelName,
		Type:      domain.ChannelTypeText,
		CreatedBy: userID,
		CreatedAt: now,
	}

	if err := s.serverRepo.Create(ctx, server, owner, general); err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	return s.details(ctx, server)
}

// Get returns the server with its channels and members.
func (s *ServerService) Get(ctx context.Context, userID, serverID uuid.UUID) (*domain.ServerDetails, error) {
	server, _, err := s.requireMember(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, server)
}

func (s *ServerService) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Server, error) {
	servers, err := s.serverRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if servers == nil {
		servers = []domain.Server{}
	}
	return servers, nil
}

func (s *ServerService) Update(ctx context.Context, userID, serverID uuid.UUID, input UpdateServerInput) (*domain.Server, error) {
	server, _, err := s.requireAdmin(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		server.Name = strings.TrimSpace(*input.Name)
	}
	if input.ImageURL != nil {
		server.ImageURL = input.ImageURL
	}
	server.UpdatedAt = time.Now().UTC()

	if err := s.serverRepo.Update(ctx, server); err != nil {
		return nil, fmt.Errorf("updating server: %w", err)
	}
	return server, nil
}

// Delete removes the server together with its rooms and history.
func (s *ServerService) Delete(ctx context.Context, userID, serverID uuid.UUID) error {
	if _, _, err := s.requireAdmin(ctx, userID, serverID); err != nil {
		return err
	}
	return s.serverRepo.Delete(ctx, serverID)
}

func (s *ServerService) RegenerateInvite(ctx context.Context, userID, serverID uuid.UUID) (*domain.Server, error) {
	server, _, err := s.requireAdmin(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}

	server.InviteCode = uuid.NewString()
	server.UpdatedAt = time.Now().UTC()
	if err := s.serverRepo.Update(ctx, server); err != nil {
		return nil, fmt.Errorf("regenerating invite: %w", err)
	}
	return server, nil
}

// JoinByInvite adds userID as a GUEST. Joining a server twice is a no-op.
func (s *ServerService) JoinByInvite(ctx context.Context, userID uuid.UUID, code string) (*domain.Server, error) {
	server, err := s.serverRepo.GetByInviteCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, ErrInviteNotFound
	}

	existing, err := s.serverRepo.GetMember(ctx, server.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return server, nil
	}

	member := &domain.Member{
		ID:        uuid.New(),
		ServerID:  server.ID,
		UserID:    userID,
		Role:      domain.RoleGuest,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.serverRepo.AddMember(ctx, member); err != nil && !errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("joining server: %w", err)
	}
	return server, nil
}

func (s *ServerService) Leave(ctx context.Context, userID, serverID uuid.UUID) error {
	server, member, err := s.requireMember(ctx, userID, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID == userID {
		return ErrOwnerCannotLeave
	}
	return s.serverRepo.RemoveMember(ctx, member.ID)
}

func (s *ServerService) UpdateMemberRole(ctx context.Context, userID, serverID, memberID uuid.UUID, input UpdateMemberInput) (*domain.Member, error) {
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	target, err := s.manageableMember(ctx, userID, serverID, memberID)
	if err != nil {
		return nil, err
	}

	if err := s.serverRepo.UpdateMemberRole(ctx, target.ID, input.Role); err != nil {
		return nil, fmt.Errorf("updating member role: %w", err)
	}
	target.Role = input.Role
	return target, nil
}

func (s *ServerService) KickMember(ctx context.Context, userID, serverID, memberID uuid.UUID) error {
	target, err := s.manageableMember(ctx, userID, serverID, memberID)
	if err != nil {
		return err
	}
	return s.serverRepo.RemoveMember(ctx, target.ID)
}

// manageableMember loads a member an admin may change: not the caller and
// not the server owner.
func (s *ServerService) manageableMember(ctx context.Context, userID, serverID, memberID uuid.UUID) (*domain.Member, error) {
	server, _, err := s.requireAdmin(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}

	target, err := s.serverRepo.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.ServerID != serverID {
		return nil, ErrMemberNotFound
	}
	if target.UserID == userID {
		return nil, ErrCannotModifySelf
	}
	if target.UserID == server.OwnerID {
		return nil, ErrCannotModifyOwner
	}
	return target, nil
}

func (s *ServerService) requireMember(ctx context.Context, userID, serverID uuid.UUID) (*domain.Server, *domain.Member, error) {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return nil, nil, err
	}
	if server == nil {
		return nil, nil, ErrServerNotFound
	}

	member, err := s.serverRepo.GetMember(ctx, serverID, userID)
	if err != nil {
		return nil, nil, err
	}
	if member == nil {
		return nil, nil, ErrNotMember
	}
	return server, member, nil
}

func (s *ServerService) requireAdmin(ctx context.Context, userID, serverID uuid.UUID) (*domain.Server, *domain.Member, error) {
	server, member, err := s.requireMember(ctx, userID, serverID)
	if err != nil {
		return nil, nil, err
	}
	if member.Role != domain.RoleAdmin {
		return nil, nil, ErrNotAdmin
	}
	return server, member, nil
}

func (s *ServerService) details(ctx context.Context, server *domain.Server) (*domain.ServerDetails, error) {
	channels, err := s.roomRepo.ListChannels(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	members, err := s.serverRepo.ListMembers(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	if members == nil {
		members = []domain.Member{}
	}
	return &domain.ServerDetails{Server: *server, Channels: channels, Members: members}, nil
}
