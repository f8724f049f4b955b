package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/metrics"
	"github.com/vedran77/chorus/internal/repository"
	"github.com/vedran77/chorus/internal/sequence"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Publisher hands room events to the realtime layer. Publish must not
// block on network I/O; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, roomID uuid.UUID, evt domain.Event)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	rooms       *RoomService
	locks       *sequence.Locker
	publisher   Publisher
}

func NewMessageService(messageRepo repository.MessageRepository, rooms *RoomService) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		rooms:       rooms,
		locks:       sequence.NewLocker(),
	}
}

// SetPublisher sets the realtime publisher (optional dependency).
func (s *MessageService) SetPublisher(p Publisher) {
	s.publisher = p
}

type SendMessageInput struct {
	Content string `json:"content"`
	FileURL string `json:"file_url"`
}

type EditMessageInput struct {
	Content string `json:"content"`
}

// ListMessagesInput pages room history. Before and After are sequence
// cursors; with neither set the newest page is returned.
type ListMessagesInput struct {
	Before *int64
	After  *int64
	Limit  int
}

func (s *MessageService) Send(ctx context.Context, userID, roomID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	access, err := s.rooms.Resolve(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(input.Content)
	fileURL := strings.TrimSpace(input.FileURL)
	if content == "" && fileURL == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLength {
		return nil, ErrMessageTooLong
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:                uuid.New(),
		RoomID:            roomID,
		AuthorID:          access.Member.ID,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
		AuthorUsername:    access.Member.Username,
		AuthorDisplayName: access.Member.DisplayName,
		AuthorRole:        access.Member.Role,
	}
	if content != "" {
		msg.Content = &content
	}
	if fileURL != "" {
		msg.FileURL = &fileURL
	}
	msg.Decorate()

	// The room lock spans the insert and the publish so that created
	// events leave this instance in sequence order.
	unlock := s.locks.Lock(roomID)
	defer unlock()

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	metrics.MessageWrites.WithLabelValues(domain.EventMessageCreated.String()).Inc()

	s.publish(ctx, domain.EventMessageCreated, *msg)
	return msg, nil
}

func (s *MessageService) List(ctx context.Context, userID, roomID uuid.UUID, input ListMessagesInput) (*domain.MessagePage, error) {
	if _, err := s.rooms.Resolve(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if input.Before != nil && input.After != nil {
		return nil, ErrInvalidCursor
	}

	limit := input.Limit
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}

	// Dohvati limit+1 da znamo ima li jos
	messages, err := s.messageRepo.List(ctx, repository.MessageQuery{
		RoomID: roomID,
		Before: input.Before,
		After:  input.After,
		Limit:  limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	page := &domain.MessagePage{HasMore: len(messages) > limit}
	if page.HasMore {
		if input.After != nil {
			messages = messages[:limit]
			next := messages[len(messages)-1].Sequence
			page.NextCursor = &next
		} else {
			messages = messages[len(messages)-limit:]
			next := messages[0].Sequence
			page.NextCursor = &next
		}
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	page.Messages = messages
	return page, nil
}

func (s *MessageService) Edit(ctx context.Context, userID, roomID, messageID uuid.UUID, input EditMessageInput) (*domain.Message, error) {
	access, msg, err := s.load(ctx, userID, roomID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != access.Member.ID || !msg.Editable() {
		return nil, ErrCannotEdit
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > domain.MaxContentLength {
		return nil, ErrMessageTooLong
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	updated, err := s.messageRepo.UpdateContent(ctx, messageID, content)
	if err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}
	if updated == nil {
		// Deleted between the check and the update.
		return nil, ErrCannotEdit
	}
	metrics.MessageWrites.WithLabelValues(domain.EventMessageUpdated.String()).Inc()

	s.publish(ctx, domain.EventMessageUpdated, *updated)
	return updated, nil
}

// Delete soft-deletes a message. Deleting an already deleted message
// returns it unchanged and publishes nothing.
func (s *MessageService) Delete(ctx context.Context, userID, roomID, messageID uuid.UUID) (*domain.Message, error) {
	access, msg, err := s.load(ctx, userID, roomID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != access.Member.ID && !access.Member.Role.CanModerate() {
		return nil, ErrCannotDelete
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	deleted, changed, err := s.messageRepo.SoftDelete(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("deleting message: %w", err)
	}
	if deleted == nil {
		return nil, ErrMessageNotFound
	}
	if changed {
		metrics.MessageWrites.WithLabelValues(domain.EventMessageDeleted.String()).Inc()
		s.publish(ctx, domain.EventMessageDeleted, *deleted)
	}
	return deleted, nil
}

func (s *MessageService) load(ctx context.Context, userID, roomID, messageID uuid.UUID) (*RoomAccess, *domain.Message, error) {
	access, err := s.rooms.Resolve(ctx, userID, roomID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg == nil || msg.RoomID != roomID {
		return nil, nil, ErrMessageNotFound
	}
	return access, msg, nil
}

func (s *MessageService) publish(ctx context.Context, kind domain.EventKind, msg domain.Message) {
	if s.publisher == nil {
		return
	}
	// The write already happened; a cancelled request must not drop the event.
	s.publisher.Publish(context.WithoutCancel(ctx), msg.RoomID, domain.NewEvent(kind, msg))
}
