package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/repository"
)

type MessageRepo struct {
	s *Store
}

// Create holds the room lock while the sequence is issued and the message
// appended, so history order always equals sequence order.
func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	unlock := r.s.locks.Lock(msg.RoomID)
	defer unlock()

	r.s.mu.RLock()
	_, ok := r.s.rooms[msg.RoomID]
	r.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("room %s: %w", msg.RoomID, domain.ErrNotFound)
	}

	msg.Sequence = r.s.seq.Next(msg.RoomID)

	stored := *msg
	stored.Content = cloneString(msg.Content)
	stored.FileURL = cloneString(msg.FileURL)

	r.s.mu.Lock()
	r.s.messages[msg.ID] = stored
	r.s.roomMessages[msg.RoomID] = append(r.s.roomMessages[msg.RoomID], msg.ID)
	r.s.mu.Unlock()
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	out := r.s.joinMessageLocked(msg)
	return &out, nil
}

func (r *MessageRepo) List(_ context.Context, q repository.MessageQuery) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.roomMessages[q.RoomID]
	var selected []uuid.UUID
	switch {
	case q.After != nil:
		for _, id := range ids {
			if r.s.messages[id].Sequence > *q.After {
				selected = append(selected, id)
				if len(selected) == q.Limit {
					break
				}
			}
		}
	default:
		end := len(ids)
		if q.Before != nil {
			end = 0
			for i, id := range ids {
				if r.s.messages[id].Sequence >= *q.Before {
					break
				}
				end = i + 1
			}
		}
		start := end - q.Limit
		if start < 0 {
			start = 0
		}
		selected = ids[start:end]
	}

	out := make([]domain.Message, 0, len(selected))
	for _, id := range selected {
		out = append(out, r.s.joinMessageLocked(r.s.messages[id]))
	}
	return out, nil
}

func (r *MessageRepo) UpdateContent(_ context.Context, id uuid.UUID, content string) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok || !msg.Editable() {
		return nil, nil
	}
	now := time.Now().UTC()
	msg.Content = &content
	msg.EditedAt = &now
	msg.UpdatedAt = now
	msg.Version++
	r.s.messages[id] = msg

	out := r.s.joinMessageLocked(msg)
	return &out, nil
}

func (r *MessageRepo) SoftDelete(_ context.Context, id uuid.UUID) (*domain.Message, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return nil, false, nil
	}
	changed := false
	if !msg.Deleted {
		msg.Tombstone(time.Now().UTC())
		r.s.messages[id] = msg
		changed = true
	}
	out := r.s.joinMessageLocked(msg)
	return &out, changed, nil
}

func (s *Store) joinMessageLocked(msg domain.Message) domain.Message {
	msg.Content = cloneString(msg.Content)
	msg.FileURL = cloneString(msg.FileURL)
	if m, ok := s.members[msg.AuthorID]; ok {
		msg.AuthorRole = m.Role
		if u, ok := s.users[m.UserID]; ok {
			msg.AuthorUsername = u.Username
			msg.AuthorDisplayName = u.DisplayName
		}
	}
	msg.Decorate()
	return msg
}
