package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
)

type RoomRepo struct {
	s *Store
}

func (s *Store) putChannelLocked(ch *domain.Channel) {
	s.rooms[ch.ID] = domain.Room{ID: ch.ID, Kind: domain.RoomKindChannel, ServerID: ch.ServerID, CreatedAt: ch.CreatedAt}
	s.channels[ch.ID] = *ch
}

func (r *RoomRepo) GetRoom(_ context.Context, id uuid.UUID) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, nil
	}
	room.LastSequence = r.s.seq.Last(id)
	return &room, nil
}

func (r *RoomRepo) CreateChannel(_ context.Context, ch *domain.Channel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.channels {
		if existing.ServerID == ch.ServerID && existing.Name == ch.Name {
			return fmt.Errorf("%w: channels_server_id_name_key", domain.ErrConflict)
		}
	}
	r.s.putChannelLocked(ch)
	return nil
}

func (r *RoomRepo) GetChannel(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if ch, ok := r.s.channels[id]; ok {
		return &ch, nil
	}
	return nil, nil
}

func (r *RoomRepo) GetChannelByName(_ context.Context, serverID uuid.UUID, name string) (*domain.Channel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, ch := range r.s.channels {
		if ch.ServerID == serverID && ch.Name == name {
			return &ch, nil
		}
	}
	return nil, nil
}

func (r *RoomRepo) ListChannels(_ context.Context, serverID uuid.UUID) ([]domain.Channel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Channel
	for _, ch := range r.s.channels {
		if ch.ServerID == serverID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RoomRepo) CreateConversation(_ context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.conversations {
		if existing.MemberOneID == conv.MemberOneID && existing.MemberTwoID == conv.MemberTwoID {
			return &existing, nil
		}
	}
	r.s.rooms[conv.ID] = domain.Room{ID: conv.ID, Kind: domain.RoomKindConversation, ServerID: conv.ServerID, CreatedAt: conv.CreatedAt}
	r.s.conversations[conv.ID] = *conv
	out := *conv
	return &out, nil
}

func (r *RoomRepo) GetConversation(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if conv, ok := r.s.conversations[id]; ok {
		return &conv, nil
	}
	return nil, nil
}

func (r *RoomRepo) GetConversationByMembers(_ context.Context, memberOneID, memberTwoID uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, conv := range r.s.conversations {
		if conv.MemberOneID == memberOneID && conv.MemberTwoID == memberTwoID {
			return &conv, nil
		}
	}
	return nil, nil
}
