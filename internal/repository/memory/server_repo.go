package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
)

type ServerRepo struct {
	s *Store
}

func (r *ServerRepo) Create(_ context.Context, server *domain.Server, owner *domain.Member, general *domain.Channel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sv := range r.s.servers {
		if sv.InviteCode == server.InviteCode {
			return fmt.Errorf("%w: servers_invite_code_key", domain.ErrConflict)
		}
	}
	r.s.servers[server.ID] = *server
	r.s.members[owner.ID] = *owner
	r.s.putChannelLocked(general)
	return nil
}

func (r *ServerRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Server, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if sv, ok := r.s.servers[id]; ok {
		return &sv, nil
	}
	return nil, nil
}

func (r *ServerRepo) GetByInviteCode(_ context.Context, code string) (*domain.Server, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sv := range r.s.servers {
		if sv.InviteCode == code {
			return &sv, nil
		}
	}
	return nil, nil
}

func (r *ServerRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Server, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Server
	for _, m := range r.s.members {
		if m.UserID == userID && m.Active() {
			if sv, ok := r.s.servers[m.ServerID]; ok {
				out = append(out, sv)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ServerRepo) Update(_ context.Context, server *domain.Server) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.servers[server.ID]; ok {
		r.s.servers[server.ID] = *server
	}
	return nil
}

// Delete cascades like the postgres foreign keys do.
func (r *ServerRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.servers, id)
	for mid, m := range r.s.members {
		if m.ServerID == id {
			delete(r.s.members, mid)
		}
	}
	for rid, room := range r.s.rooms {
		if room.ServerID != id {
			continue
		}
		for _, msgID := range r.s.roomMessages[rid] {
			delete(r.s.messages, msgID)
		}
		delete(r.s.roomMessages, rid)
		delete(r.s.channels, rid)
		delete(r.s.conversations, rid)
		delete(r.s.rooms, rid)
	}
	return nil
}

func (r *ServerRepo) AddMember(_ context.Context, m *domain.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.members {
		if existing.ServerID != m.ServerID || existing.UserID != m.UserID {
			continue
		}
		if existing.Active() {
			return fmt.Errorf("%w: members_server_id_user_id_key", domain.ErrConflict)
		}
		existing.Role = m.Role
		existing.CreatedAt = m.CreatedAt
		existing.LeftAt = nil
		r.s.members[id] = existing
		m.ID = id
		return nil
	}
	r.s.members[m.ID] = *m
	return nil
}

func (r *ServerRepo) RemoveMember(_ context.Context, memberID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.members[memberID]; ok && m.Active() {
		now := time.Now().UTC()
		m.LeftAt = &now
		r.s.members[memberID] = m
	}
	return nil
}

func (r *ServerRepo) UpdateMemberRole(_ context.Context, memberID uuid.UUID, role domain.MemberRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.members[memberID]; ok && m.Active() {
		m.Role = role
		r.s.members[memberID] = m
	}
	return nil
}

func (r *ServerRepo) GetMember(_ context.Context, serverID, userID uuid.UUID) (*domain.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.members {
		if m.ServerID == serverID && m.UserID == userID && m.Active() {
			out := r.s.joinMemberLocked(m)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *ServerRepo) GetMemberByID(_ context.Context, memberID uuid.UUID) (*domain.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if m, ok := r.s.members[memberID]; ok && m.Active() {
		out := r.s.joinMemberLocked(m)
		return &out, nil
	}
	return nil, nil
}

func (r *ServerRepo) ListMembers(_ context.Context, serverID uuid.UUID) ([]domain.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Member
	for _, m := range r.s.members {
		if m.ServerID == serverID && m.Active() {
			out = append(out, r.s.joinMemberLocked(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) joinMemberLocked(m domain.Member) domain.Member {
	if u, ok := s.users[m.UserID]; ok {
		m.Username = u.Username
		m.DisplayName = u.DisplayName
	}
	return m
}
