package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return fmt.Errorf("%w: users unique", domain.ErrConflict)
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u, ok := r.s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email }), nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username }), nil
}

func (r *UserRepo) find(match func(domain.User) bool) *domain.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(u) {
			return &u
		}
	}
	return nil
}
