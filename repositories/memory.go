package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
)

// MemoryUserRepository keeps users in a map. It backs development runs
// without a database and the test suites.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User // keyed by userid
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email }, "email", email)
}

func (r *MemoryUserRepository) GetByHandle(_ context.Context, handle string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Handle == handle }, "handle", handle)
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.UserID == id }, "userid", id)
}

func (r *MemoryUserRepository) find(match func(domain.User) bool, column, value string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("%w: user %s=%s", errors.ErrNotFound, column, value)
}

func (r *MemoryUserRepository) Insert(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: %s", errors.ErrUserAlreadyExists, user.Email)
		}
	}
	r.users[user.UserID] = user
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; !ok {
		return fmt.Errorf("%w: user %s", errors.ErrNotFound, user.UserID)
	}
	r.users[user.UserID] = user
	return nil
}
