package repository

import (
	"context"
	"sync"
	"time"

	"repairhub/internal/domain/entity"
	"repairhub/internal/domain/repository"
	"repairhub/pkg/errors"
)

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]entity.User
}

func NewMemoryUserRepository() repository.UserRepository {
	return &memoryUserRepository{
		users: make(map[string]entity.User),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		return errors.Validation("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return errors.Conflict("user already exists")
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	return &user, nil
}

func (r *memoryUserRepository) UpdatePushToken(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return errors.NotFound("user", nil)
	}
	user.PushToken = token
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}
