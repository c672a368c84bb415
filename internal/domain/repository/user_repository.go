package repository

import (
	"context"

	"repairhub/internal/domain/entity"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdatePushToken(ctx context.Context, id, token string) error
}
