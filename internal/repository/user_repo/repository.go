package user_repo

import (
	"context"

	"shopflow/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, q domain.Querier, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
