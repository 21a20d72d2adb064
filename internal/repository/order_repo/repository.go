package order_repo

import (
	"context"
	"errors"
	"time"

	"shopflow/internal/domain"
)

var ErrDuplicateIdempotencyKey = errors.New("order with this idempotency key already exists")

type OrderRepository interface {
	// Create inserts the order and its items through q and fills in the
	// generated ids. Callers run it inside a transaction.
	Create(ctx context.Context, q domain.Querier, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// GetByIdempotencyKey finds the order userID created with key.
	GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	ListByUserID(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
	LockStatus(ctx context.Context, q domain.Querier, id int64) (domain.OrderStatus, error)
	UpdateStatus(ctx context.Context, q domain.Querier, id int64, status domain.OrderStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id int64) error
}
