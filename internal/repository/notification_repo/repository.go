package notification_repo

import (
	"context"

	"shopflow/internal/domain"
)

type NotificationRepository interface {
	// Create inserts n. When n carries a dedupe key that already exists the
	// row is not written and Create returns false.
	Create(ctx context.Context, q domain.Querier, n *domain.Notification) (bool, error)
	GetByDedupeKey(ctx context.Context, key string) (*domain.Notification, error)
	ListByUserID(ctx context.Context, userID int64) ([]*domain.Notification, error)
	ListAll(ctx context.Context) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id int64) (*domain.Notification, error)
}
