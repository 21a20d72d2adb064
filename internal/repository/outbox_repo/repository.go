package outbox_repo

import (
	"context"
	"time"

	"shopflow/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, q domain.Querier, msg *domain.OutboxMessage) error
	// TryLockRelay takes the relay lock for the rest of q's transaction. It
	// returns false when another relay holds it.
	TryLockRelay(ctx context.Context, q domain.Querier) (bool, error)
	// ClaimPending locks up to limit pending rows; other relays skip them
	// until q's transaction ends.
	ClaimPending(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, q domain.Querier, ids []string, sentAt time.Time) error
	RecordFailure(ctx context.Context, q domain.Querier, id string, maxAttempts int) error
}
