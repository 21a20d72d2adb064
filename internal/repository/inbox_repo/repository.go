package inbox_repo

import (
	"context"

	"shopflow/internal/domain"
)

type InboxRepository interface {
	// TryInsert records msg as processed. It returns false when the event id
	// was already recorded.
	TryInsert(ctx context.Context, q domain.Querier, msg *domain.InboxMessage) (bool, error)
}
