package snapshot_repo

import (
	"context"

	"shopflow/internal/domain"
)

type SnapshotRepository interface {
	// Upsert writes s unless the stored snapshot comes from a newer event.
	// A stale s still fills in a stored empty category. It reports whether
	// the row changed.
	Upsert(ctx context.Context, q domain.Querier, s *domain.ProductSnapshot) (bool, error)
	GetByProductID(ctx context.Context, productID int64) (*domain.ProductSnapshot, error)
}
