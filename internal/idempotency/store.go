package idempotency

import (
	"context"
	"time"
)

// Store remembers processed event ids for a bounded time.
type Store interface {
	// MarkProcessed returns true when eventID was not seen before.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	Close() error
}

const DefaultTTL = 24 * time.Hour
