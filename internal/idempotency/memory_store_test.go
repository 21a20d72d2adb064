package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.MarkProcessed(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	seen, err := s.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ok, _ := s.MarkProcessed(ctx, "evt-1", time.Minute)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	seen, _ := s.IsProcessed(ctx, "evt-1")
	assert.False(t, seen)

	ok, _ = s.MarkProcessed(ctx, "evt-1", time.Minute)
	assert.True(t, ok)
}

func TestMemoryStore_ConcurrentMarkOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.MarkProcessed(ctx, "evt-1", time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
