package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single process Store used in tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.entries[eventID]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.entries[eventID] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.entries[eventID]
	return ok && s.now().Before(expiresAt), nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
