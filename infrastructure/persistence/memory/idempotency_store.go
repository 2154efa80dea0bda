package memory

import (
	"context"
	"sync"
	"time"
)

// IdempotencyStore is an in-memory ports.IdempotencyStore with per-entry
// expiry checked lazily on read.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]idempotencyEntry
	now   func() time.Time
}

type idempotencyEntry struct {
	response  []byte
	expiresAt time.Time
}

// NewIdempotencyStore creates an empty in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		items: make(map[string]idempotencyEntry),
		now:   time.Now,
	}
}

// Get returns the recorded response for a key, if present and unexpired.
func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.items, key)
		return nil, false
	}
	return append([]byte(nil), entry.response...), true
}

// Put records a response under a key for the given window.
func (s *IdempotencyStore) Put(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = idempotencyEntry{
		response:  append([]byte(nil), response...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}
