// Package cache provides ProjectListCache implementations: an in-process
// cache for tests and single-node deployments, and a Valkey-backed cache for
// shared deployments.
package cache

import (
	"context"
	"sync"
	"time"

	"schemacanvas-backend/application/ports"
)

// DefaultTTL bounds staleness when an invalidation is missed.
const DefaultTTL = 5 * time.Minute

// MemoryCache is an in-process ports.ProjectListCache with per-entry TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	records   []*ports.ProjectRecord
	expiresAt time.Time
}

// NewMemoryCache creates an in-process cache. A non-positive ttl falls back
// to DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached listing for an owner, if present and unexpired.
func (c *MemoryCache) Get(ctx context.Context, ownerID string) ([]*ports.ProjectRecord, bool) {
	c.mu.RLock()
	entry, ok := c.entries[ownerID]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	out := make([]*ports.ProjectRecord, len(entry.records))
	for i, rec := range entry.records {
		out[i] = rec.Clone()
	}
	return out, true
}

// Set stores a listing for an owner.
func (c *MemoryCache) Set(ctx context.Context, ownerID string, records []*ports.ProjectRecord) {
	copied := make([]*ports.ProjectRecord, len(records))
	for i, rec := range records {
		copied[i] = rec.Clone()
	}
	c.mu.Lock()
	c.entries[ownerID] = memoryEntry{records: copied, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the cached listing for an owner.
func (c *MemoryCache) Invalidate(ctx context.Context, ownerID string) error {
	c.mu.Lock()
	delete(c.entries, ownerID)
	c.mu.Unlock()
	return nil
}
