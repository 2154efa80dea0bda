package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"schemacanvas-backend/application/ports"
)

const listingKeyPrefix = "projects:owner:"

// NewValkeyClient connects to Valkey and verifies connectivity with a ping.
func NewValkeyClient(addr, password string) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{addr},
	}
	if password != "" {
		opts.Password = password
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	resp := client.Do(context.Background(), client.B().Ping().Build())
	if err := resp.Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return client, nil
}

// ValkeyCache is a Valkey-backed ports.ProjectListCache. Listings are stored
// as JSON under projects:owner:<id>. Cache failures degrade to misses; the
// repository stays the source of truth.
type ValkeyCache struct {
	client valkey.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewValkeyCache creates a Valkey-backed project listing cache. A
// non-positive ttl falls back to DefaultTTL.
func NewValkeyCache(client valkey.Client, ttl time.Duration, logger *zap.Logger) *ValkeyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ValkeyCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached listing for an owner.
func (c *ValkeyCache) Get(ctx context.Context, ownerID string) ([]*ports.ProjectRecord, bool) {
	key := listingKeyPrefix + ownerID
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if !valkey.IsValkeyNil(err) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	data, err := resp.AsBytes()
	if err != nil {
		return nil, false
	}
	var records []*ports.ProjectRecord
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.client.Do(ctx, c.client.B().Del().Key(key).Build())
		return nil, false
	}
	return records, true
}

// Set stores a listing for an owner.
func (c *ValkeyCache) Set(ctx context.Context, ownerID string, records []*ports.ProjectRecord) {
	key := listingKeyPrefix + ownerID
	data, err := json.Marshal(records)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	resp := c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).Ex(c.ttl).Build())
	if err := resp.Error(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops the cached listing for an owner.
func (c *ValkeyCache) Invalidate(ctx context.Context, ownerID string) error {
	key := listingKeyPrefix + ownerID
	resp := c.client.Do(ctx, c.client.B().Del().Key(key).Build())
	if err := resp.Error(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
