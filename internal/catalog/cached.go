package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// Cached is a read-through cache in front of a Catalog.  Resources and
// items are stored as JSON under "<prefix>:resource:<id>" and
// "<prefix>:item:<id>".  Redis failures fall back to the wrapped catalog
// so the cache never turns into a point of failure.  A nil client turns
// Cached into a pass-through.
type Cached struct {
	next   Catalog
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// NewCached wraps next.  ttl <= 0 disables caching.
func NewCached(next Catalog, rdb *redis.Client, ttl time.Duration, prefix string, log *zap.Logger) *Cached {
	if prefix == "" {
		prefix = "catalog"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, prefix: prefix, log: log}
}

func (c *Cached) enabled() bool { return c.rdb != nil && c.ttl > 0 }

// Get returns the resource from cache or the wrapped catalog.
func (c *Cached) Get(ctx context.Context, resourceID string) (*model.Resource, error) {
	key := c.prefix + ":resource:" + resourceID
	var r model.Resource
	if c.load(ctx, key, &r) {
		return &r, nil
	}
	res, err := c.next.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, res)
	return res, nil
}

// IsActive goes through Get so that it shares the cached entry.
func (c *Cached) IsActive(ctx context.Context, resourceID string) (bool, error) {
	res, err := c.Get(ctx, resourceID)
	if err != nil {
		return false, err
	}
	return res.Active, nil
}

// GetItem returns the menu item from cache or the wrapped catalog.
func (c *Cached) GetItem(ctx context.Context, itemID string) (*model.MenuItem, error) {
	key := c.prefix + ":item:" + itemID
	var it model.MenuItem
	if c.load(ctx, key, &it) {
		return &it, nil
	}
	item, err := c.next.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, item)
	return item, nil
}

// Children is not cached: listings change whenever a sub-resource is
// added, and each entry is resolved again through Get when booked.
func (c *Cached) Children(ctx context.Context, parentID string) ([]model.Resource, error) {
	return c.next.Children(ctx, parentID)
}

// Invalidate drops a cached resource, e.g. after a rate change.
func (c *Cached) Invalidate(ctx context.Context, resourceID string) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Del(ctx, c.prefix+":resource:"+resourceID).Err()
}

func (c *Cached) load(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("catalog cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cached) store(ctx context.Context, key string, v any) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
