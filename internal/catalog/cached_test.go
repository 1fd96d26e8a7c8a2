package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
)

type countingCatalog struct {
	resources map[string]model.Resource
	items     map[string]model.MenuItem
	calls     int
}

func (c *countingCatalog) Get(_ context.Context, id string) (*model.Resource, error) {
	c.calls++
	r, ok := c.resources[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &r, nil
}

func (c *countingCatalog) IsActive(ctx context.Context, id string) (bool, error) {
	r, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return r.Active, nil
}

func (c *countingCatalog) GetItem(_ context.Context, id string) (*model.MenuItem, error) {
	c.calls++
	it, ok := c.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &it, nil
}

func (c *countingCatalog) Children(_ context.Context, parentID string) ([]model.Resource, error) {
	var out []model.Resource
	for _, r := range c.resources {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *countingCatalog) UpdateResource(_ context.Context, r model.Resource) error {
	if _, ok := c.resources[r.ID]; !ok {
		return apperr.ErrNotFound
	}
	c.resources[r.ID] = r
	return nil
}

func newCached(t *testing.T, next Catalog) (*Cached, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCached(next, rdb, time.Minute, "test", nil), mr
}

func TestCachedReadsThrough(t *testing.T) {
	inner := &countingCatalog{resources: map[string]model.Resource{
		"hotel-1": {ID: "hotel-1", TenantID: "t1", BaseRate: decimal.RequireFromString("120.50"), Currency: "USD", Active: true},
	}}
	c, mr := newCached(t, inner)
	ctx := context.Background()

	r, err := c.Get(ctx, "hotel-1")
	require.NoError(t, err)
	assert.True(t, r.BaseRate.Equal(decimal.RequireFromString("120.50")))
	assert.True(t, mr.Exists("test:resource:hotel-1"))

	active, err := c.IsActive(ctx, "hotel-1")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, 1, inner.calls)

	require.NoError(t, c.Invalidate(ctx, "hotel-1"))
	_, err = c.Get(ctx, "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	inner := &countingCatalog{}
	c, _ := newCached(t, inner)

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedFallsBackWhenRedisDown(t *testing.T) {
	inner := &countingCatalog{items: map[string]model.MenuItem{
		"pizza": {ID: "pizza", Price: decimal.RequireFromString("9.99"), Currency: "USD", Available: true},
	}}
	c, mr := newCached(t, inner)
	mr.Close()

	it, err := c.GetItem(context.Background(), "pizza")
	require.NoError(t, err)
	assert.Equal(t, "pizza", it.ID)
}
