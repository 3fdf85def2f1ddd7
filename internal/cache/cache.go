package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/docmind/backend/pkg/logger"
)

// Store is the shared cache tier behind the in-process one. A nil Store is
// valid: the cache then runs memory-only.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Cache is a two-tier memoization layer: a bounded expirable LRU in front of
// an optional shared store. Store failures degrade to always-miss behavior.
type Cache[T any] struct {
	memory *expirable.LRU[string, T]
	store  Store
	ttl    time.Duration
	group  singleflight.Group
}

func New[T any](store Store, size int, ttl time.Duration) *Cache[T] {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache[T]{
		memory: expirable.NewLRU[string, T](size, nil, ttl),
		store:  store,
		ttl:    ttl,
	}
}

func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}

	var zero T
	if c.store == nil {
		return zero, false
	}

	var v T
	found, err := c.store.Get(ctx, key, &v)
	if err != nil {
		logger.Warn("Cache store read failed, treating as miss", zap.Error(err))
		return zero, false
	}
	if !found {
		return zero, false
	}

	c.memory.Add(key, v)
	return v, true
}

func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	c.memory.Add(key, value)

	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		logger.Warn("Cache store write failed", zap.Error(err))
	}
}

// Invalidator is implemented by stores that can drop all of their entries.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Purge drops every cached value from both tiers. Called when the corpus
// behind the cached answers changes.
func (c *Cache[T]) Purge(ctx context.Context) {
	c.memory.Purge()

	if inv, ok := c.store.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			logger.Warn("Cache store invalidation failed", zap.Error(err))
		}
	}
}

type computed[T any] struct {
	value     T
	cacheable bool
}

// Do returns the cached value for key or runs compute exactly once across
// concurrent identical requests. compute reports whether its result may be
// cached; errors and non-cacheable results fall through uncached. The bool
// return tells the caller whether the value came from cache.
func (c *Cache[T]) Do(ctx context.Context, key string, compute func() (T, bool, error)) (T, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent waiter may have populated the key while this caller
		// was queued behind the flight.
		if v, ok := c.Get(ctx, key); ok {
			return computed[T]{value: v, cacheable: false}, nil
		}

		value, cacheable, err := compute()
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.Set(ctx, key, value)
		}
		return computed[T]{value: value}, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}

	return v.(computed[T]).value, false, nil
}
