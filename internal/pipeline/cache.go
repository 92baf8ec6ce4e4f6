package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/querypipe/internal/cache"
	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/metrics"
	"github.com/roach88/querypipe/internal/record"
)

// Cache memoizes successful results by query key. Errors are not cached and
// entries are never evicted.
//
// Without WithSingleflight, two invocations that miss the same key at the
// same time both run the operation and the later Set wins.
type Cache[T any] struct {
	m       *cache.Map[T]
	keyFunc record.KeyFunc
	group   *singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Registry
}

// NewCache returns a cache stage backed by m. A nil m gets a fresh Map.
func NewCache[T any](m *cache.Map[T], opts ...Option) *Cache[T] {
	if m == nil {
		m = cache.New[T]()
	}
	o := buildOptions(opts)

	c := &Cache[T]{
		m:       m,
		keyFunc: o.keyFunc,
		logger:  o.logger,
		metrics: o.metrics,
	}
	if o.singleflight {
		c.group = &singleflight.Group{}
	}
	return c
}

// Map returns the backing map.
func (c *Cache[T]) Map() *cache.Map[T] {
	return c.m
}

// Wrap implements Stage.
func (c *Cache[T]) Wrap(next Operation[T]) Operation[T] {
	return func(ctx context.Context, call Call) (T, error) {
		var zero T

		key, err := c.keyFunc(call.Query)
		if err != nil {
			return zero, fault.Operation("cache key", err)
		}

		if v, ok := c.m.Get(key); ok {
			c.metrics.Cache(metrics.CacheHit)
			c.logger.DebugContext(ctx, "cache hit", "query", call.Query.Text)
			return v, nil
		}
		c.metrics.Cache(metrics.CacheMiss)
		c.logger.DebugContext(ctx, "cache miss", "query", call.Query.Text)

		if c.group == nil {
			v, err := next(ctx, call)
			if err != nil {
				return zero, err
			}
			c.m.Set(key, v)
			return v, nil
		}

		res, err, _ := c.group.Do(string(key), func() (any, error) {
			if v, ok := c.m.Get(key); ok {
				return v, nil
			}
			v, err := next(ctx, call)
			if err != nil {
				return nil, err
			}
			c.m.Set(key, v)
			return v, nil
		})
		if err != nil {
			return zero, err
		}
		v, _ := res.(T)
		return v, nil
	}
}
