package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// LayeredCache reads through a fast layer into a slower, durable one.
// Hits in the slow layer are promoted.
type LayeredCache struct {
	fast Cache
	slow Cache
}

// NewLayeredCache stacks fast over slow
func NewLayeredCache(fast, slow Cache) *LayeredCache {
	return &LayeredCache{fast: fast, slow: slow}
}

// Get checks the fast layer first, then the slow one
func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := c.fast.Get(ctx, key); found {
		return val, true
	}

	if val, found := c.slow.Get(ctx, key); found {
		_ = c.fast.Set(ctx, key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.fast.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.slow.Set(ctx, key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	return errors.Join(c.fast.Delete(ctx, key), c.slow.Delete(ctx, key))
}

// Clear empties both layers
func (c *LayeredCache) Clear(ctx context.Context) error {
	return errors.Join(c.fast.Clear(ctx), c.slow.Clear(ctx))
}

// Close closes every layer that holds resources, such as a redis client
func (c *LayeredCache) Close() error {
	var errs []error
	for _, layer := range []Cache{c.fast, c.slow} {
		if closer, ok := layer.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
