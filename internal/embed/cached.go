package embed

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/vector"
)

// Cached memoizes another embedder. Cache failures fall through to the
// wrapped embedder; they never fail an Embed call.
type Cached struct {
	next   Embedder
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next; a nil cache disables memoization
func NewCached(next Embedder, c cache.Cache, ttl time.Duration) Embedder {
	if c == nil {
		return next
	}
	return &Cached{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logging.New("embed"),
	}
}

// Name returns the wrapped embedder name
func (c *Cached) Name() string {
	return c.next.Name()
}

// Embed returns a cached vector or computes and stores a fresh one
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key("embed", c.next.Name(), text)

	if blob, ok := c.cache.Get(ctx, key); ok {
		if v, err := vector.Decode(blob); err == nil && len(v) > 0 {
			return v, nil
		}
		_ = c.cache.Delete(ctx, key)
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, vector.Encode(v), c.ttl); err != nil {
		c.logger.WarnContext(ctx, "embedding cache write failed", "error", err)
	}
	return v, nil
}
