package cache

import (
	"context"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

// New builds the cache stack described by cfg: memory alone, or memory
// layered over redis (preferred) or disk. Returns nil when caching is off.
func New(ctx context.Context, cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	memory := NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)

	switch {
	case cfg.RedisURL != "":
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewLayeredCache(memory, NewRedisCache(client, cfg.DiskTTL)), nil

	case cfg.DiskDir != "":
		return NewLayeredCache(memory, NewDiskCache(cfg.DiskDir, cfg.DiskTTL)), nil

	default:
		return memory, nil
	}
}
