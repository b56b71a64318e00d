package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// TieredCache answers identity lookups from a local LRU before Redis.
// A Redis read failure is reported as a miss so a run keeps going with
// uncached lookups; writes and quota counters still require Redis.
type TieredCache struct {
	local    *LRUCache
	remote   *RedisCache
	localTTL time.Duration
}

// NewTieredCache connects to Redis and sizes the local tier from cfg.
func NewTieredCache(cfg domain.CacheConfig) (*TieredCache, error) {
	remote, err := NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	localTTL := time.Duration(cfg.LocalTTL) * time.Second
	if localTTL <= 0 {
		localTTL = 5 * time.Minute
	}
	return &TieredCache{
		local:    NewLRUCache(cfg.LocalMaxSize),
		remote:   remote,
		localTTL: localTTL,
	}, nil
}

func (c *TieredCache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if val, err := c.local.Get(ctx, namespace, key); err != nil || val != nil {
		return val, err
	}

	val, err := c.remote.Get(ctx, namespace, key)
	if err != nil {
		slog.Warn("redis read failed, treating as miss",
			"namespace", namespace,
			"error", err,
		)
		return nil, nil
	}
	if val != nil {
		_ = c.local.Set(ctx, namespace, key, val, c.localTTL)
	}
	return val, nil
}

// Set writes Redis first; the local copy never outlives the shared one.
func (c *TieredCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if err := c.remote.Set(ctx, namespace, key, value, ttl); err != nil {
		return err
	}
	return c.local.Set(ctx, namespace, key, value, min(ttl, c.localTTL))
}

func (c *TieredCache) Delete(ctx context.Context, namespace, key string) error {
	if err := c.local.Delete(ctx, namespace, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, namespace, key)
}

// IncrementCounter always goes to Redis so every worker draws from one budget.
func (c *TieredCache) IncrementCounter(ctx context.Context, namespace, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, namespace, key, window)
}

func (c *TieredCache) Ping(ctx context.Context) error {
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (c *TieredCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}
