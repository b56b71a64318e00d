// Package cache stores identity registry responses and the quota counters
// that budget paid lookups. The memory backend serves single-process runs;
// Redis shares both across serve instances.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// ErrNamespaceRequired is returned when a key is used without a namespace.
var ErrNamespaceRequired = errors.New("namespace is required")

// New builds the cache named by cfg.Type. With EnableTwoPhase, Redis is
// fronted by an in-process LRU.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		if cfg.EnableTwoPhase {
			return NewTieredCache(cfg)
		}
		return NewRedisCache(cfg)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// GetJSON decodes a cached value into v. It reports whether the key was present.
func GetJSON(ctx context.Context, c domain.Cache, namespace, key string, v any) (bool, error) {
	data, err := c.Get(ctx, namespace, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode cached %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it with the given TTL.
func SetJSON(ctx context.Context, c domain.Cache, namespace, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", namespace, key, err)
	}
	return c.Set(ctx, namespace, key, data, ttl)
}

// Loader reads through a cache. Concurrent misses on the same key wait
// for a single load, so a document looked up by two cases at once is
// fetched (and billed) once.
type Loader[T any] struct {
	cache     domain.Cache
	namespace string
	ttl       time.Duration
	group     singleflight.Group
	onError   func(op string, err error)
}

// NewLoader creates a loader. A nil cache only deduplicates concurrent loads.
// onError receives cache read and write failures, which never fail a load.
func NewLoader[T any](c domain.Cache, namespace string, ttl time.Duration, onError func(op string, err error)) *Loader[T] {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Loader[T]{cache: c, namespace: namespace, ttl: ttl, onError: onError}
}

// Get returns the value for key, calling load on a miss. The boolean
// reports a cache hit.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, bool, error) {
	if l.cache != nil {
		var cached T
		found, err := GetJSON(ctx, l.cache, l.namespace, key, &cached)
		if err != nil {
			l.onError("read", err)
		} else if found {
			return cached, true, nil
		}
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		val, err := load(ctx)
		if err != nil {
			return val, err
		}
		if l.cache != nil {
			if err := SetJSON(ctx, l.cache, l.namespace, key, val, l.ttl); err != nil {
				l.onError("write", err)
			}
		}
		return val, nil
	})
	val, _ := v.(T)
	return val, false, err
}
