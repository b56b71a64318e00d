package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU + Redis.
// Keys are scoped by namespace so lookups and counters never collide.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, namespace string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, namespace string, key string) error

	// IncrementCounter atomically increments a counter and returns new value.
	// The window starts with the first increment.
	IncrementCounter(ctx context.Context, namespace string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `json:"type" yaml:"type" toml:"type"`

	// Local LRU cache settings
	LocalMaxSize int `json:"local_max_size" yaml:"local_max_size" toml:"local_max_size"`
	LocalTTL     int `json:"local_ttl" yaml:"local_ttl" toml:"local_ttl"` // seconds

	// Redis settings
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password" toml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" toml:"redis_db"`

	// Two-phase settings
	EnableTwoPhase bool `json:"enable_two_phase" yaml:"enable_two_phase" toml:"enable_two_phase"` // If true, check local first, then Redis
}

// Cache namespaces.
const (
	NamespaceIdentity = "identity"
	NamespaceQuota    = "quota"
)
