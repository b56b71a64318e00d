package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

const keyPrefix = "lavandowski:"

// RedisCache implements domain.Cache on Redis. Counters rely on EXPIRE NX,
// which needs Redis 7 or later.
type RedisCache struct {
	client *redis.Client
}

// redisOptions accepts a host:port address or a redis:// URL. An explicit
// password or DB in cfg overrides the URL.
func redisOptions(cfg domain.CacheConfig) (*redis.Options, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis address: %w", err)
		}
		opts = parsed
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB != 0 {
		opts.DB = cfg.RedisDB
	}
	opts.ClientName = "lavandowski"
	return opts, nil
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg domain.CacheConfig) (*RedisCache, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

func redisKey(namespace, key string) (string, error) {
	k, err := scopedKey(namespace, key)
	if err != nil {
		return "", err
	}
	return keyPrefix + k, nil
}

// Get returns nil, nil for a missing key.
func (c *RedisCache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	k, err := redisKey(namespace, key)
	if err != nil {
		return nil, err
	}
	val, err := c.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	k, err := redisKey(namespace, key)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, k, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, namespace, key string) error {
	k, err := redisKey(namespace, key)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, k).Err()
}

// IncrementCounter runs INCR and EXPIRE NX in one transaction, so the
// window is set by the first hit and never extended.
func (c *RedisCache) IncrementCounter(ctx context.Context, namespace, key string, window time.Duration) (int64, error) {
	k, err := redisKey(namespace, "counter:"+key)
	if err != nil {
		return 0, err
	}

	var incr *redis.IntCmd
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", k, err)
	}
	return incr.Val(), nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
