package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSearchPrefix = "catalog:search:"

// RedisSearchCache keeps search responses in redis. Keys are namespaced by a
// generation counter, so invalidation is one INCR and stale keys age out by TTL.
type RedisSearchCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisSearchCache creates a search cache on an existing redis client
func NewRedisSearchCache(client redis.UniversalClient, prefix string) *RedisSearchCache {
	if prefix == "" {
		prefix = defaultSearchPrefix
	}
	return &RedisSearchCache{client: client, prefix: prefix}
}

func (c *RedisSearchCache) generationKey() string {
	return c.prefix + "generation"
}

func (c *RedisSearchCache) dataKey(ctx context.Context, key string) (string, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read search cache generation: %w", err)
	}
	return c.prefix + strconv.FormatInt(gen, 10) + ":" + key, nil
}

// Get returns the cached value for key if present
func (c *RedisSearchCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k, err := c.dataKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	data, err := c.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read search cache: %w", err)
	}
	return data, true, nil
}

// Set stores value under key for ttl
func (c *RedisSearchCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k, err := c.dataKey(ctx, key)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// Invalidate moves the cache to a new generation
func (c *RedisSearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate search cache: %w", err)
	}
	return nil
}
