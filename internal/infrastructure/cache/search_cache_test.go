package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySearchCache(t *testing.T) {
	c := NewInMemorySearchCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "lamp|1|20")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "lamp|1|20", []byte(`{"items":[]}`), time.Minute))
	data, ok, err := c.Get(ctx, "lamp|1|20")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"items":[]}`, string(data))

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, "lamp|1|20")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemorySearchCache_Expiry(t *testing.T) {
	c := NewInMemorySearchCache()
	ctx := context.Background()
	now := time.Now()
	c.entries.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

// redisClientForTest returns a client for REDIS_ADDR or skips the test
func redisClientForTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStores(t *testing.T) {
	client := redisClientForTest(t)
	ctx := context.Background()
	prefix := "test:" + time.Now().Format("150405.000000") + ":"

	t.Run("idempotency store", func(t *testing.T) {
		store := NewRedisIdempotencyStore(client, prefix+"dedupe:")

		ok, err := store.MarkProcessed(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Release(ctx, "k"))
		processed, err := store.IsProcessed(ctx, "k")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("search cache", func(t *testing.T) {
		c := NewRedisSearchCache(client, prefix+"search:")

		require.NoError(t, c.Set(ctx, "q", []byte("v"), time.Minute))
		data, ok, err := c.Get(ctx, "q")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", string(data))

		require.NoError(t, c.Invalidate(ctx))
		_, ok, err = c.Get(ctx, "q")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
