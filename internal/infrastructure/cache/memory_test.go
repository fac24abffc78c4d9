package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_Claims(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	now := time.Now()
	store.claims.now = func() time.Time { return now }

	ok, err := store.MarkProcessed(ctx, "category:run-1:CAT1:25", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkProcessed(ctx, "category:run-1:CAT1:25", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "live claim blocks a second one")

	now = now.Add(2 * time.Minute)
	processed, err := store.IsProcessed(ctx, "category:run-1:CAT1:25")
	require.NoError(t, err)
	assert.False(t, processed, "claim lapsed")

	ok, err = store.MarkProcessed(ctx, "category:run-1:CAT1:25", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Release(ctx, "category:run-1:CAT1:25"))
	ok, err = store.MarkProcessed(ctx, "category:run-1:CAT1:25", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be claimed again")
}

func TestInMemoryIdempotencyStore_OneWinnerUnderContention(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	var wg sync.WaitGroup
	var winners atomic.Int32
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := store.MarkProcessed(context.Background(), "same-key", time.Hour); err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, winners.Load())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore(0)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestExpiring_Sweep(t *testing.T) {
	e := newExpiring[int]()
	now := time.Now()
	e.now = func() time.Time { return now }
	e.put("a", 1, time.Minute)
	e.put("b", 2, 2*time.Minute)
	e.put("c", 3, 3*time.Minute)

	now = now.Add(90 * time.Second)
	assert.Equal(t, 2, e.sweep())

	_, ok := e.get("a")
	assert.False(t, ok)
	v, ok := e.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}
