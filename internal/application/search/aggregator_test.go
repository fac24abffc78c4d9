package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubClient answers Search with a fixed page or error
type stubClient struct {
	provider marketplace.Provider
	page     *marketplace.SearchPage
	err      error
	calls    atomic.Int32
	lastKey  string
}

func (c *stubClient) Provider() marketplace.Provider { return c.provider }

func (c *stubClient) ListCategories(context.Context) ([]marketplace.Category, error) {
	return nil, marketplace.ErrNotConfigured
}

func (c *stubClient) ListProductsByCategory(context.Context, string, int, int) (*marketplace.ProductPage, error) {
	return nil, marketplace.ErrNotConfigured
}

func (c *stubClient) GetProduct(context.Context, string) (marketplace.RawItem, error) {
	return nil, marketplace.ErrNotConfigured
}

func (c *stubClient) Search(_ context.Context, q marketplace.SearchQuery) (*marketplace.SearchPage, error) {
	c.calls.Add(1)
	c.lastKey = q.Keyword
	return c.page, c.err
}

type panickingClient struct {
	stubClient
}

func (c *panickingClient) Search(context.Context, marketplace.SearchQuery) (*marketplace.SearchPage, error) {
	panic("nil map in response decoder")
}

type failureCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *failureCounter) ProviderSearchFailed(_ context.Context, provider string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[provider]++
}

func domesticPage(n int) *marketplace.SearchPage {
	items := make([]marketplace.RawItem, n)
	for i := range items {
		items[i] = marketplace.RawItem{
			"item_id": fmt.Sprintf("D%d", i),
			"title":   fmt.Sprintf("Domestic %d", i),
			"price":   "¥1,234.50",
		}
	}
	return &marketplace.SearchPage{Items: items, Total: 500}
}

func internationalPage(n int) *marketplace.SearchPage {
	items := make([]marketplace.RawItem, n)
	for i := range items {
		items[i] = marketplace.RawItem{
			"Id":             fmt.Sprintf("I%d", i),
			"Title":          fmt.Sprintf("International %d", i),
			"QuantityRanges": []any{map[string]any{"Price": "12.00"}},
		}
	}
	return &marketplace.SearchPage{Items: items, Total: 80}
}

func TestAggregator_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("failed provider contributes nothing", func(t *testing.T) {
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: domesticPage(5)}
		international := &stubClient{provider: marketplace.ProviderInternational, err: marketplace.ErrUnavailable}
		recorder := &failureCounter{}

		a := NewAggregator([]marketplace.Client{domestic, international}, Config{}, zap.NewNop(), WithRecorder(recorder))
		result, err := a.Search(ctx, Query{Keyword: "lamp"})
		require.NoError(t, err)

		assert.Len(t, result.Items, 5)
		assert.Equal(t, 1, result.Failures)
		assert.Equal(t, 5, result.Source(marketplace.ProviderDomestic).Count)
		assert.Equal(t, 500, result.Source(marketplace.ProviderDomestic).Total)

		intl := result.Source(marketplace.ProviderInternational)
		assert.Equal(t, 0, intl.Count)
		assert.True(t, intl.Failed)
		assert.Contains(t, intl.Error, "unavailable")
		assert.Equal(t, 1, recorder.counts["international"])
	})

	t.Run("items are concatenated in client order", func(t *testing.T) {
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: domesticPage(2)}
		international := &stubClient{provider: marketplace.ProviderInternational, page: internationalPage(3)}

		a := NewAggregator([]marketplace.Client{domestic, international}, Config{}, zap.NewNop())
		result, err := a.Search(ctx, Query{Keyword: "lamp", Page: 2, PageSize: 10})
		require.NoError(t, err)

		require.Len(t, result.Items, 5)
		assert.Equal(t, marketplace.ProviderDomestic, result.Items[0].Provider)
		assert.True(t, result.Items[0].Price.Equal(decimal.RequireFromString("1234.50")))
		assert.Equal(t, "CNY", result.Items[0].Currency)
		assert.Equal(t, marketplace.ProviderInternational, result.Items[4].Provider)
		assert.True(t, result.Items[4].Price.Equal(decimal.RequireFromString("12.00")))
		assert.Equal(t, 0, result.Failures)
		assert.Equal(t, 2, result.Page)
		assert.Equal(t, 10, result.PageSize)
	})

	t.Run("every provider failing is still a result", func(t *testing.T) {
		domestic := &stubClient{provider: marketplace.ProviderDomestic, err: errors.New("boom")}
		international := &stubClient{provider: marketplace.ProviderInternational, err: marketplace.ErrRateLimited}

		a := NewAggregator([]marketplace.Client{domestic, international}, Config{}, zap.NewNop())
		result, err := a.Search(ctx, Query{Keyword: "lamp"})
		require.NoError(t, err)
		assert.Empty(t, result.Items)
		assert.NotNil(t, result.Items)
		assert.Equal(t, 2, result.Failures)
	})

	t.Run("items failing normalization are dropped", func(t *testing.T) {
		page := domesticPage(3)
		page.Items = append(page.Items, marketplace.RawItem{"title": "no id"})
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: page}

		a := NewAggregator([]marketplace.Client{domestic}, Config{}, zap.NewNop())
		result, err := a.Search(ctx, Query{Keyword: "lamp"})
		require.NoError(t, err)
		assert.Len(t, result.Items, 3)
		assert.Equal(t, 3, result.Source(marketplace.ProviderDomestic).Count)
	})

	t.Run("empty keyword", func(t *testing.T) {
		a := NewAggregator(nil, Config{}, zap.NewNop())
		_, err := a.Search(ctx, Query{Keyword: "   "})
		assert.ErrorIs(t, err, marketplace.ErrEmptySearchQuery)
	})

	t.Run("keyword spacing is collapsed and case kept", func(t *testing.T) {
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: domesticPage(1)}
		a := NewAggregator([]marketplace.Client{domestic}, Config{}, zap.NewNop())
		_, err := a.Search(ctx, Query{Keyword: "  LED   Lamp "})
		require.NoError(t, err)
		assert.Equal(t, "LED Lamp", domestic.lastKey)
	})

	t.Run("panicking provider is reported as failed", func(t *testing.T) {
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: domesticPage(2)}
		broken := &panickingClient{stubClient{provider: marketplace.ProviderInternational}}
		recorder := &failureCounter{}

		a := NewAggregator([]marketplace.Client{domestic, broken}, Config{}, zap.NewNop(), WithRecorder(recorder))
		result, err := a.Search(ctx, Query{Keyword: "lamp"})
		require.NoError(t, err)

		assert.Len(t, result.Items, 2)
		assert.Equal(t, 1, result.Failures)
		failed := result.Source(marketplace.ProviderInternational)
		assert.True(t, failed.Failed)
		assert.Contains(t, failed.Error, "panic")
		assert.Equal(t, 1, recorder.counts[marketplace.ProviderInternational.String()])
	})

	t.Run("nil logger", func(t *testing.T) {
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: domesticPage(1)}
		a := NewAggregator([]marketplace.Client{domestic}, Config{}, nil)
		result, err := a.Search(ctx, Query{Keyword: "lamp"})
		require.NoError(t, err)
		assert.Len(t, result.Items, 1)
	})
}

func TestAggregator_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("complete results are served from cache", func(t *testing.T) {
		store := cache.NewInMemorySearchCache()
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: domesticPage(4)}
		a := NewAggregator([]marketplace.Client{domestic}, Config{}, zap.NewNop(), WithCache(store))

		first, err := a.Search(ctx, Query{Keyword: "Lamp"})
		require.NoError(t, err)
		assert.False(t, first.Cached)

		second, err := a.Search(ctx, Query{Keyword: "lamp "})
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Len(t, second.Items, 4)
		assert.True(t, second.Items[0].Price.Equal(decimal.RequireFromString("1234.50")))
		assert.Equal(t, int32(1), domestic.calls.Load())

		require.NoError(t, store.Invalidate(ctx))
		third, err := a.Search(ctx, Query{Keyword: "lamp"})
		require.NoError(t, err)
		assert.False(t, third.Cached)
		assert.Equal(t, int32(2), domestic.calls.Load())
	})

	t.Run("partial results are not cached", func(t *testing.T) {
		store := cache.NewInMemorySearchCache()
		domestic := &stubClient{provider: marketplace.ProviderDomestic, page: domesticPage(1)}
		international := &stubClient{provider: marketplace.ProviderInternational, err: marketplace.ErrUnavailable}
		a := NewAggregator([]marketplace.Client{domestic, international}, Config{}, zap.NewNop(), WithCache(store))

		_, err := a.Search(ctx, Query{Keyword: "lamp"})
		require.NoError(t, err)
		_, ok, err := store.Get(ctx, CacheKey(Query{Keyword: "lamp"}))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "led lamp:1:20", CacheKey(Query{Keyword: " LED  lamp"}))
	assert.Equal(t, "led lamp:3:100", CacheKey(Query{Keyword: "led lamp", Page: 3, PageSize: 500}))
}
