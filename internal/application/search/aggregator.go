package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/normalizer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize        = 20
	maxPageSize            = 100
	defaultCacheTTL        = 10 * time.Minute
	defaultProviderTimeout = 15 * time.Second
)

// Cache stores serialized search results
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Recorder observes provider failures
type Recorder interface {
	ProviderSearchFailed(ctx context.Context, provider string)
}

// Config tunes the aggregator
type Config struct {
	CacheTTL        time.Duration
	ProviderTimeout time.Duration
}

// Query is a keyword search across every configured provider
type Query struct {
	Keyword  string `json:"keyword"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// ProviderResult reports what one provider contributed
type ProviderResult struct {
	Provider marketplace.Provider `json:"provider"`
	Count    int                  `json:"count"`
	Total    int                  `json:"total"`
	Failed   bool                 `json:"failed"`
	Error    string               `json:"error,omitempty"`
}

// Result is the concatenation of every provider's normalized items
type Result struct {
	Items    []marketplace.Product `json:"items"`
	Sources  []ProviderResult      `json:"sources"`
	Failures int                   `json:"failures"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
	Cached   bool                  `json:"cached"`
}

// Source returns the report for provider, or a zero report if it was not queried
func (r *Result) Source(provider marketplace.Provider) ProviderResult {
	for _, s := range r.Sources {
		if s.Provider == provider {
			return s
		}
	}
	return ProviderResult{Provider: provider}
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithCache caches complete results
func WithCache(cache Cache) Option {
	return func(a *Aggregator) { a.cache = cache }
}

// WithRecorder reports provider failures to recorder
func WithRecorder(recorder Recorder) Option {
	return func(a *Aggregator) { a.recorder = recorder }
}

// Aggregator runs one search against several providers at once. A provider
// that fails contributes nothing and is reported, the search itself succeeds.
type Aggregator struct {
	clients  []marketplace.Client
	config   Config
	cache    Cache
	recorder Recorder
	logger   *zap.Logger
}

// NewAggregator creates an aggregator over clients, queried and reported in the given order
func NewAggregator(clients []marketplace.Client, config Config, logger *zap.Logger, opts ...Option) *Aggregator {
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = defaultProviderTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		clients: clients,
		config:  config,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search queries every provider concurrently and waits for all of them.
// Only an empty keyword is an error.
func (a *Aggregator) Search(ctx context.Context, query Query) (*Result, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}
	log := a.loggerFor(ctx).With(zap.String("keyword", query.Keyword), zap.Int("page", query.Page))

	key := CacheKey(query)
	if cached, ok := a.fromCache(ctx, key, log); ok {
		return cached, nil
	}

	sources := make([]ProviderResult, len(a.clients))
	items := make([][]marketplace.Product, len(a.clients))

	var g errgroup.Group
	for i, client := range a.clients {
		g.Go(func() error {
			sources[i], items[i] = a.searchOne(ctx, client, query, log)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		Items:    make([]marketplace.Product, 0),
		Sources:  sources,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	for i, s := range sources {
		result.Items = append(result.Items, items[i]...)
		if s.Failed {
			result.Failures++
		}
	}

	// a partial result is not cached, the failed provider may be back on the next call
	if result.Failures == 0 {
		a.toCache(ctx, key, result, log)
	}
	return result, nil
}

func (a *Aggregator) searchOne(ctx context.Context, client marketplace.Client, query Query, log *zap.Logger) (ProviderResult, []marketplace.Product) {
	provider := client.Provider()
	report := ProviderResult{Provider: provider}

	callCtx, cancel := context.WithTimeout(ctx, a.config.ProviderTimeout)
	defer cancel()

	page, err := searchSafely(callCtx, client, marketplace.SearchQuery{
		Keyword:  query.Keyword,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		log.Warn("Provider search failed",
			zap.String("provider", provider.String()),
			zap.Error(err),
		)
		if a.recorder != nil {
			a.recorder.ProviderSearchFailed(ctx, provider.String())
		}
		report.Failed = true
		report.Error = err.Error()
		return report, nil
	}
	if page == nil {
		return report, nil
	}

	products, failures := normalizer.NormalizeBatchAs(provider, page.Items)
	for _, f := range failures {
		log.Warn("Dropping search item that failed normalization",
			zap.String("provider", provider.String()),
			zap.Int("index", f.Index),
			zap.Error(f.Err),
		)
	}
	report.Count = len(products)
	report.Total = page.Total
	return report, products
}

// searchSafely turns a panicking client into a failed provider
func searchSafely(ctx context.Context, client marketplace.Client, q marketplace.SearchQuery) (page *marketplace.SearchPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			page, err = nil, fmt.Errorf("panic in provider search: %v", r)
		}
	}()
	return client.Search(ctx, q)
}

func (a *Aggregator) fromCache(ctx context.Context, key string, log *zap.Logger) (*Result, bool) {
	if a.cache == nil {
		return nil, false
	}
	data, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.Warn("Search cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn("Discarding undecodable search cache entry", zap.Error(err))
		return nil, false
	}
	result.Cached = true
	return &result, true
}

func (a *Aggregator) toCache(ctx context.Context, key string, result *Result, log *zap.Logger) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		log.Warn("Failed to encode search result for cache", zap.Error(err))
		return
	}
	if err := a.cache.Set(ctx, key, data, a.config.CacheTTL); err != nil {
		log.Warn("Search cache write failed", zap.Error(err))
	}
}

func (a *Aggregator) loggerFor(ctx context.Context) *zap.Logger {
	return logger.Or(ctx, a.logger)
}

// CacheKey identifies a query regardless of case and spacing
func CacheKey(q Query) string {
	q, _ = normalizeQuery(q)
	return fmt.Sprintf("%s:%d:%d", strings.ToLower(q.Keyword), q.Page, q.PageSize)
}

// normalizeQuery collapses whitespace and clamps paging. The keyword keeps
// its case; only the cache key folds it.
func normalizeQuery(q Query) (Query, error) {
	q.Keyword = strings.Join(strings.Fields(q.Keyword), " ")
	if q.Keyword == "" {
		return q, marketplace.ErrEmptySearchQuery
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	return q, nil
}
