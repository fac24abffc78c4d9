package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/cache"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/event"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence/models"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockClient is a testify mock of marketplace.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Provider() marketplace.Provider {
	args := m.Called()
	return args.Get(0).(marketplace.Provider)
}

func (m *MockClient) ListCategories(ctx context.Context) ([]marketplace.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.Category), args.Error(1)
}

func (m *MockClient) ListProductsByCategory(ctx context.Context, categoryID string, offset, limit int) (*marketplace.ProductPage, error) {
	args := m.Called(ctx, categoryID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.ProductPage), args.Error(1)
}

func (m *MockClient) GetProduct(ctx context.Context, productID string) (marketplace.RawItem, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(marketplace.RawItem), args.Error(1)
}

func (m *MockClient) Search(ctx context.Context, query marketplace.SearchQuery) (*marketplace.SearchPage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.SearchPage), args.Error(1)
}

// catalogStub serves category listings from memory, slicing by offset and limit
type catalogStub struct {
	mu      sync.Mutex
	items   map[string][]marketplace.RawItem
	failAt  map[string]int
	reject  map[string]bool
	offsets map[string][]int
}

func newCatalogStub() *catalogStub {
	return &catalogStub{
		items:   make(map[string][]marketplace.RawItem),
		failAt:  make(map[string]int),
		reject:  make(map[string]bool),
		offsets: make(map[string][]int),
	}
}

func (s *catalogStub) Provider() marketplace.Provider { return marketplace.ProviderDomestic }

func (s *catalogStub) ListCategories(context.Context) ([]marketplace.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]marketplace.Category, len(ids))
	for i, id := range ids {
		out[i] = marketplace.Category{ID: id, Name: "Category " + id}
	}
	return out, nil
}

func (s *catalogStub) ListProductsByCategory(_ context.Context, categoryID string, offset, limit int) (*marketplace.ProductPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[categoryID] = append(s.offsets[categoryID], offset)

	if n, ok := s.failAt[categoryID]; ok && n == offset {
		delete(s.failAt, categoryID)
		return nil, fmt.Errorf("%w: gateway timeout", marketplace.ErrUnavailable)
	}
	if s.reject[categoryID] {
		return nil, fmt.Errorf("%w: HTTP 400", marketplace.ErrRequestFailed)
	}
	all, ok := s.items[categoryID]
	if !ok {
		return &marketplace.ProductPage{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	var results []marketplace.RawItem
	if offset < len(all) {
		results = all[offset:end]
	}
	return &marketplace.ProductPage{
		Results: results,
		Paging:  marketplace.Paging{Total: len(all), Offset: offset, Limit: limit},
	}, nil
}

func (s *catalogStub) GetProduct(context.Context, string) (marketplace.RawItem, error) {
	return nil, marketplace.ErrNotConfigured
}

func (s *catalogStub) Search(context.Context, marketplace.SearchQuery) (*marketplace.SearchPage, error) {
	return nil, marketplace.ErrNotConfigured
}

func (s *catalogStub) fetchedOffsets(categoryID string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.offsets[categoryID]...)
}

func domesticItems(prefix string, n int) []marketplace.RawItem {
	items := make([]marketplace.RawItem, n)
	for i := range items {
		items[i] = marketplace.RawItem{
			"item_id": fmt.Sprintf("%s-%d", prefix, i),
			"title":   fmt.Sprintf("Product %s %d", prefix, i),
			"price":   "¥1,234.50",
			"sales":   "120",
			"pic_url": "//img.example.com/" + prefix + ".jpg",
		}
	}
	return items
}

type pipeline struct {
	db         *gorm.DB
	jobs       *queue.GormJobRepository
	enqueuer   *queue.Enqueuer
	dispatcher *queue.Dispatcher
	products   *persistence.GormPopularProductRepository
	bus        *event.InMemoryEventBus
	metrics    *event.CatalogMetricsHandler
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.JobModel{},
		&models.PopularProductModel{},
		&models.PopularProductCategoryModel{},
	))

	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	jobs := queue.NewGormJobRepository(db)
	bus := event.NewInMemoryEventBus(zap.NewNop())
	metrics := event.NewCatalogMetricsHandler(nil)
	bus.Subscribe(metrics)

	return &pipeline{
		db:         db,
		jobs:       jobs,
		enqueuer:   queue.NewEnqueuer(jobs, store, queue.EnqueuerConfig{DedupeTTL: time.Hour}, zap.NewNop()),
		dispatcher: queue.NewDispatcher(jobs, queue.DispatcherConfig{JobTimeout: 5 * time.Second}, zap.NewNop()),
		products:   persistence.NewGormPopularProductRepository(db),
		bus:        bus,
		metrics:    metrics,
	}
}

// fastConfig keeps production retry counts but removes waiting between pages
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.ContinuationDelay = time.Nanosecond
	cfg.CategoryBackoff = time.Nanosecond
	cfg.UpsertBackoff = time.Nanosecond
	return cfg
}

// drain runs due jobs of the given types until none is left
func (p *pipeline) drain(t *testing.T, jobTypes ...string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 10000; i++ {
		ranAny := false
		for _, jt := range jobTypes {
			ran, err := p.dispatcher.ProcessNext(ctx, jt)
			require.NoError(t, err)
			ranAny = ranAny || ran
		}
		if !ranAny {
			return
		}
	}
	t.Fatal("queue did not drain")
}

func (p *pipeline) jobsOf(t *testing.T, jobType string) []*shared.Job {
	t.Helper()
	var all []*shared.Job
	for page := 1; ; page++ {
		jobs, _, err := p.jobs.FindAll(context.Background(), shared.JobFilter{Type: jobType, Page: page, PageSize: 100})
		require.NoError(t, err)
		all = append(all, jobs...)
		if len(jobs) < 100 {
			return all
		}
	}
}

func decodeJobs[T any](t *testing.T, jobs []*shared.Job) []T {
	t.Helper()
	out := make([]T, len(jobs))
	for i, j := range jobs {
		require.NoError(t, json.Unmarshal(j.Payload, &out[i]))
	}
	return out
}
