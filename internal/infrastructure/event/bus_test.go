package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", "agg-1"),
	}
}

type testHandler struct {
	eventTypes []string
	err        error
	panicMsg   string

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, event)
	h.mu.Unlock()
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

type countingRecorder struct {
	calls map[string]int
}

func (r *countingRecorder) CatalogChanged(_ context.Context, eventType string) {
	r.calls[eventType]++
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return f.err
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("routes by event type", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		created := &testHandler{}
		deleted := &testHandler{}
		bus.Subscribe(created, "Created")
		bus.Subscribe(deleted, "Deleted")

		require.NoError(t, bus.Publish(ctx, newTestEvent("Created"), newTestEvent("Created")))

		assert.Equal(t, 2, created.count())
		assert.Equal(t, 0, deleted.count())
		assert.Equal(t, int64(2), bus.Stats().Published)
	})

	t.Run("handler types used when none given", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &testHandler{eventTypes: []string{"Created"}}
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(ctx, newTestEvent("Created"), newTestEvent("Other")))
		assert.Equal(t, 1, h.count())
	})

	t.Run("wildcard receives everything once", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &testHandler{}
		bus.Subscribe(h)
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(ctx, newTestEvent("A"), newTestEvent("B")))
		assert.Equal(t, 2, h.count())
	})

	t.Run("failing handlers do not block others", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := &testHandler{err: errors.New("boom")}
		panicking := &testHandler{panicMsg: "nil map"}
		healthy := &testHandler{}
		bus.Subscribe(failing, "Created")
		bus.Subscribe(panicking, "Created")
		bus.Subscribe(healthy, "Created")

		require.NoError(t, bus.Publish(ctx, newTestEvent("Created")))

		assert.Equal(t, 1, healthy.count())
		assert.Equal(t, int64(2), bus.Stats().HandlerFailures)
	})

	t.Run("typed and catch-all subscription delivers once", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &testHandler{}
		bus.Subscribe(h, "Created")
		bus.Subscribe(h, "Created")
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(ctx, newTestEvent("Created")))
		assert.Equal(t, 1, h.count())
	})

	t.Run("nil events are skipped", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		require.NoError(t, bus.Start(ctx))
		require.NoError(t, bus.Publish(ctx, nil))
		assert.Equal(t, int64(0), bus.Stats().Published)
		require.NoError(t, bus.Stop(ctx))
	})
}

func TestCatalogMetricsHandler(t *testing.T) {
	ctx := context.Background()
	recorder := &countingRecorder{calls: map[string]int{}}
	handler := NewCatalogMetricsHandler(recorder)

	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(handler)

	product := &catalog.PopularProduct{ExternalProductID: "MLB1", CategoryIDs: []string{"CAT1", "CAT2"}}
	require.NoError(t, bus.Publish(ctx,
		catalog.NewPopularProductCreatedEvent(product, "CAT1"),
		catalog.NewPopularProductUpdatedEvent(product),
		catalog.NewPopularProductCategoryAddedEvent(product, "CAT2"),
		catalog.NewPopularProductDeletedEvent("MLB1", catalog.DeleteReasonDelisted),
		newTestEvent("Unrelated"),
	))

	assert.Equal(t, CatalogStats{Created: 1, Updated: 1, CategoryAdded: 1, Deleted: 1}, handler.Stats())
	assert.Equal(t, 1, recorder.calls[catalog.EventTypePopularProductDeleted])
	assert.Len(t, recorder.calls, 4)
}

func TestSearchCacheInvalidator(t *testing.T) {
	ctx := context.Background()
	cache := &fakeInvalidator{}
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewSearchCacheInvalidator(cache, nil))

	product := &catalog.PopularProduct{ExternalProductID: "MLB1"}
	require.NoError(t, bus.Publish(ctx, catalog.NewPopularProductCreatedEvent(product, "CAT1")))
	assert.Equal(t, 0, cache.calls)

	require.NoError(t, bus.Publish(ctx, catalog.NewPopularProductDeletedEvent("MLB1", catalog.DeleteReasonManual)))
	assert.Equal(t, 1, cache.calls)

	cache.err = errors.New("redis down")
	require.NoError(t, bus.Publish(ctx, catalog.NewPopularProductDeletedEvent("MLB2", catalog.DeleteReasonManual)))
	assert.Equal(t, int64(1), bus.Stats().HandlerFailures)
}
