package event

import (
	"context"
	"sync/atomic"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// CatalogChangeRecorder receives one call per catalog change, keyed by event type
type CatalogChangeRecorder interface {
	CatalogChanged(ctx context.Context, eventType string)
}

// CatalogStats is a snapshot of catalog change counts since startup
type CatalogStats struct {
	Created       int64 `json:"created"`
	Updated       int64 `json:"updated"`
	CategoryAdded int64 `json:"category_added"`
	Deleted       int64 `json:"deleted"`
}

// CatalogMetricsHandler counts popular product changes
type CatalogMetricsHandler struct {
	recorder CatalogChangeRecorder

	created       atomic.Int64
	updated       atomic.Int64
	categoryAdded atomic.Int64
	deleted       atomic.Int64
}

// NewCatalogMetricsHandler creates a handler. recorder may be nil.
func NewCatalogMetricsHandler(recorder CatalogChangeRecorder) *CatalogMetricsHandler {
	return &CatalogMetricsHandler{recorder: recorder}
}

// EventTypes implements shared.EventHandler
func (h *CatalogMetricsHandler) EventTypes() []string {
	return []string{
		catalog.EventTypePopularProductCreated,
		catalog.EventTypePopularProductUpdated,
		catalog.EventTypePopularProductCategoryAdded,
		catalog.EventTypePopularProductDeleted,
	}
}

// Handle implements shared.EventHandler
func (h *CatalogMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch event.EventType() {
	case catalog.EventTypePopularProductCreated:
		h.created.Add(1)
	case catalog.EventTypePopularProductUpdated:
		h.updated.Add(1)
	case catalog.EventTypePopularProductCategoryAdded:
		h.categoryAdded.Add(1)
	case catalog.EventTypePopularProductDeleted:
		h.deleted.Add(1)
	default:
		return nil
	}
	if h.recorder != nil {
		h.recorder.CatalogChanged(ctx, event.EventType())
	}
	return nil
}

// Stats returns the current counts
func (h *CatalogMetricsHandler) Stats() CatalogStats {
	return CatalogStats{
		Created:       h.created.Load(),
		Updated:       h.updated.Load(),
		CategoryAdded: h.categoryAdded.Load(),
		Deleted:       h.deleted.Load(),
	}
}

// Invalidator drops cached data
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// SearchCacheInvalidator clears cached search responses when a product
// leaves the catalog, so delisted items stop being served from cache.
type SearchCacheInvalidator struct {
	cache  Invalidator
	logger *zap.Logger
}

// NewSearchCacheInvalidator creates a new invalidator
func NewSearchCacheInvalidator(cache Invalidator, logger *zap.Logger) *SearchCacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchCacheInvalidator{cache: cache, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *SearchCacheInvalidator) EventTypes() []string {
	return []string{catalog.EventTypePopularProductDeleted}
}

// Handle implements shared.EventHandler
func (h *SearchCacheInvalidator) Handle(ctx context.Context, event shared.DomainEvent) error {
	if err := h.cache.Invalidate(ctx); err != nil {
		return err
	}
	h.logger.Debug("search cache invalidated",
		zap.String("external_product_id", event.AggregateID()),
	)
	return nil
}
