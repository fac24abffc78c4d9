// Package catalog holds the operator-facing use cases of the popular
// products catalog: listing, lookup, removal and on-demand crawl/refresh.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/application/ingestion"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// ErrProductNotFound is returned when no catalog row has the external id
var ErrProductNotFound = shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found in catalog")

// Config holds retry options of jobs enqueued on demand
type Config struct {
	CrawlAttempts   int
	CrawlBackoff    time.Duration
	RefreshAttempts int
	RefreshBackoff  time.Duration
}

// CatalogService handles catalog queries and operator actions
type CatalogService struct {
	repo      catalog.PopularProductRepository
	enqueuer  ingestion.Enqueuer
	publisher shared.EventPublisher
	config    Config
	logger    *zap.Logger
}

// NewCatalogService creates a new CatalogService. publisher may be nil.
func NewCatalogService(
	repo catalog.PopularProductRepository,
	enqueuer ingestion.Enqueuer,
	publisher shared.EventPublisher,
	config Config,
	logger *zap.Logger,
) *CatalogService {
	// crawl jobs retry like the category jobs they fan out to
	d := ingestion.DefaultConfig()
	if config.CrawlAttempts <= 0 {
		config.CrawlAttempts = d.CategoryAttempts
	}
	if config.CrawlBackoff <= 0 {
		config.CrawlBackoff = d.CategoryBackoff
	}
	if config.RefreshAttempts <= 0 {
		config.RefreshAttempts = d.RefreshAttempts
	}
	if config.RefreshBackoff <= 0 {
		config.RefreshBackoff = d.RefreshBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		repo:      repo,
		enqueuer:  enqueuer,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// StartCrawl enqueues a full catalog crawl
func (s *CatalogService) StartCrawl(ctx context.Context) (*EnqueuedJobDTO, error) {
	job, err := s.enqueuer.Enqueue(ctx, ingestion.JobTypeCatalog, ingestion.CatalogJob{},
		queue.WithAttempts(s.config.CrawlAttempts),
		queue.WithBackoff(s.config.CrawlBackoff),
	)
	if err != nil {
		return nil, shared.WrapDomainError("INTERNAL_ERROR", "Failed to enqueue crawl", err)
	}
	s.logger.Info("Catalog crawl requested", zap.String("job_id", job.ID.String()))
	return toEnqueuedJob(job), nil
}

// ListProducts returns a page of catalog rows
func (s *CatalogService) ListProducts(ctx context.Context, filter ProductListFilter) (*ProductListResult, error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   strings.TrimSpace(filter.Search),
	}.Normalize(100)
	if f.OrderBy == "" {
		f.OrderBy = "sold_value"
	}
	if f.OrderDir == "" {
		f.OrderDir = "desc"
	}

	products, total, err := s.repo.List(ctx, catalog.ListFilter{
		Filter:     f,
		CategoryID: strings.TrimSpace(filter.CategoryID),
	})
	if err != nil {
		return nil, shared.WrapDomainError("INTERNAL_ERROR", "Failed to list products", err)
	}

	dtos := make([]ProductDTO, len(products))
	for i := range products {
		dtos[i] = ToProductDTO(&products[i])
	}
	return &ProductListResult{
		Products: dtos,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	}, nil
}

// GetProduct returns one catalog row
func (s *CatalogService) GetProduct(ctx context.Context, externalID string) (*ProductDTO, error) {
	product, err := s.find(ctx, externalID)
	if err != nil {
		return nil, err
	}
	dto := ToProductDTO(product)
	return &dto, nil
}

// DeleteProduct removes a catalog row on operator request
func (s *CatalogService) DeleteProduct(ctx context.Context, externalID string) error {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return ErrProductNotFound
	}
	events, err := s.repo.DeleteByExternalID(ctx, id, catalog.DeleteReasonManual)
	if err != nil {
		return shared.WrapDomainError("INTERNAL_ERROR", "Failed to delete product", err)
	}
	if len(events) == 0 {
		return ErrProductNotFound
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish catalog events", zap.String("external_product_id", id), zap.Error(err))
		}
	}
	s.logger.Info("Product removed from catalog", zap.String("external_product_id", id))
	return nil
}

// RequestRefresh enqueues a refresh of one catalog row
func (s *CatalogService) RequestRefresh(ctx context.Context, externalID string) (*EnqueuedJobDTO, error) {
	product, err := s.find(ctx, externalID)
	if err != nil {
		return nil, err
	}
	job, err := s.enqueuer.Enqueue(ctx, ingestion.JobTypeRefresh,
		ingestion.RefreshJob{ExternalProductID: product.ExternalProductID},
		queue.WithAttempts(s.config.RefreshAttempts),
		queue.WithBackoff(s.config.RefreshBackoff),
	)
	if err != nil {
		return nil, shared.WrapDomainError("INTERNAL_ERROR", "Failed to enqueue refresh", err)
	}
	return toEnqueuedJob(job), nil
}

func (s *CatalogService) find(ctx context.Context, externalID string) (*catalog.PopularProduct, error) {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return nil, ErrProductNotFound
	}
	product, err := s.repo.FindByExternalID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, shared.WrapDomainError("INTERNAL_ERROR", "Failed to load product", err)
	}
	return product, nil
}

func toEnqueuedJob(job *shared.Job) *EnqueuedJobDTO {
	return &EnqueuedJobDTO{JobID: job.ID, Type: job.Type, RunAt: job.RunAt}
}
