package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/normalizer"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// PageResult reports how many products of a page were handed to the upsert stage
type PageResult struct {
	Processed  int  `json:"processed"`
	Dropped    int  `json:"dropped"`
	Continued  bool `json:"continued"`
	NextOffset int  `json:"next_offset,omitempty"`
}

// SourceFinder looks up a matching product on the sourcing marketplace
type SourceFinder interface {
	Match(ctx context.Context, product marketplace.Product) (*catalog.SourceReference, error)
}

// Paginator fetches one page of a category and fans out its products
type Paginator struct {
	client   marketplace.Client
	enqueuer Enqueuer
	sources  SourceFinder
	recorder Recorder
	config   Config
	logger   *zap.Logger
}

// PaginatorOption configures a Paginator
type PaginatorOption func(*Paginator)

// WithSourceFinder enables source matching for every fetched product
func WithSourceFinder(f SourceFinder) PaginatorOption {
	return func(p *Paginator) {
		p.sources = f
	}
}

// WithPaginatorRecorder sets the measurement sink
func WithPaginatorRecorder(r Recorder) PaginatorOption {
	return func(p *Paginator) {
		if r != nil {
			p.recorder = r
		}
	}
}

// NewPaginator creates a new paginator
func NewPaginator(client marketplace.Client, enqueuer Enqueuer, config Config, logger *zap.Logger, opts ...PaginatorOption) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Paginator{
		client:   client,
		enqueuer: enqueuer,
		recorder: nopRecorder{},
		config:   config.withDefaults(),
		logger:   logger.Named("paginator"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one page. A missing or empty product list ends the chain
// without error. An upstream error fails this page only; the continuation
// is enqueued after the page's products, so the chain never skips a page.
func (p *Paginator) Run(ctx context.Context, job CategoryJob) (PageResult, error) {
	job.CategoryID = strings.TrimSpace(job.CategoryID)
	if job.CategoryID == "" {
		return PageResult{}, queue.Permanent(errors.New("category id is required"))
	}
	if job.Offset < 0 {
		return PageResult{}, queue.Permanent(fmt.Errorf("negative offset %d", job.Offset))
	}
	if job.Limit <= 0 {
		job.Limit = p.config.PageLimit
	}

	log := jobLogger(ctx, p.logger).With(
		zap.String("category_id", job.CategoryID),
		zap.Int("offset", job.Offset),
		zap.Int("limit", job.Limit),
	)

	page, err := p.client.ListProductsByCategory(ctx, job.CategoryID, job.Offset, job.Limit)
	if err != nil {
		return PageResult{}, upstreamFailure(err, "fetch category %s page at offset %d", job.CategoryID, job.Offset)
	}
	if page == nil || len(page.Results) == 0 {
		log.Debug("empty page, category crawl finished")
		return PageResult{}, nil
	}

	products, failures := normalizer.NormalizeBatch(page.Results)
	for _, f := range failures {
		log.Warn("dropping item that failed normalization", zap.Int("index", f.Index), zap.Error(f.Err))
	}
	dropped := len(failures)
	keep := products[:0]
	for _, product := range products {
		if err := catalog.ValidateExternalID(product.ID); err != nil {
			log.Warn("dropping item with unusable id", zap.String("external_product_id", product.ID), zap.Error(err))
			dropped++
			continue
		}
		keep = append(keep, product)
	}
	products = keep
	if dropped > 0 {
		p.recorder.ItemsDropped(ctx, p.client.Provider().String(), dropped)
	}

	result := PageResult{Dropped: dropped}
	for _, product := range products {
		upsert := UpsertJob{
			CategoryID:        job.CategoryID,
			ExternalProductID: product.ID,
			Snapshot:          snapshotOf(product),
			SourceSnapshot:    p.matchSource(ctx, log, product),
		}
		if _, err := p.enqueuer.Enqueue(ctx, JobTypeUpsert, upsert, p.config.upsertOptions()...); err != nil {
			return result, fmt.Errorf("enqueue upsert of %s: %w", product.ID, err)
		}
		result.Processed++
	}

	if page.HasMore(job.Offset, job.Limit) {
		next := CategoryJob{
			CategoryID: job.CategoryID,
			Offset:     job.Offset + job.Limit,
			Limit:      job.Limit,
			RunID:      job.RunID,
		}
		opts := append(p.config.categoryOptions(next), queue.WithDelay(p.config.ContinuationDelay))
		_, err := p.enqueuer.Enqueue(ctx, JobTypeCategory, next, opts...)
		switch {
		case errors.Is(err, queue.ErrDuplicateJob):
			log.Debug("continuation already dispatched", zap.Int("next_offset", next.Offset))
		case err != nil:
			return result, fmt.Errorf("enqueue continuation at offset %d: %w", next.Offset, err)
		}
		result.Continued = true
		result.NextOffset = next.Offset
	}

	log.Info("category page processed",
		zap.Int("processed", result.Processed),
		zap.Int("dropped", result.Dropped),
		zap.Int("total", page.Paging.Total),
		zap.Bool("continued", result.Continued),
	)
	return result, nil
}

func (p *Paginator) matchSource(ctx context.Context, log *zap.Logger, product marketplace.Product) *catalog.SourceReference {
	if p.sources == nil {
		return nil
	}
	ref, err := p.sources.Match(ctx, product)
	if err != nil {
		log.Debug("source match failed", zap.String("external_product_id", product.ID), zap.Error(err))
		return nil
	}
	return ref
}

// Handle is the queue handler for catalog.category jobs
func (p *Paginator) Handle(ctx context.Context, job *shared.Job) error {
	cj, err := decodePayload[CategoryJob](job)
	if err != nil {
		return err
	}
	_, err = p.Run(ctx, cj)
	return err
}
