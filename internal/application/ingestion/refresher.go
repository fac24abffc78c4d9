package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/normalizer"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// RefreshResult reports what a refresh did to the catalog row
type RefreshResult struct {
	Deleted bool `json:"deleted"`
	Updated bool `json:"updated"`
}

// Refresher re-fetches product detail and removes rows the upstream has delisted
type Refresher struct {
	client    marketplace.Client
	repo      catalog.PopularProductRepository
	publisher shared.EventPublisher
	recorder  Recorder
	logger    *zap.Logger
}

// NewRefresher creates a new refresher. recorder may be nil.
func NewRefresher(client marketplace.Client, repo catalog.PopularProductRepository, publisher shared.EventPublisher, recorder Recorder, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Refresher{
		client:    client,
		repo:      repo,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.Named("refresher"),
	}
}

// Run refreshes one row. A confirmed not-found from the upstream deletes the
// row and succeeds; other upstream errors are returned for retry.
func (r *Refresher) Run(ctx context.Context, job RefreshJob) (RefreshResult, error) {
	id := strings.TrimSpace(job.ExternalProductID)
	if id == "" {
		return RefreshResult{}, queue.Permanent(errors.New("external product id is required"))
	}
	log := jobLogger(ctx, r.logger).With(zap.String("external_product_id", id))

	raw, err := r.client.GetProduct(ctx, id)
	if errors.Is(err, marketplace.ErrProductNotFound) {
		events, err := r.repo.DeleteByExternalID(ctx, id, catalog.DeleteReasonDelisted)
		if err != nil {
			return RefreshResult{}, fmt.Errorf("delete delisted %s: %w", id, err)
		}
		r.publish(ctx, log, events)
		if len(events) > 0 {
			r.recorder.ProductDeleted(ctx, catalog.DeleteReasonDelisted)
			log.Info("delisted product removed from catalog")
		}
		return RefreshResult{Deleted: len(events) > 0}, nil
	}
	if err != nil {
		return RefreshResult{}, upstreamFailure(err, "fetch product %s", id)
	}

	product, err := normalizer.NormalizeAs(r.client.Provider(), raw)
	if err != nil {
		return RefreshResult{}, queue.Permanent(fmt.Errorf("normalize product %s: %w", id, err))
	}

	_, events, err := r.repo.UpdateSnapshot(ctx, id, snapshotOf(product))
	if errors.Is(err, shared.ErrNotFound) {
		log.Debug("product left the catalog before refresh")
		return RefreshResult{}, nil
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh %s: %w", id, err)
	}
	r.publish(ctx, log, events)
	return RefreshResult{Updated: true}, nil
}

func (r *Refresher) publish(ctx context.Context, log *zap.Logger, events []shared.DomainEvent) {
	if r.publisher == nil || len(events) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish catalog events", zap.Error(err))
	}
}

// Handle is the queue handler for catalog.refresh jobs
func (r *Refresher) Handle(ctx context.Context, job *shared.Job) error {
	rj, err := decodePayload[RefreshJob](job)
	if err != nil {
		return err
	}
	_, err = r.Run(ctx, rj)
	return err
}

// RefreshSchedulerConfig holds settings of the periodic refresh sweep
type RefreshSchedulerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
	Attempts   int
	Backoff    time.Duration
}

// RefreshScheduler enqueues refresh jobs for the rows updated longest ago
type RefreshScheduler struct {
	repo     catalog.PopularProductRepository
	enqueuer Enqueuer
	config   RefreshSchedulerConfig
	logger   *zap.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefreshScheduler creates a new refresh scheduler
func NewRefreshScheduler(repo catalog.PopularProductRepository, enqueuer Enqueuer, config RefreshSchedulerConfig, logger *zap.Logger) *RefreshScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 7 * 24 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshScheduler{
		repo:     repo,
		enqueuer: enqueuer,
		config:   config,
		logger:   logger.Named("refresh_scheduler"),
		now:      time.Now,
	}
}

// Start runs a sweep on every interval until Stop
func (s *RefreshScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("refresh sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop stops the sweep loop
func (s *RefreshScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RunOnce enqueues one batch of refresh jobs and returns how many were enqueued.
// Dedupe keys are scoped to the sweep interval so a row is refreshed at most once per window.
func (s *RefreshScheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repo.FindStale(ctx, now.Add(-s.config.StaleAfter), s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("find stale products: %w", err)
	}

	window := now.Truncate(s.config.Interval).Unix()
	enqueued := 0
	for _, id := range ids {
		opts := []queue.Option{
			queue.WithDedupeKey(fmt.Sprintf("refresh:%s:%d", id, window)),
		}
		if s.config.Attempts > 0 {
			opts = append(opts, queue.WithAttempts(s.config.Attempts))
		}
		if s.config.Backoff > 0 {
			opts = append(opts, queue.WithBackoff(s.config.Backoff))
		}
		_, err := s.enqueuer.Enqueue(ctx, JobTypeRefresh, RefreshJob{ExternalProductID: id}, opts...)
		if errors.Is(err, queue.ErrDuplicateJob) {
			continue
		}
		if err != nil {
			return enqueued, fmt.Errorf("enqueue refresh of %s: %w", id, err)
		}
		enqueued++
	}

	if enqueued > 0 {
		s.logger.Info("refresh jobs enqueued", zap.Int("count", enqueued))
	}
	return enqueued, nil
}
