package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// UpsertResult reports the catalog row an upsert job wrote
type UpsertResult struct {
	Success       bool   `json:"success"`
	ProductID     string `json:"productId"`
	Created       bool   `json:"created"`
	CategoryAdded bool   `json:"categoryAdded"`
}

// UpsertWorker merges product observations into the popular-products catalog
type UpsertWorker struct {
	repo      catalog.PopularProductRepository
	publisher shared.EventPublisher
	recorder  Recorder
	logger    *zap.Logger
}

// NewUpsertWorker creates a new upsert worker. recorder may be nil.
func NewUpsertWorker(repo catalog.PopularProductRepository, publisher shared.EventPublisher, recorder Recorder, logger *zap.Logger) *UpsertWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &UpsertWorker{
		repo:      repo,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.Named("upsert_worker"),
	}
}

// Run creates the row or merges the observation into it. The repository
// makes the category union atomic, so concurrent jobs for one product
// never drop a category. Invalid observations fail permanently.
func (w *UpsertWorker) Run(ctx context.Context, job UpsertJob) (UpsertResult, error) {
	obs := catalog.Observation{
		ExternalProductID: job.ExternalProductID,
		CategoryID:        job.CategoryID,
		Snapshot:          job.Snapshot,
		Source:            job.SourceSnapshot,
	}

	outcome, err := w.repo.Upsert(ctx, obs)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			return UpsertResult{}, queue.Permanent(err)
		}
		return UpsertResult{}, fmt.Errorf("upsert %s: %w", job.ExternalProductID, err)
	}

	if w.publisher != nil && len(outcome.Events) > 0 {
		if err := w.publisher.Publish(ctx, outcome.Events...); err != nil {
			// the row is committed; a retry would only republish
			jobLogger(ctx, w.logger).Warn("failed to publish catalog events", zap.Error(err))
		}
	}
	w.recorder.ProductUpserted(ctx, outcome.Created)

	jobLogger(ctx, w.logger).Debug("popular product upserted",
		zap.String("external_product_id", outcome.Product.ExternalProductID),
		zap.String("category_id", job.CategoryID),
		zap.Bool("created", outcome.Created),
		zap.Bool("category_added", outcome.CategoryAdded),
		zap.Int("version", outcome.Product.Version),
	)

	return UpsertResult{
		Success:       true,
		ProductID:     outcome.Product.ExternalProductID,
		Created:       outcome.Created,
		CategoryAdded: outcome.CategoryAdded,
	}, nil
}

// Handle is the queue handler for catalog.upsert jobs
func (w *UpsertWorker) Handle(ctx context.Context, job *shared.Job) error {
	uj, err := decodePayload[UpsertJob](job)
	if err != nil {
		return err
	}
	_, err = w.Run(ctx, uj)
	return err
}
