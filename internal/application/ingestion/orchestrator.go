package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DispatchResult reports how many category crawls were started
type DispatchResult struct {
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
}

// Orchestrator enumerates the category tree and fans out one CategoryJob per category
type Orchestrator struct {
	client   marketplace.Client
	enqueuer Enqueuer
	config   Config
	logger   *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(client marketplace.Client, enqueuer Enqueuer, config Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:   client,
		enqueuer: enqueuer,
		config:   config.withDefaults(),
		logger:   logger.Named("orchestrator"),
	}
}

// Run fetches all categories and dispatches the first page of each.
// An upstream failure aborts before anything is enqueued. runID scopes the
// dedupe keys, so a retried run does not dispatch a category twice.
func (o *Orchestrator) Run(ctx context.Context, runID string) (DispatchResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	categories, err := o.client.ListCategories(ctx)
	if err != nil {
		return DispatchResult{}, upstreamFailure(err, "list categories")
	}
	if categories == nil {
		return DispatchResult{}, fmt.Errorf("list categories: %w", marketplace.ErrInvalidResponse)
	}

	var result DispatchResult
	for _, cat := range categories {
		id := strings.TrimSpace(cat.ID)
		if id == "" {
			result.Skipped++
			continue
		}

		job := CategoryJob{CategoryID: id, Offset: 0, Limit: o.config.PageLimit, RunID: runID}
		_, err := o.enqueuer.Enqueue(ctx, JobTypeCategory, job, o.config.categoryOptions(job)...)
		if errors.Is(err, queue.ErrDuplicateJob) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("dispatch category %s: %w", id, err)
		}
		result.Dispatched++
	}

	o.logger.Info("catalog crawl dispatched",
		zap.String("run_id", runID),
		zap.Int("categories", len(categories)),
		zap.Int("dispatched", result.Dispatched),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// Handle is the queue handler for catalog.crawl jobs. The job id doubles as the run id.
func (o *Orchestrator) Handle(ctx context.Context, job *shared.Job) error {
	if _, err := decodePayload[CatalogJob](job); err != nil {
		return err
	}
	_, err := o.Run(ctx, job.ID.String())
	return err
}
