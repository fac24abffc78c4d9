package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/catalog"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// Job types handled by the pipeline
const (
	JobTypeCatalog  = "catalog.crawl"
	JobTypeCategory = "catalog.category"
	JobTypeUpsert   = "catalog.upsert"
	JobTypeRefresh  = "catalog.refresh"
)

// CatalogJob triggers a full category enumeration
type CatalogJob struct{}

// CategoryJob is the pagination cursor of one category crawl
type CategoryJob struct {
	CategoryID string `json:"categoryId"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
	RunID      string `json:"runId,omitempty"`
}

// UpsertJob carries one product observation
type UpsertJob struct {
	CategoryID        string                   `json:"categoryId"`
	ExternalProductID string                   `json:"externalProductId"`
	Snapshot          catalog.ProductSnapshot  `json:"snapshot"`
	SourceSnapshot    *catalog.SourceReference `json:"sourceSnapshot,omitempty"`
}

// RefreshJob re-fetches one catalog row from the upstream
type RefreshJob struct {
	ExternalProductID string `json:"externalProductId"`
}

// Enqueuer is the queue port used by the job handlers
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts ...queue.Option) (*shared.Job, error)
}

// Config holds pipeline settings
type Config struct {
	PageLimit         int
	ContinuationDelay time.Duration
	CategoryAttempts  int
	CategoryBackoff   time.Duration
	UpsertAttempts    int
	UpsertBackoff     time.Duration
	RefreshAttempts   int
	RefreshBackoff    time.Duration
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		PageLimit:         25,
		ContinuationDelay: time.Second,
		CategoryAttempts:  3,
		CategoryBackoff:   2 * time.Second,
		UpsertAttempts:    3,
		UpsertBackoff:     time.Second,
		RefreshAttempts:   3,
		RefreshBackoff:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageLimit <= 0 {
		c.PageLimit = d.PageLimit
	}
	if c.ContinuationDelay <= 0 {
		c.ContinuationDelay = d.ContinuationDelay
	}
	if c.CategoryAttempts <= 0 {
		c.CategoryAttempts = d.CategoryAttempts
	}
	if c.CategoryBackoff <= 0 {
		c.CategoryBackoff = d.CategoryBackoff
	}
	if c.UpsertAttempts <= 0 {
		c.UpsertAttempts = d.UpsertAttempts
	}
	if c.UpsertBackoff <= 0 {
		c.UpsertBackoff = d.UpsertBackoff
	}
	if c.RefreshAttempts <= 0 {
		c.RefreshAttempts = d.RefreshAttempts
	}
	if c.RefreshBackoff <= 0 {
		c.RefreshBackoff = d.RefreshBackoff
	}
	return c
}

func (c Config) categoryOptions(job CategoryJob) []queue.Option {
	opts := []queue.Option{
		queue.WithAttempts(c.CategoryAttempts),
		queue.WithBackoff(c.CategoryBackoff),
	}
	if job.RunID != "" {
		opts = append(opts, queue.WithDedupeKey(CategoryDedupeKey(job.RunID, job.CategoryID, job.Offset)))
	}
	return opts
}

func (c Config) upsertOptions() []queue.Option {
	return []queue.Option{
		queue.WithAttempts(c.UpsertAttempts),
		queue.WithBackoff(c.UpsertBackoff),
	}
}

// upstreamFailure wraps a marketplace error with context. Errors the
// upstream will repeat on every attempt are marked permanent.
func upstreamFailure(err error, format string, args ...any) error {
	wrapped := fmt.Errorf(format+": %w", append(args, err)...)
	if marketplace.IsPermanent(err) {
		return queue.Permanent(wrapped)
	}
	return wrapped
}

// CategoryDedupeKey identifies one page of one category within a crawl run
func CategoryDedupeKey(runID, categoryID string, offset int) string {
	return "category:" + runID + ":" + categoryID + ":" + strconv.Itoa(offset)
}

// decodePayload unmarshals a job payload. Undecodable payloads never
// succeed on retry, so the error is permanent.
func decodePayload[T any](job *shared.Job) (T, error) {
	var v T
	if len(job.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(job.Payload, &v); err != nil {
		return v, queue.Permanent(fmt.Errorf("decode %s payload: %w", job.Type, err))
	}
	return v, nil
}

// snapshotOf keeps the fields of a canonical product needed for catalog display
func snapshotOf(p marketplace.Product) catalog.ProductSnapshot {
	return catalog.ProductSnapshot{
		Title:        p.Title,
		Price:        p.Price,
		Thumbnail:    p.ImageURL,
		Permalink:    p.URL,
		SoldQuantity: p.SalesQuantity,
		SoldValue:    p.SoldValue(),
	}
}

// jobLogger prefers the job-scoped logger the dispatcher put in ctx
func jobLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	return logger.Or(ctx, fallback)
}
