package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// Option configures a single enqueue call
type Option func(*enqueueOptions)

type enqueueOptions struct {
	attempts  int
	backoff   time.Duration
	delay     time.Duration
	priority  int
	dedupeKey string
}

// WithAttempts sets the total number of attempts before the job becomes dead
func WithAttempts(n int) Option {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithBackoff sets the base of the exponential retry delay
func WithBackoff(base time.Duration) Option {
	return func(o *enqueueOptions) {
		if base > 0 {
			o.backoff = base
		}
	}
}

// WithDelay postpones the first run
func WithDelay(d time.Duration) Option {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithPriority sets the job priority; higher runs first among due jobs of a type
func WithPriority(p int) Option {
	return func(o *enqueueOptions) {
		o.priority = p
	}
}

// WithDedupeKey drops the enqueue when the key was already used within the dedupe TTL
func WithDedupeKey(key string) Option {
	return func(o *enqueueOptions) {
		o.dedupeKey = key
	}
}

// EnqueuerConfig holds enqueuer settings
type EnqueuerConfig struct {
	DedupeTTL time.Duration
}

// Enqueuer writes new jobs to the queue
type Enqueuer struct {
	repo     shared.JobRepository
	dedupe   shared.IdempotencyStore
	config   EnqueuerConfig
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// NewEnqueuer creates an enqueuer. dedupe may be nil, in which case dedupe keys
// are stored on the job but not enforced.
func NewEnqueuer(repo shared.JobRepository, dedupe shared.IdempotencyStore, cfg EnqueuerConfig, logger *zap.Logger) *Enqueuer {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enqueuer{
		repo:     repo,
		dedupe:   dedupe,
		config:   cfg,
		logger:   logger.Named("enqueuer"),
		observer: nopObserver{},
		now:      time.Now,
	}
}

// SetObserver attaches a lifecycle observer
func (e *Enqueuer) SetObserver(o Observer) {
	if o != nil {
		e.observer = o
	}
}

// Enqueue stores a new job. payload is JSON-encoded unless it is already
// []byte or json.RawMessage. Returns ErrDuplicateJob when the dedupe key was taken.
func (e *Enqueuer) Enqueue(ctx context.Context, jobType string, payload any, opts ...Option) (*shared.Job, error) {
	if jobType == "" {
		return nil, errors.New("queue: job type is required")
	}
	o := enqueueOptions{
		attempts: shared.DefaultJobMaxAttempts,
		backoff:  shared.DefaultJobBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", jobType, err)
	}

	if o.dedupeKey != "" && e.dedupe != nil {
		ok, err := e.dedupe.MarkProcessed(ctx, o.dedupeKey, e.config.DedupeTTL)
		if err != nil {
			return nil, fmt.Errorf("claim dedupe key: %w", err)
		}
		if !ok {
			e.logger.Debug("duplicate job dropped",
				zap.String("job_type", jobType),
				zap.String("dedupe_key", o.dedupeKey),
			)
			return nil, ErrDuplicateJob
		}
	}

	now := e.now()
	job := shared.NewJob(jobType, data, now.Add(o.delay))
	job.MaxAttempts = o.attempts
	job.BackoffBase = o.backoff
	job.Priority = o.priority
	job.DedupeKey = o.dedupeKey
	job.CreatedAt, job.UpdatedAt = now, now

	if err := e.repo.Save(ctx, job); err != nil {
		if o.dedupeKey != "" && e.dedupe != nil {
			if relErr := e.dedupe.Release(context.WithoutCancel(ctx), o.dedupeKey); relErr != nil {
				e.logger.Warn("failed to release dedupe key", zap.String("dedupe_key", o.dedupeKey), zap.Error(relErr))
			}
		}
		return nil, err
	}

	e.observer.JobEnqueued(ctx, jobType)
	e.logger.Debug("job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", jobType),
		zap.Time("run_at", job.RunAt),
	)
	return job, nil
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}
