package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Handler processes one job. A returned error schedules a retry unless it
// is wrapped with Permanent.
type Handler func(ctx context.Context, job *shared.Job) error

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		PollInterval: 500 * time.Millisecond,
		JobTimeout:   2 * time.Minute,
	}
}

type registration struct {
	handler Handler
	slots   chan struct{}
}

// Dispatcher runs one poll loop per registered job type. Each type has its
// own worker limit, so a burst of upserts cannot starve the paginators.
type Dispatcher struct {
	repo     shared.JobRepository
	config   DispatcherConfig
	logger   *zap.Logger
	observer Observer
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[string]*registration
	started  bool

	cancel context.CancelFunc
	loops  sync.WaitGroup
	jobs   sync.WaitGroup
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(repo shared.JobRepository, config DispatcherConfig, logger *zap.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		repo:     repo,
		config:   config,
		logger:   logger.Named("dispatcher"),
		observer: nopObserver{},
		now:      time.Now,
		handlers: make(map[string]*registration),
	}
}

// SetObserver attaches a lifecycle observer
func (d *Dispatcher) SetObserver(o Observer) {
	if o != nil {
		d.observer = o
	}
}

// Register binds a handler to a job type with at most concurrency jobs in flight
func (d *Dispatcher) Register(jobType string, handler Handler, concurrency int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}
	if concurrency < 1 {
		concurrency = 1
	}
	d.handlers[jobType] = &registration{
		handler: handler,
		slots:   make(chan struct{}, concurrency),
	}
	return nil
}

// JobTypes returns the registered job types in sorted order
func (d *Dispatcher) JobTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Start launches the poll loops
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for jobType, reg := range d.handlers {
		d.loops.Add(1)
		go d.pollLoop(ctx, jobType, reg)
		d.logger.Info("job worker pool started",
			zap.String("job_type", jobType),
			zap.Int("concurrency", cap(reg.slots)),
		)
	}
	return nil
}

// Stop stops polling and waits for in-flight jobs until ctx expires.
// Jobs still running when ctx expires are recovered by the janitor later.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.loops.Wait()
		d.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) pollLoop(ctx context.Context, jobType string, reg *registration) {
	defer d.loops.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.fill(ctx, jobType, reg)
		}
	}
}

// fill claims jobs until the pool is full or nothing is due
func (d *Dispatcher) fill(ctx context.Context, jobType string, reg *registration) {
	for ctx.Err() == nil {
		select {
		case reg.slots <- struct{}{}:
		default:
			return
		}

		job, err := d.repo.ClaimNext(ctx, jobType, d.now())
		if err != nil || job == nil {
			<-reg.slots
			if err != nil && ctx.Err() == nil {
				d.logger.Error("failed to claim job", zap.String("job_type", jobType), zap.Error(err))
			}
			return
		}

		d.jobs.Add(1)
		go func() {
			defer d.jobs.Done()
			defer func() { <-reg.slots }()
			// in-flight jobs finish even when the dispatcher is stopping
			d.execute(context.WithoutCancel(ctx), reg, job)
		}()
	}
}

// ProcessNext claims and runs one due job of the given type synchronously.
// Returns false when no job was due.
func (d *Dispatcher) ProcessNext(ctx context.Context, jobType string) (bool, error) {
	d.mu.RLock()
	reg, ok := d.handlers[jobType]
	d.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}

	job, err := d.repo.ClaimNext(ctx, jobType, d.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	d.execute(ctx, reg, job)
	return true, nil
}

func (d *Dispatcher) execute(ctx context.Context, reg *registration, job *shared.Job) {
	jobCtx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()
	jobCtx, log := logger.WithJob(jobCtx, d.logger, job.ID.String(), job.Type, job.Attempts)

	start := d.now()
	err := runSafely(jobCtx, reg.handler, job)
	now := d.now()

	switch {
	case err == nil:
		job.MarkCompleted(now)
		d.observer.JobCompleted(ctx, job.Type, now.Sub(start))
		log.Debug("job completed", zap.Duration("elapsed", now.Sub(start)))

	case IsPermanent(err):
		job.MarkDead(err.Error(), now)
		d.observer.JobDead(ctx, job.Type)
		log.Error("job failed permanently", zap.Error(err))

	default:
		job.MarkFailed(err.Error(), now)
		if job.IsDead() {
			d.observer.JobDead(ctx, job.Type)
			log.Error("job exhausted its attempts",
				zap.Int("max_attempts", job.MaxAttempts),
				zap.Error(err),
			)
		} else {
			d.observer.JobRetried(ctx, job.Type)
			log.Warn("job failed, retry scheduled",
				zap.Time("next_run_at", job.RunAt),
				zap.Error(err),
			)
		}
	}

	if updateErr := d.repo.Update(ctx, job); updateErr != nil {
		log.Error("failed to record job outcome", zap.Error(updateErr))
	}
}

func runSafely(ctx context.Context, h Handler, job *shared.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job handler: %v", r)
		}
	}()
	return h(ctx, job)
}
