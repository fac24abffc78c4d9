// Package scheduler fires recurring catalog work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("scheduler: invalid trigger config")
	ErrNoEnqueuer    = errors.New("scheduler: no enqueuer")
)

// Enqueuer is the queue port the trigger writes to
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts ...queue.Option) (*shared.Job, error)
}

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// Hour and Minute of the daily run, 24h clock in Location
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
	Location      *time.Location

	// JobType and Payload describe the job enqueued on each run
	JobType  string
	Payload  any
	Attempts int
	Backoff  time.Duration
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Hour:          3,
		Minute:        0,
		CheckInterval: time.Minute,
		Location:      time.UTC,
		Attempts:      3,
		Backoff:       2 * time.Second,
	}
}

// Validate checks the schedule and fills zero values with defaults
func (c *CronTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidConfig, c.Hour)
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidConfig, c.Minute)
	}
	if c.JobType == "" {
		return fmt.Errorf("%w: job type is required", ErrInvalidConfig)
	}
	d := DefaultCronTriggerConfig()
	if c.CheckInterval <= 0 {
		c.CheckInterval = d.CheckInterval
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	return nil
}

// CronTrigger enqueues one job per day at the configured time
type CronTrigger struct {
	config   CronTriggerConfig
	enqueuer Enqueuer
	logger   *zap.Logger
	now      func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, enqueuer Enqueuer, logger *zap.Logger) (*CronTrigger, error) {
	if enqueuer == nil {
		return nil, ErrNoEnqueuer
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		config:   config,
		enqueuer: enqueuer,
		logger:   logger.Named("cron"),
		now:      time.Now,
	}, nil
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.String("job_type", c.config.JobType),
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick enqueues the daily job when the wall clock has reached HH:MM and
// today's run has not happened yet. It reports whether a job was enqueued.
func (c *CronTrigger) Tick(ctx context.Context) bool {
	now := c.now().In(c.config.Location)
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	if !reached(now, c.config.Hour, c.config.Minute) {
		return false
	}

	job, err := c.enqueuer.Enqueue(ctx, c.config.JobType, c.config.Payload,
		queue.WithAttempts(c.config.Attempts),
		queue.WithBackoff(c.config.Backoff),
		queue.WithDedupeKey(DailyDedupeKey(c.config.JobType, currentDate)),
	)
	switch {
	case errors.Is(err, queue.ErrDuplicateJob):
		// another replica already ran today
		c.markRan(currentDate)
		c.logger.Debug("Daily job already enqueued", zap.String("date", currentDate))
		return false
	case err != nil:
		c.logger.Error("Failed to enqueue daily job",
			zap.String("job_type", c.config.JobType),
			zap.Error(err),
		)
		return false
	}

	c.markRan(currentDate)
	c.logger.Info("Daily job enqueued",
		zap.String("job_type", c.config.JobType),
		zap.String("job_id", job.ID.String()),
		zap.String("date", currentDate),
	)
	return true
}

func (c *CronTrigger) markRan(date string) {
	c.mu.Lock()
	c.lastRunDate = date
	c.mu.Unlock()
}

// reached reports whether now is at or past hour:minute of its own day.
// A process that starts late still runs that day's job once.
func reached(now time.Time, hour, minute int) bool {
	if now.Hour() != hour {
		return now.Hour() > hour
	}
	return now.Minute() >= minute
}

// DailyDedupeKey scopes a scheduled job to one calendar day
func DailyDedupeKey(jobType, date string) string {
	return "cron:" + jobType + ":" + date
}
