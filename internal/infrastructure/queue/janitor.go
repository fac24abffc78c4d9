package queue

import (
	"context"
	"sync"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// JanitorConfig holds configuration for queue housekeeping
type JanitorConfig struct {
	Interval           time.Duration
	StaleLockTimeout   time.Duration
	CompletedRetention time.Duration
}

// DefaultJanitorConfig returns default configuration
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:           time.Minute,
		StaleLockTimeout:   10 * time.Minute,
		CompletedRetention: 7 * 24 * time.Hour,
	}
}

// Janitor releases jobs abandoned by crashed workers and prunes old completed jobs
type Janitor struct {
	repo   shared.JobRepository
	config JanitorConfig
	logger *zap.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a new janitor
func NewJanitor(repo shared.JobRepository, config JanitorConfig, logger *zap.Logger) *Janitor {
	defaults := DefaultJanitorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.StaleLockTimeout <= 0 {
		config.StaleLockTimeout = defaults.StaleLockTimeout
	}
	if config.CompletedRetention <= 0 {
		config.CompletedRetention = defaults.CompletedRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		repo:   repo,
		config: config,
		logger: logger.Named("janitor"),
		now:    time.Now,
	}
}

// Start runs housekeeping once and then on every interval
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		j.RunOnce(ctx)
		ticker := time.NewTicker(j.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.RunOnce(ctx)
			}
		}
	}()
}

// Stop stops the janitor and waits for the current pass to finish
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

// RunOnce performs a single housekeeping pass
func (j *Janitor) RunOnce(ctx context.Context) {
	now := j.now()

	recovered, err := j.repo.RecoverStale(ctx, now.Add(-j.config.StaleLockTimeout))
	if err != nil {
		j.logger.Error("failed to recover stale jobs", zap.Error(err))
	} else if recovered > 0 {
		j.logger.Warn("recovered stale jobs", zap.Int64("count", recovered))
	}

	deleted, err := j.repo.DeleteCompletedBefore(ctx, now.Add(-j.config.CompletedRetention))
	if err != nil {
		j.logger.Error("failed to delete completed jobs", zap.Error(err))
	} else if deleted > 0 {
		j.logger.Info("deleted completed jobs", zap.Int64("count", deleted))
	}
}
