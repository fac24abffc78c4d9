package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/cache"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence/models"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, jobType string, payload any, opts ...queue.Option) (*shared.Job, error) {
	args := m.Called(ctx, jobType, payload)
	if job := args.Get(0); job != nil {
		return job.(*shared.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func newQueueEnqueuer(t *testing.T) (*queue.Enqueuer, *queue.GormJobRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.JobModel{}))

	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	repo := queue.NewGormJobRepository(db)
	return queue.NewEnqueuer(repo, store, queue.EnqueuerConfig{DedupeTTL: 48 * time.Hour}, zap.NewNop()), repo
}

func newTrigger(t *testing.T, enq Enqueuer, hour, minute int) *CronTrigger {
	t.Helper()
	cfg := DefaultCronTriggerConfig()
	cfg.Hour, cfg.Minute = hour, minute
	cfg.JobType = "catalog.crawl"
	trigger, err := NewCronTrigger(cfg, enq, zap.NewNop())
	require.NoError(t, err)
	return trigger
}

func at(day, hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
	}
}

func TestCronTriggerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CronTriggerConfig
		wantErr bool
	}{
		{name: "valid", cfg: CronTriggerConfig{Hour: 3, JobType: "catalog.crawl"}},
		{name: "hour too large", cfg: CronTriggerConfig{Hour: 24, JobType: "catalog.crawl"}, wantErr: true},
		{name: "negative minute", cfg: CronTriggerConfig{Minute: -1, JobType: "catalog.crawl"}, wantErr: true},
		{name: "missing job type", cfg: CronTriggerConfig{Hour: 3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Minute, tt.cfg.CheckInterval)
			assert.Equal(t, time.UTC, tt.cfg.Location)
			assert.Equal(t, 3, tt.cfg.Attempts)
			assert.Equal(t, 2*time.Second, tt.cfg.Backoff)
		})
	}
}

func TestNewCronTrigger_RequiresEnqueuer(t *testing.T) {
	_, err := NewCronTrigger(CronTriggerConfig{JobType: "catalog.crawl"}, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrNoEnqueuer)
}

func TestReached(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         bool
	}{
		{2, 59, false},
		{3, 0, true},
		{3, 30, true},
		{4, 0, true},
	}
	for _, tt := range tests {
		now := time.Date(2026, time.March, 1, tt.hour, tt.minute, 0, 0, time.UTC)
		assert.Equal(t, tt.want, reached(now, 3, 0), "%02d:%02d", tt.hour, tt.minute)
	}
}

func TestCronTrigger_TickOncePerDay(t *testing.T) {
	enq, repo := newQueueEnqueuer(t)
	trigger := newTrigger(t, enq, 3, 0)
	ctx := context.Background()

	trigger.now = at(1, 2, 59)
	assert.False(t, trigger.Tick(ctx), "before the scheduled time")

	trigger.now = at(1, 3, 0)
	assert.True(t, trigger.Tick(ctx))

	trigger.now = at(1, 3, 1)
	assert.False(t, trigger.Tick(ctx), "same day")

	trigger.now = at(2, 3, 0)
	assert.True(t, trigger.Tick(ctx), "next day")

	counts, err := repo.CountByType(ctx, shared.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["catalog.crawl"])
}

func TestCronTrigger_EnqueuesWithCrawlRetryOptions(t *testing.T) {
	enq, repo := newQueueEnqueuer(t)
	trigger := newTrigger(t, enq, 3, 0)
	trigger.now = at(1, 3, 0)
	ctx := context.Background()

	require.True(t, trigger.Tick(ctx))

	job, err := repo.ClaimNext(ctx, "catalog.crawl", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Equal(t, 2*time.Second, job.BackoffBase)
}

func TestCronTrigger_SecondReplicaIsDeduplicated(t *testing.T) {
	enq, repo := newQueueEnqueuer(t)
	first := newTrigger(t, enq, 3, 0)
	second := newTrigger(t, enq, 3, 0)
	first.now = at(1, 3, 0)
	second.now = at(1, 3, 0)
	ctx := context.Background()

	assert.True(t, first.Tick(ctx))
	assert.False(t, second.Tick(ctx))
	assert.Equal(t, "2026-03-01", second.lastRunDate)

	counts, err := repo.CountByType(ctx, shared.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["catalog.crawl"])
}

func TestCronTrigger_EnqueueFailureRetriesNextTick(t *testing.T) {
	enq := new(mockEnqueuer)
	enq.On("Enqueue", mock.Anything, "catalog.crawl", nil).
		Return(nil, errors.New("db down")).Once()
	enq.On("Enqueue", mock.Anything, "catalog.crawl", nil).
		Return(shared.NewJob("catalog.crawl", []byte(`{}`), time.Now()), nil).Once()

	trigger := newTrigger(t, enq, 3, 0)
	trigger.now = at(1, 3, 0)
	ctx := context.Background()

	assert.False(t, trigger.Tick(ctx))
	assert.Empty(t, trigger.lastRunDate)

	trigger.now = at(1, 3, 1)
	assert.True(t, trigger.Tick(ctx))
	enq.AssertExpectations(t)
}

func TestCronTrigger_StartStop(t *testing.T) {
	enq := new(mockEnqueuer)
	trigger := newTrigger(t, enq, 3, 0)

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()), "second start is a no-op")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx), "second stop is a no-op")
}

func TestDailyDedupeKey(t *testing.T) {
	assert.Equal(t, "cron:catalog.crawl:2026-03-01", DailyDedupeKey("catalog.crawl", "2026-03-01"))
}
