package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a queued job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusDead      JobStatus = "DEAD"
)

// Default retry configuration
const (
	DefaultJobMaxAttempts = 3
	DefaultJobBackoff     = time.Second
	maxErrorLength        = 2000
)

// Job is a durable unit of work. A failed job is rescheduled with
// exponential backoff until its attempts are exhausted, then kept as DEAD.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     []byte
	Status      JobStatus
	Priority    int
	Attempts    int
	MaxAttempts int
	BackoffBase time.Duration
	RunAt       time.Time
	DedupeKey   string
	LastError   string
	LockedAt    *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewJob creates a pending job runnable at runAt
func NewJob(jobType string, payload []byte, runAt time.Time) *Job {
	now := time.Now()
	if runAt.IsZero() {
		runAt = now
	}
	return &Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payload,
		Status:      JobStatusPending,
		MaxAttempts: DefaultJobMaxAttempts,
		BackoffBase: DefaultJobBackoff,
		RunAt:       runAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsClaimable reports whether the job may be picked up at now
func (j *Job) IsClaimable(now time.Time) bool {
	return (j.Status == JobStatusPending || j.Status == JobStatusFailed) && !j.RunAt.After(now)
}

// MarkRunning marks the job as claimed by a worker and counts the attempt
func (j *Job) MarkRunning(now time.Time) error {
	if j.Status != JobStatusPending && j.Status != JobStatusFailed {
		return NewDomainError("INVALID_STATE", "can only run pending or failed jobs")
	}
	j.Status = JobStatusRunning
	j.Attempts++
	j.LockedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkCompleted marks the job as successfully processed
func (j *Job) MarkCompleted(now time.Time) {
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.LockedAt = nil
	j.LastError = ""
	j.UpdatedAt = now
}

// MarkFailed records a failed attempt. The job is rescheduled after
// base * 2^(attempts-1) or becomes DEAD once attempts reach MaxAttempts.
func (j *Job) MarkFailed(errMsg string, now time.Time) {
	j.LastError = truncate(errMsg, maxErrorLength)
	j.LockedAt = nil
	j.UpdatedAt = now

	if j.Attempts >= j.MaxAttempts {
		j.Status = JobStatusDead
		return
	}
	j.Status = JobStatusFailed
	j.RunAt = now.Add(j.NextBackoff())
}

// MarkDead retires the job without further retries
func (j *Job) MarkDead(errMsg string, now time.Time) {
	j.Status = JobStatusDead
	j.LastError = truncate(errMsg, maxErrorLength)
	j.LockedAt = nil
	j.UpdatedAt = now
}

// NextBackoff returns the delay before the next attempt, given the attempts made so far
func (j *Job) NextBackoff() time.Duration {
	base := j.BackoffBase
	if base <= 0 {
		base = DefaultJobBackoff
	}
	n := j.Attempts
	if n < 1 {
		n = 1
	}
	if n > 20 {
		n = 20
	}
	return base * time.Duration(1<<uint(n-1))
}

// ResetForRetry resets a dead job so it runs again from scratch
func (j *Job) ResetForRetry(now time.Time) error {
	if j.Status != JobStatusDead {
		return NewDomainError("INVALID_STATE", "can only retry dead jobs")
	}
	j.Status = JobStatusPending
	j.Attempts = 0
	j.LastError = ""
	j.RunAt = now
	j.LockedAt = nil
	j.UpdatedAt = now
	return nil
}

// IsDead returns true if the job exhausted its attempts or failed permanently
func (j *Job) IsDead() bool {
	return j.Status == JobStatusDead
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// JobFilter narrows job listings
type JobFilter struct {
	Type     string
	Status   JobStatus
	Page     int
	PageSize int
}

// JobRepository defines the persistence contract of the job queue
type JobRepository interface {
	// Save persists one or more new jobs
	Save(ctx context.Context, jobs ...*Job) error
	// ClaimNext atomically moves the next due job of the given type to RUNNING and returns it.
	// Returns nil, nil when nothing is due.
	ClaimNext(ctx context.Context, jobType string, now time.Time) (*Job, error)
	// Update writes back the state of a job
	Update(ctx context.Context, job *Job) error
	// FindByID retrieves a single job
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	// FindDead retrieves dead jobs with pagination
	FindDead(ctx context.Context, filter JobFilter) ([]*Job, int64, error)
	// FindAll lists jobs by type and status with pagination
	FindAll(ctx context.Context, filter JobFilter) ([]*Job, int64, error)
	// CountByStatus returns job counts per status
	CountByStatus(ctx context.Context) (map[JobStatus]int64, error)
	// CountByType returns job counts per type for the given status
	CountByType(ctx context.Context, status JobStatus) (map[string]int64, error)
	// RecoverStale returns RUNNING jobs locked before the cutoff to PENDING so they are picked up
	// again, or retires them as DEAD when no attempts remain
	RecoverStale(ctx context.Context, lockedBefore time.Time) (int64, error)
	// DeleteCompletedBefore deletes completed jobs older than the cutoff
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error)
}
