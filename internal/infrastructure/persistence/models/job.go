package models

import (
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/google/uuid"
)

// JobModel is the persistence model for queued background jobs
type JobModel struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Type          string           `gorm:"type:varchar(64);not null;index:idx_jobs_claim,priority:1"`
	Payload       []byte           `gorm:"type:jsonb;not null"`
	Status        shared.JobStatus `gorm:"type:varchar(20);not null;index:idx_jobs_claim,priority:2;index:idx_jobs_status_updated,priority:1"`
	Priority      int              `gorm:"not null"`
	Attempts      int              `gorm:"not null"`
	MaxAttempts   int              `gorm:"not null"`
	BackoffMillis int64            `gorm:"not null"`
	RunAt         time.Time        `gorm:"not null;index:idx_jobs_claim,priority:3"`
	DedupeKey     *string          `gorm:"type:varchar(255);index:idx_jobs_dedupe_key"`
	LastError     string           `gorm:"type:text"`
	LockedAt      *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null;index:idx_jobs_status_updated,priority:2"`
}

// TableName returns the table name for GORM
func (JobModel) TableName() string {
	return "jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *JobModel) ToDomain() *shared.Job {
	job := &shared.Job{
		ID:          m.ID,
		Type:        m.Type,
		Payload:     m.Payload,
		Status:      m.Status,
		Priority:    m.Priority,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		BackoffBase: time.Duration(m.BackoffMillis) * time.Millisecond,
		RunAt:       m.RunAt,
		LastError:   m.LastError,
		LockedAt:    m.LockedAt,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.DedupeKey != nil {
		job.DedupeKey = *m.DedupeKey
	}
	return job
}

// FromDomain populates the persistence model from a domain Job.
// Timestamps are stored in UTC so they compare correctly on every dialect.
func (m *JobModel) FromDomain(j *shared.Job) {
	m.ID = j.ID
	m.Type = j.Type
	m.Payload = j.Payload
	m.Status = j.Status
	m.Priority = j.Priority
	m.Attempts = j.Attempts
	m.MaxAttempts = j.MaxAttempts
	m.BackoffMillis = j.BackoffBase.Milliseconds()
	m.RunAt = j.RunAt.UTC()
	m.DedupeKey = nil
	if j.DedupeKey != "" {
		key := j.DedupeKey
		m.DedupeKey = &key
	}
	m.LastError = j.LastError
	m.LockedAt = utcPtr(j.LockedAt)
	m.CompletedAt = utcPtr(j.CompletedAt)
	m.CreatedAt = j.CreatedAt.UTC()
	m.UpdatedAt = j.UpdatedAt.UTC()
}

// JobModelFromDomain creates a new persistence model from a domain Job
func JobModelFromDomain(j *shared.Job) *JobModel {
	m := &JobModel{}
	m.FromDomain(j)
	return m
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
