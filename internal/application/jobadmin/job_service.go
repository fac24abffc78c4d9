package jobadmin

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const retryBatchSize = 100

// JobService handles operator actions on the job queue
type JobService struct {
	repo   shared.JobRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewJobService creates a new job service
func NewJobService(
	repo shared.JobRepository,
	logger *zap.Logger,
) *JobService {
	return &JobService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// JobDTO represents a job data transfer object
type JobDTO struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	RunAt       time.Time       `json:"run_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// JobFilter represents filter for querying jobs
type JobFilter struct {
	Type     string `form:"type,omitempty"`
	Page     int    `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// JobListResult represents paginated job list result
type JobListResult struct {
	Jobs       []JobDTO `json:"jobs"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// JobStatsDTO represents queue statistics
type JobStatsDTO struct {
	Pending   int64            `json:"pending"`
	Running   int64            `json:"running"`
	Completed int64            `json:"completed"`
	Failed    int64            `json:"failed"`
	Dead      int64            `json:"dead"`
	Total     int64            `json:"total"`
	Backlog   map[string]int64 `json:"backlog"`
}

// GetDeadJobs retrieves dead jobs with pagination
func (s *JobService) GetDeadJobs(ctx context.Context, filter JobFilter) (*JobListResult, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	jobs, total, err := s.repo.FindDead(ctx, shared.JobFilter{Type: filter.Type, Page: page, PageSize: pageSize})
	if err != nil {
		s.logger.Error("Failed to find dead jobs", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead jobs")
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	dtos := make([]JobDTO, len(jobs))
	for i, job := range jobs {
		dtos[i] = toJobDTO(job)
	}

	return &JobListResult{
		Jobs:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetJob retrieves a single job by ID
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*JobDTO, error) {
	job, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toJobDTO(job)
	return &dto, nil
}

// RetryDeadJob puts a dead job back in the queue with fresh attempts
func (s *JobService) RetryDeadJob(ctx context.Context, id uuid.UUID) (*JobDTO, error) {
	job, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := job.ResetForRetry(s.now()); err != nil {
		return nil, shared.NewDomainError("INVALID_STATUS", err.Error())
	}

	if err := s.repo.Update(ctx, job); err != nil {
		s.logger.Error("Failed to update job", zap.Error(err), zap.String("job_id", id.String()))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retry job")
	}

	s.logger.Info("Dead job reset for retry",
		zap.String("job_id", id.String()),
		zap.String("job_type", job.Type),
	)

	dto := toJobDTO(job)
	return &dto, nil
}

// RetryAllDeadJobs resets every dead job for retry, optionally of one type
func (s *JobService) RetryAllDeadJobs(ctx context.Context, jobType string) (int64, error) {
	var count int64

	// reset jobs leave the dead set, so the first page is always the next batch
	for {
		jobs, _, err := s.repo.FindDead(ctx, shared.JobFilter{Type: jobType, Page: 1, PageSize: retryBatchSize})
		if err != nil {
			s.logger.Error("Failed to find dead jobs", zap.Error(err))
			return count, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead jobs")
		}

		reset := 0
		for _, job := range jobs {
			if err := job.ResetForRetry(s.now()); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, job); err != nil {
				s.logger.Error("Failed to update job", zap.Error(err), zap.String("job_id", job.ID.String()))
				continue
			}
			reset++
		}
		count += int64(reset)

		if reset == 0 || len(jobs) < retryBatchSize {
			break
		}
	}

	s.logger.Info("Retried dead jobs", zap.Int64("count", count), zap.String("job_type", jobType))

	return count, nil
}

// GetStats returns queue statistics
func (s *JobService) GetStats(ctx context.Context) (*JobStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("Failed to get job stats", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get job stats")
	}
	backlog, err := s.repo.CountByType(ctx, shared.JobStatusPending)
	if err != nil {
		s.logger.Error("Failed to get job backlog", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get job stats")
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	return &JobStatsDTO{
		Pending:   counts[shared.JobStatusPending],
		Running:   counts[shared.JobStatusRunning],
		Completed: counts[shared.JobStatusCompleted],
		Failed:    counts[shared.JobStatusFailed],
		Dead:      counts[shared.JobStatusDead],
		Total:     total,
		Backlog:   backlog,
	}, nil
}

func (s *JobService) find(ctx context.Context, id uuid.UUID) (*shared.Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("JOB_NOT_FOUND", "Job not found")
		}
		s.logger.Error("Failed to find job", zap.Error(err), zap.String("job_id", id.String()))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve job")
	}
	return job, nil
}

func toJobDTO(job *shared.Job) JobDTO {
	payload := json.RawMessage(job.Payload)
	if len(payload) == 0 || !json.Valid(payload) {
		payload = json.RawMessage("{}")
	}
	return JobDTO{
		ID:          job.ID,
		Type:        job.Type,
		Payload:     payload,
		Status:      string(job.Status),
		Priority:    job.Priority,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		LastError:   job.LastError,
		RunAt:       job.RunAt,
		CompletedAt: job.CompletedAt,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}
