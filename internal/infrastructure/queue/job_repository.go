package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxJobPageSize = 100

var claimableStatuses = []string{
	string(shared.JobStatusPending),
	string(shared.JobStatusFailed),
}

// GormJobRepository implements JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GORM-based job repository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Save persists one or more new jobs
func (r *GormJobRepository) Save(ctx context.Context, jobs ...*shared.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	rows := make([]*models.JobModel, len(jobs))
	for i, j := range jobs {
		rows[i] = models.JobModelFromDomain(j)
	}
	if err := r.db.WithContext(ctx).Create(rows).Error; err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}

// ClaimNext moves the next due job of the given type to RUNNING.
// Candidates are ordered by priority, then run_at. The status update is
// conditional on the status read, so two workers can never claim one job.
func (r *GormJobRepository) ClaimNext(ctx context.Context, jobType string, now time.Time) (*shared.Job, error) {
	now = now.UTC()
	var claimed *shared.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("type = ? AND status IN ? AND run_at <= ?", jobType, claimableStatuses, now).
			Order("priority DESC").
			Order("run_at ASC").
			Order("created_at ASC").
			Limit(1)
		if persistence.IsPostgres(tx) {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var rows []models.JobModel
		if err := query.Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		job := rows[0].ToDomain()
		previous := job.Status
		if err := job.MarkRunning(now); err != nil {
			return err
		}

		res := tx.Model(&models.JobModel{}).
			Where("id = ? AND status = ?", job.ID, string(previous)).
			Updates(map[string]interface{}{
				"status":     string(job.Status),
				"attempts":   job.Attempts,
				"locked_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// another worker won the row
			return nil
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim %s job: %w", jobType, err)
	}
	return claimed, nil
}

// Update writes back the mutable state of a job
func (r *GormJobRepository) Update(ctx context.Context, job *shared.Job) error {
	m := models.JobModelFromDomain(job)
	res := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":       string(m.Status),
			"attempts":     m.Attempts,
			"max_attempts": m.MaxAttempts,
			"run_at":       m.RunAt,
			"last_error":   m.LastError,
			"locked_at":    m.LockedAt,
			"completed_at": m.CompletedAt,
			"updated_at":   m.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID retrieves a single job
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.Job, error) {
	var m models.JobModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return m.ToDomain(), nil
}

// FindDead retrieves dead jobs with pagination, most recently failed first
func (r *GormJobRepository) FindDead(ctx context.Context, filter shared.JobFilter) ([]*shared.Job, int64, error) {
	filter.Status = shared.JobStatusDead
	return r.FindAll(ctx, filter)
}

// FindAll lists jobs by type and status with pagination
func (r *GormJobRepository) FindAll(ctx context.Context, filter shared.JobFilter) ([]*shared.Job, int64, error) {
	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > maxJobPageSize {
		pageSize = maxJobPageSize
	}

	query := r.db.WithContext(ctx).Model(&models.JobModel{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	var rows []models.JobModel
	if err := query.
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*shared.Job, len(rows))
	for i := range rows {
		jobs[i] = rows[i].ToDomain()
	}
	return jobs, total, nil
}

// CountByStatus returns job counts per status
func (r *GormJobRepository) CountByStatus(ctx context.Context) (map[shared.JobStatus]int64, error) {
	var results []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}

	counts := make(map[shared.JobStatus]int64, len(results))
	for _, row := range results {
		counts[shared.JobStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// CountByType returns job counts per type for the given status
func (r *GormJobRepository) CountByType(ctx context.Context, status shared.JobStatus) (map[string]int64, error) {
	var results []struct {
		Type  string
		Count int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Select("type, count(*) as count").
		Where("status = ?", string(status)).
		Group("type").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("count jobs by type: %w", err)
	}

	counts := make(map[string]int64, len(results))
	for _, row := range results {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

// RecoverStale releases RUNNING jobs whose lock is older than the cutoff.
// Jobs with attempts left go back to PENDING; the rest become DEAD.
func (r *GormJobRepository) RecoverStale(ctx context.Context, lockedBefore time.Time) (int64, error) {
	lockedBefore = lockedBefore.UTC()
	now := time.Now().UTC()
	var recovered int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := func() *gorm.DB {
			return tx.Model(&models.JobModel{}).
				Where("status = ? AND locked_at < ?", string(shared.JobStatusRunning), lockedBefore)
		}

		res := stale().Where("attempts >= max_attempts").Updates(map[string]interface{}{
			"status":     string(shared.JobStatusDead),
			"last_error": "worker lock expired",
			"locked_at":  nil,
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		recovered += res.RowsAffected

		res = stale().Updates(map[string]interface{}{
			"status":     string(shared.JobStatusPending),
			"run_at":     now,
			"locked_at":  nil,
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		recovered += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return recovered, nil
}

// DeleteCompletedBefore deletes completed jobs finished before the cutoff
func (r *GormJobRepository) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND completed_at < ?", string(shared.JobStatusCompleted), before.UTC()).
		Delete(&models.JobModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete completed jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ensure GormJobRepository implements JobRepository
var _ shared.JobRepository = (*GormJobRepository)(nil)
