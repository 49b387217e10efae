package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements interfaces.JobStorage for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{db: db, logger: logger}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.TenantID == "" {
		return fmt.Errorf("job tenant ID is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = models.JobQueued
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 3
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, tenantID, id string) (*models.Job, error) {
	job, err := s.GetJobAnyTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return job, nil
}

func (s *JobStorage) GetJobAnyTenant(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// UpdateJob persists the job. Terminal states are sticky: a job already in a
// terminal state never moves to a different terminal state.
func (s *JobStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	existing, err := s.GetJobAnyTenant(ctx, job.ID)
	if err != nil {
		return err
	}
	if existing.Status.IsTerminal() && job.Status.IsTerminal() && existing.Status != job.Status {
		return fmt.Errorf("job %s already terminal (%s): %w", job.ID, existing.Status, interfaces.ErrConflict)
	}
	if err := s.db.Store().Update(job.ID, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetJob(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.db.Store().Delete(id, &models.Job{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (s *JobStorage) ListJobs(ctx context.Context, tenantID string, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := badgerhold.Where("TenantID").Eq(tenantID).Index("TenantID")
	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.Type != "" {
			query = query.And("Type").Eq(opts.Type)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) CountJobsByStatus(ctx context.Context, tenantID string) (map[models.JobStatus]int, error) {
	counts := map[models.JobStatus]int{}
	for _, status := range []models.JobStatus{
		models.JobQueued, models.JobRunning, models.JobSucceeded,
		models.JobFailed, models.JobCanceled, models.JobRetrying,
	} {
		count, err := s.db.Store().Count(&models.Job{}, badgerhold.
			Where("TenantID").Eq(tenantID).Index("TenantID").
			And("Status").Eq(status))
		if err != nil {
			return nil, fmt.Errorf("failed to count jobs: %w", err)
		}
		counts[status] = int(count)
	}
	return counts, nil
}

func (s *JobStorage) StaleRunningJobs(ctx context.Context, olderThan time.Duration) ([]*models.Job, error) {
	var jobs []models.Job
	err := s.db.Store().Find(&jobs, badgerhold.
		Where("Status").Eq(models.JobRunning).Index("Status"))
	if err != nil {
		return nil, fmt.Errorf("failed to find running jobs: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	result := make([]*models.Job, 0)
	for i := range jobs {
		if jobs[i].StartedAt != nil && jobs[i].StartedAt.Before(cutoff) {
			result = append(result, &jobs[i])
		}
	}
	return result, nil
}

func (s *JobStorage) DeleteTerminalJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, nil); err != nil {
		return 0, fmt.Errorf("failed to scan jobs: %w", err)
	}
	deleted := 0
	for i := range jobs {
		job := &jobs[i]
		if !job.Status.IsTerminal() {
			continue
		}
		if job.FinishedAt == nil || job.FinishedAt.After(cutoff) {
			continue
		}
		if err := s.db.Store().Delete(job.ID, &models.Job{}); err != nil && err != badgerhold.ErrNotFound {
			return deleted, fmt.Errorf("failed to delete job %s: %w", job.ID, err)
		}
		deleted++
	}
	return deleted, nil
}
