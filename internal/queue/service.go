// Package queue implements the persistent job queue: three priority bands,
// a badger-backed message store, a polling worker pool and the dispatcher
// that routes job types to handlers.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
)

// Service enqueues jobs and manages their lifecycle
type Service struct {
	jobStorage   interfaces.JobStorage
	queueStorage *badgerstore.QueueStorage
	dispatcher   *Dispatcher
	config       *common.QueueConfig
	logger       arbor.ILogger
}

// NewService creates the job service
func NewService(
	jobStorage interfaces.JobStorage,
	queueStorage *badgerstore.QueueStorage,
	dispatcher *Dispatcher,
	config *common.QueueConfig,
	logger arbor.ILogger,
) *Service {
	queueStorage.Configure(config.VisibilityTimeoutDuration(), config.MaxReceive)
	return &Service{
		jobStorage:   jobStorage,
		queueStorage: queueStorage,
		dispatcher:   dispatcher,
		config:       config,
		logger:       logger,
	}
}

// queueName prefixes the configured queue name with the priority band
func (s *Service) queueName(priority int) string {
	return s.config.QueueName + ":" + models.QueueForPriority(priority)
}

// Enqueue writes the job row and pushes a queue entry carrying the job id
func (s *Service) Enqueue(ctx context.Context, tenantID string, jobType models.JobType, payload map[string]interface{}, priority, maxAttempts int) (*models.Job, error) {
	if !s.dispatcher.Knows(jobType) {
		return nil, fmt.Errorf("unknown job type: %q", jobType)
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	job := &models.Job{
		ID:          common.NewID(common.PrefixJob),
		TenantID:    tenantID,
		Type:        jobType,
		Status:      models.JobQueued,
		Priority:    priority,
		Payload:     payload,
		MaxAttempts: maxAttempts,
	}
	if err := s.jobStorage.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	msg := &Message{JobID: job.ID, TenantID: tenantID, Type: string(jobType)}
	body, err := msg.ToJSON()
	if err != nil {
		return nil, err
	}
	queueID, err := s.queueStorage.Enqueue(ctx, s.queueName(priority), body)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	job.QueueJobID = queueID
	if err := s.jobStorage.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(jobType)).
		Int("priority", priority).
		Str("queue", s.queueName(priority)).
		Msg("Job enqueued")
	return job, nil
}

// Get returns one job scoped to the tenant
func (s *Service) Get(ctx context.Context, principal models.Principal, jobID string) (*models.Job, error) {
	return s.jobStorage.GetJob(ctx, principal.TenantID, jobID)
}

// List returns the tenant's jobs with optional status/type filters
func (s *Service) List(ctx context.Context, principal models.Principal, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return s.jobStorage.ListJobs(ctx, principal.TenantID, opts)
}

// Cancel cancels a queued or running job. Running handlers observe the
// cooperative flag at suspension points; when they cannot, their result is
// discarded on completion.
func (s *Service) Cancel(ctx context.Context, principal models.Principal, jobID string) (*models.Job, error) {
	job, err := s.jobStorage.GetJob(ctx, principal.TenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job already terminal (%s): %w", job.Status, interfaces.ErrConflict)
	}

	now := time.Now()
	job.Status = models.JobCanceled
	job.CancelRequested = true
	job.FinishedAt = &now
	job.ProgressMessage = "Canceled by caller"
	if err := s.jobStorage.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Retry re-enqueues a failed job that has attempts left
func (s *Service) Retry(ctx context.Context, principal models.Principal, jobID string) (*models.Job, error) {
	job, err := s.jobStorage.GetJob(ctx, principal.TenantID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.CanRetry() {
		return nil, fmt.Errorf("job is not retryable: %w", interfaces.ErrConflict)
	}

	job.Status = models.JobRetrying
	job.Error = ""
	job.Progress = 0
	job.ProgressMessage = "Retry requested"
	job.FinishedAt = nil
	if err := s.jobStorage.UpdateJob(ctx, job); err != nil {
		return nil, err
	}

	msg := &Message{JobID: job.ID, TenantID: job.TenantID, Type: string(job.Type)}
	body, err := msg.ToJSON()
	if err != nil {
		return nil, err
	}
	if _, err := s.queueStorage.Enqueue(ctx, s.queueName(job.Priority), body); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a terminal job record
func (s *Service) Delete(ctx context.Context, principal models.Principal, jobID string) error {
	job, err := s.jobStorage.GetJob(ctx, principal.TenantID, jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("cannot delete non-terminal job: %w", interfaces.ErrConflict)
	}
	return s.jobStorage.DeleteJob(ctx, principal.TenantID, jobID)
}

// RunSync executes a job inline, bypassing the queue. Debugging surface.
func (s *Service) RunSync(ctx context.Context, principal models.Principal, jobType models.JobType, payload map[string]interface{}) (*models.Job, error) {
	job := &models.Job{
		ID:          common.NewID(common.PrefixJob),
		TenantID:    principal.TenantID,
		Type:        jobType,
		Status:      models.JobQueued,
		Payload:     payload,
		MaxAttempts: 1,
	}
	if err := s.jobStorage.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	s.Execute(ctx, job, "sync")
	return s.jobStorage.GetJob(ctx, principal.TenantID, job.ID)
}

// ProcessNext claims and runs one job from the highest-priority non-empty
// queue. Serverless cron drivers call this endpoint repeatedly.
func (s *Service) ProcessNext(ctx context.Context, workerID string) (bool, error) {
	for _, band := range []string{models.QueueHigh, models.QueueNormal, models.QueueLow} {
		msg, err := s.queueStorage.Receive(ctx, s.config.QueueName+":"+band)
		if err == badgerstore.ErrNoMessage {
			continue
		}
		if err != nil {
			return false, err
		}
		s.handleMessage(ctx, msg, workerID)
		return true, nil
	}
	return false, nil
}

// handleMessage loads the job behind a queue message and executes it
func (s *Service) handleMessage(ctx context.Context, msg *badgerstore.QueueMessage, workerID string) {
	decoded, err := MessageFromJSON(msg.Body)
	if err != nil {
		s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping undecodable queue message")
		s.queueStorage.Delete(ctx, msg.ID)
		return
	}

	job, err := s.jobStorage.GetJobAnyTenant(ctx, decoded.JobID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", decoded.JobID).Msg("Queue message references missing job")
		s.queueStorage.Delete(ctx, msg.ID)
		return
	}
	if job.Status.IsTerminal() {
		// Canceled (or already finished) before pickup
		s.queueStorage.Delete(ctx, msg.ID)
		return
	}

	s.Execute(ctx, job, workerID)
	if err := s.queueStorage.Delete(ctx, msg.ID); err != nil {
		s.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to delete processed queue message")
	}
}

// Execute runs a claimed job through the dispatcher, recording status,
// progress, result and error on the row
func (s *Service) Execute(ctx context.Context, job *models.Job, workerID string) {
	now := time.Now()
	job.Status = models.JobRunning
	job.StartedAt = &now
	job.WorkerID = workerID
	job.Attempts++
	job.Progress = 0
	job.ProgressMessage = "Starting job execution"
	if err := s.jobStorage.UpdateJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to claim job")
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeoutDuration())
	defer cancel()

	report := func(progress int, message string) {
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		current, err := s.jobStorage.GetJobAnyTenant(ctx, job.ID)
		if err != nil || current.Status.IsTerminal() {
			return
		}
		current.Progress = progress
		if message != "" {
			current.ProgressMessage = message
		}
		if err := s.jobStorage.UpdateJob(ctx, current); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to update progress")
		}
	}

	result, err := s.dispatcher.Dispatch(runCtx, job, report)

	// Re-read: cancellation may have landed while the handler ran; a
	// terminal job never transitions again, so the result is discarded
	current, gerr := s.jobStorage.GetJobAnyTenant(ctx, job.ID)
	if gerr != nil {
		s.logger.Error().Err(gerr).Str("job_id", job.ID).Msg("Failed to reload job after execution")
		return
	}
	if current.Status.IsTerminal() {
		s.logger.Info().
			Str("job_id", job.ID).
			Str("status", string(current.Status)).
			Msg("Job reached terminal state during execution - result discarded")
		return
	}

	finished := time.Now()
	current.FinishedAt = &finished
	if err != nil {
		current.Status = models.JobFailed
		current.Error = err.Error()
		current.ProgressMessage = truncateMessage("Failed: "+err.Error(), 200)
		if uerr := s.jobStorage.UpdateJob(ctx, current); uerr != nil {
			s.logger.Error().Err(uerr).Str("job_id", job.ID).Msg("Failed to record job failure")
		}
		s.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("type", string(job.Type)).
			Int("attempts", current.Attempts).
			Msg("Job failed")
		return
	}

	current.Status = models.JobSucceeded
	current.Result = result
	current.Error = ""
	current.Progress = 100
	current.ProgressMessage = "Job completed successfully"
	if uerr := s.jobStorage.UpdateJob(ctx, current); uerr != nil {
		s.logger.Error().Err(uerr).Str("job_id", job.ID).Msg("Failed to record job success")
		return
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Dur("duration", finished.Sub(now)).
		Msg("Job completed")
}

// CleanupOldJobs removes terminal jobs older than the configured TTL
func (s *Service) CleanupOldJobs(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.config.ResultTTLDuration())
	return s.jobStorage.DeleteTerminalJobsOlderThan(ctx, cutoff)
}

// RequeueStaleJobs re-enqueues running jobs whose worker apparently died
func (s *Service) RequeueStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.jobStorage.StaleRunningJobs(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, job := range stale {
		if job.Attempts >= job.MaxAttempts {
			now := time.Now()
			job.Status = models.JobFailed
			job.Error = "worker lease expired with no attempts remaining"
			job.FinishedAt = &now
			if err := s.jobStorage.UpdateJob(ctx, job); err != nil {
				return count, err
			}
			continue
		}
		job.Status = models.JobRetrying
		job.ProgressMessage = "Requeued after stale worker lease"
		if err := s.jobStorage.UpdateJob(ctx, job); err != nil {
			return count, err
		}
		msg := &Message{JobID: job.ID, TenantID: job.TenantID, Type: string(job.Type)}
		body, err := msg.ToJSON()
		if err != nil {
			return count, err
		}
		if _, err := s.queueStorage.Enqueue(ctx, s.queueName(job.Priority), body); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func truncateMessage(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
