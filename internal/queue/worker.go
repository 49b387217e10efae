package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// WorkerPool runs the configured number of queue workers. Each worker polls
// the high queue before normal before low on every iteration, so higher
// priority work preempts lower whenever both are waiting.
type WorkerPool struct {
	service     *Service
	concurrency int
	poll        time.Duration
	logger      arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
}

// NewWorkerPool creates a worker pool over the job service
func NewWorkerPool(service *Service, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		service:     service,
		concurrency: service.config.Concurrency,
		poll:        service.config.PollIntervalDuration(),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers and the maintenance cron
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Dur("poll_interval", wp.poll).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}

	// Periodic maintenance: requeue stale leases, purge old terminal jobs
	wp.cron = cron.New()
	if _, err := wp.cron.AddFunc("@every 5m", func() {
		if count, err := wp.service.RequeueStaleJobs(wp.ctx, 2*wp.service.config.JobTimeoutDuration()); err != nil {
			wp.logger.Warn().Err(err).Msg("Stale job requeue failed")
		} else if count > 0 {
			wp.logger.Info().Int("count", count).Msg("Requeued stale jobs")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule stale-job requeue: %w", err)
	}
	if _, err := wp.cron.AddFunc("@hourly", func() {
		if count, err := wp.service.CleanupOldJobs(wp.ctx); err != nil {
			wp.logger.Warn().Err(err).Msg("Old job cleanup failed")
		} else if count > 0 {
			wp.logger.Info().Int("count", count).Msg("Cleaned up old jobs")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule job cleanup: %w", err)
	}
	wp.cron.Start()
	return nil
}

// Stop stops the cron and cancels the workers' context, which a job in
// progress also receives; it then waits a fixed 500ms and returns without
// waiting for the workers to exit
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("Stopping worker pool")
	if wp.cron != nil {
		wp.cron.Stop()
	}
	wp.cancel()
	time.Sleep(500 * time.Millisecond)
	wp.logger.Info().Msg("Worker pool stopped")
}

// worker is the polling loop for one worker goroutine
func (wp *WorkerPool) worker(workerID int) {
	// Stagger starts so workers spread across the poll interval
	stagger := (wp.poll / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if stagger > 0 {
		time.Sleep(stagger)
	}

	name := fmt.Sprintf("worker-%d", workerID)
	wp.logger.Debug().Str("worker", name).Msg("Worker started")

	ticker := time.NewTicker(wp.poll)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Str("worker", name).Msg("Worker stopped")
			return
		case <-ticker.C:
			// Drain everything available before sleeping again
			for {
				processed, err := wp.service.ProcessNext(wp.ctx, name)
				if err != nil {
					wp.logger.Warn().Err(err).Str("worker", name).Msg("Error processing queue message")
					break
				}
				if !processed {
					break
				}
				select {
				case <-wp.ctx.Done():
					return
				default:
				}
			}
		}
	}
}
