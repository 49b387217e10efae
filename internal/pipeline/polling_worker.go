package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// PollingWorker is the broker-less worker mode: it repeatedly claims
// document versions with extraction_status PENDING and runs the same
// pipeline core the queue workers use. Only the claiming mechanism differs.
type PollingWorker struct {
	orchestrator   *Orchestrator
	versionStorage interfaces.VersionStorage
	workerID       string
	pollInterval   time.Duration
	logger         arbor.ILogger

	shutdown atomic.Bool
}

// NewPollingWorker creates a polling worker
func NewPollingWorker(orchestrator *Orchestrator, versionStorage interfaces.VersionStorage, pollInterval time.Duration, logger arbor.ILogger) *PollingWorker {
	hostname, _ := os.Hostname()
	return &PollingWorker{
		orchestrator:   orchestrator,
		versionStorage: versionStorage,
		workerID:       fmt.Sprintf("%s:poll-%d", hostname, os.Getpid()),
		pollInterval:   pollInterval,
		logger:         logger,
	}
}

// Run polls until the context ends or a shutdown signal arrives. In-flight
// work finishes before exit.
func (w *PollingWorker) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		w.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received - finishing in-flight work")
		w.shutdown.Store(true)
	}()

	w.logger.Info().
		Str("worker_id", w.workerID).
		Dur("poll_interval", w.pollInterval).
		Msg("Polling worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if w.shutdown.Load() {
			w.logger.Info().Msg("Polling worker stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and processes pending versions until none remain or a
// shutdown is requested
func (w *PollingWorker) drain(ctx context.Context) {
	for !w.shutdown.Load() {
		version, err := w.versionStorage.ClaimPendingVersion(ctx, w.workerID)
		if err != nil {
			if err != interfaces.ErrNotFound {
				w.logger.Warn().Err(err).Msg("Failed to claim pending version")
			}
			return
		}

		w.logger.Info().
			Str("version_id", version.ID).
			Str("tenant_id", version.TenantID).
			Msg("Processing claimed version")

		if _, err := w.orchestrator.ProcessVersion(ctx, version.TenantID, version.ID, Options{}); err != nil {
			// ProcessVersion already recorded FAILED on the version
			w.logger.Error().
				Err(err).
				Str("version_id", version.ID).
				Msg("Version processing failed")
		}
	}
}

// QueueDepths reports pending/processing/completed/failed version counts
// for readiness and status surfaces
func (w *PollingWorker) QueueDepths(ctx context.Context) (map[models.ExtractionStatus]int, error) {
	return w.versionStorage.CountVersionsByExtractionStatus(ctx)
}
