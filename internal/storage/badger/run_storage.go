package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage implements interfaces.RunStorage for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Guards the active-run uniqueness check in CreateRun
	mu sync.Mutex
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) *RunStorage {
	return &RunStorage{db: db, logger: logger}
}

// CreateRun inserts a run. For fact runs (profile set), at most one
// queued|running run may exist per (version, profile, process_context,
// level); a duplicate attempt fails deterministically with ErrConflict.
func (s *RunStorage) CreateRun(ctx context.Context, run *models.ExtractionRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if run.TenantID == "" {
		return fmt.Errorf("run tenant ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if run.Status.IsActive() && run.ProfileCode != "" {
		existing, err := s.activeRunLocked(run.TenantID, run.DocumentVersionID, run.ProfileCode, run.ProcessContext, run.Level)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("active run %s exists for version %s profile %s context %s level %d: %w",
				existing.ID, run.DocumentVersionID, run.ProfileCode, run.ProcessContext, run.Level, interfaces.ErrConflict)
		}
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(run.ID, run); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, tenantID, id string) (*models.ExtractionRun, error) {
	var run models.ExtractionRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return &run, nil
}

func (s *RunStorage) UpdateRun(ctx context.Context, run *models.ExtractionRun) error {
	if _, err := s.GetRun(ctx, run.TenantID, run.ID); err != nil {
		return err
	}
	if err := s.db.Store().Update(run.ID, run); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

func (s *RunStorage) ListRunsForVersion(ctx context.Context, tenantID, versionID string) ([]*models.ExtractionRun, error) {
	var runs []models.ExtractionRun
	err := s.db.Store().Find(&runs, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID).
		SortBy("CreatedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	result := make([]*models.ExtractionRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) ActiveRun(ctx context.Context, tenantID, versionID, profile, processContext string, level int) (*models.ExtractionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.activeRunLocked(tenantID, versionID, profile, processContext, level)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, interfaces.ErrNotFound
	}
	return run, nil
}

func (s *RunStorage) activeRunLocked(tenantID, versionID, profile, processContext string, level int) (*models.ExtractionRun, error) {
	var runs []models.ExtractionRun
	err := s.db.Store().Find(&runs, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID).
		And("ProfileCode").Eq(profile).
		And("ProcessContext").Eq(processContext).
		And("Level").Eq(level))
	if err != nil {
		return nil, fmt.Errorf("failed to query active runs: %w", err)
	}
	for i := range runs {
		if runs[i].Status.IsActive() {
			return &runs[i], nil
		}
	}
	return nil, nil
}

func (s *RunStorage) LatestCompletedFactRun(ctx context.Context, tenantID, versionID, profile, processContext string, level int) (*models.ExtractionRun, error) {
	var runs []models.ExtractionRun
	err := s.db.Store().Find(&runs, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID).
		And("ProfileCode").Eq(profile).
		And("ProcessContext").Eq(processContext).
		And("Level").Eq(level).
		And("Status").Eq(models.RunCompleted).
		SortBy("CreatedAt").Reverse().
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to query completed runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &runs[0], nil
}

func (s *RunStorage) DeleteRunsForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	query := badgerhold.Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID)
	count, err := s.db.Store().Count(&models.ExtractionRun{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.ExtractionRun{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return int(count), nil
}
