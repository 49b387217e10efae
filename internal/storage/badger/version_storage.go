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

// VersionStorage implements interfaces.VersionStorage for Badger
type VersionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Guards read-modify-write sections: version number assignment and the
	// polling worker's pending-version claim.
	mu sync.Mutex
}

// NewVersionStorage creates a new VersionStorage instance
func NewVersionStorage(db *BadgerDB, logger arbor.ILogger) *VersionStorage {
	return &VersionStorage{db: db, logger: logger}
}

func (s *VersionStorage) SaveVersion(ctx context.Context, version *models.DocumentVersion) error {
	if version.ID == "" {
		return fmt.Errorf("version ID is required")
	}
	if version.TenantID == "" {
		return fmt.Errorf("version tenant ID is required")
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}
	if version.ProcessingStatus == "" {
		version.ProcessingStatus = models.ProcessingPending
	}
	if version.ExtractionStatus == "" {
		version.ExtractionStatus = models.ExtractionPending
	}

	if err := s.db.Store().Upsert(version.ID, version); err != nil {
		return fmt.Errorf("failed to save version: %w", err)
	}
	return nil
}

func (s *VersionStorage) GetVersion(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	if err := s.db.Store().Get(id, &version); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	if version.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return &version, nil
}

func (s *VersionStorage) UpdateVersion(ctx context.Context, version *models.DocumentVersion) error {
	if _, err := s.GetVersion(ctx, version.TenantID, version.ID); err != nil {
		return err
	}
	if err := s.db.Store().Update(version.ID, version); err != nil {
		return fmt.Errorf("failed to update version: %w", err)
	}
	return nil
}

func (s *VersionStorage) DeleteVersionsForDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	versions, err := s.ListVersions(ctx, tenantID, documentID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, v := range versions {
		if err := s.db.Store().Delete(v.ID, &models.DocumentVersion{}); err != nil && err != badgerhold.ErrNotFound {
			return deleted, fmt.Errorf("failed to delete version %s: %w", v.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *VersionStorage) ListVersions(ctx context.Context, tenantID, documentID string) ([]*models.DocumentVersion, error) {
	var versions []models.DocumentVersion
	err := s.db.Store().Find(&versions, badgerhold.
		Where("DocumentID").Eq(documentID).Index("DocumentID").
		And("TenantID").Eq(tenantID).
		SortBy("VersionNumber").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	result := make([]*models.DocumentVersion, len(versions))
	for i := range versions {
		result[i] = &versions[i]
	}
	return result, nil
}

func (s *VersionStorage) LatestVersion(ctx context.Context, tenantID, documentID string) (*models.DocumentVersion, error) {
	versions, err := s.ListVersions(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return versions[0], nil
}

// NextVersionNumber assigns max(version_number)+1 under the store lock so
// concurrent version uploads for the same document cannot collide
func (s *VersionStorage) NextVersionNumber(ctx context.Context, tenantID, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.ListVersions(ctx, tenantID, documentID)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, v := range versions {
		if v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max + 1, nil
}

// ClaimPendingVersion atomically claims one PENDING version for the polling
// worker by transitioning extraction_status to PROCESSING. Returns
// ErrNotFound when nothing is pending.
func (s *VersionStorage) ClaimPendingVersion(ctx context.Context, workerID string) (*models.DocumentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var versions []models.DocumentVersion
	err := s.db.Store().Find(&versions, badgerhold.
		Where("ExtractionStatus").Eq(models.ExtractionPending).Index("ExtractionStatus").
		SortBy("CreatedAt").
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find pending version: %w", err)
	}
	if len(versions) == 0 {
		return nil, interfaces.ErrNotFound
	}

	version := versions[0]
	version.ExtractionStatus = models.ExtractionProcessing
	if version.Metadata == nil {
		version.Metadata = map[string]interface{}{}
	}
	version.Metadata["claimed_by"] = workerID

	if err := s.db.Store().Update(version.ID, &version); err != nil {
		return nil, fmt.Errorf("failed to claim version: %w", err)
	}

	s.logger.Debug().
		Str("version_id", version.ID).
		Str("worker_id", workerID).
		Msg("Claimed pending version")
	return &version, nil
}

func (s *VersionStorage) CountVersionsByExtractionStatus(ctx context.Context) (map[models.ExtractionStatus]int, error) {
	counts := map[models.ExtractionStatus]int{}
	for _, status := range []models.ExtractionStatus{
		models.ExtractionPending, models.ExtractionProcessing,
		models.ExtractionCompleted, models.ExtractionFailed,
	} {
		count, err := s.db.Store().Count(&models.DocumentVersion{},
			badgerhold.Where("ExtractionStatus").Eq(status).Index("ExtractionStatus"))
		if err != nil {
			return nil, fmt.Errorf("failed to count versions: %w", err)
		}
		counts[status] = int(count)
	}
	return counts, nil
}
