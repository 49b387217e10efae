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

// SpanStorage implements interfaces.SpanStorage for Badger
type SpanStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Guards the check-then-insert in UpsertSpan
	mu sync.Mutex
}

// NewSpanStorage creates a new SpanStorage instance
func NewSpanStorage(db *BadgerDB, logger arbor.ILogger) *SpanStorage {
	return &SpanStorage{db: db, logger: logger}
}

// UpsertSpan inserts the span unless (version, span_hash) already exists, in
// which case the existing span is returned untouched. This is what makes
// span regeneration idempotent: outbound references survive reprocessing.
func (s *SpanStorage) UpsertSpan(ctx context.Context, span *models.Span) (*models.Span, bool, error) {
	if span.SpanHash == "" {
		return nil, false, fmt.Errorf("span hash is required")
	}
	if span.TenantID == "" {
		return nil, false, fmt.Errorf("span tenant ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []models.Span
	err := s.db.Store().Find(&existing, badgerhold.
		Where("DocumentVersionID").Eq(span.DocumentVersionID).Index("DocumentVersionID").
		And("SpanHash").Eq(span.SpanHash))
	if err != nil {
		return nil, false, fmt.Errorf("failed to check existing span: %w", err)
	}
	if len(existing) > 0 {
		return &existing[0], false, nil
	}

	if span.CreatedAt.IsZero() {
		span.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(span.ID, span); err != nil {
		return nil, false, fmt.Errorf("failed to insert span: %w", err)
	}
	return span, true, nil
}

func (s *SpanStorage) GetSpan(ctx context.Context, tenantID, id string) (*models.Span, error) {
	var span models.Span
	if err := s.db.Store().Get(id, &span); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get span: %w", err)
	}
	if span.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return &span, nil
}

func (s *SpanStorage) UpdateSpan(ctx context.Context, span *models.Span) error {
	if _, err := s.GetSpan(ctx, span.TenantID, span.ID); err != nil {
		return err
	}
	if err := s.db.Store().Update(span.ID, span); err != nil {
		return fmt.Errorf("failed to update span: %w", err)
	}
	return nil
}

func (s *SpanStorage) DeleteSpan(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetSpan(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.db.Store().Delete(id, &models.Span{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete span: %w", err)
	}
	return nil
}

func (s *SpanStorage) ListSpansForVersion(ctx context.Context, tenantID, versionID string) ([]*models.Span, error) {
	var spans []models.Span
	err := s.db.Store().Find(&spans, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID).
		SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list spans: %w", err)
	}
	result := make([]*models.Span, len(spans))
	for i := range spans {
		result[i] = &spans[i]
	}
	return result, nil
}

func (s *SpanStorage) DeleteSpansForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	spans, err := s.ListSpansForVersion(ctx, tenantID, versionID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, span := range spans {
		if err := s.db.Store().Delete(span.ID, &models.Span{}); err != nil && err != badgerhold.ErrNotFound {
			return deleted, fmt.Errorf("failed to delete span %s: %w", span.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *SpanStorage) CountSpansForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	count, err := s.db.Store().Count(&models.Span{}, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return 0, fmt.Errorf("failed to count spans: %w", err)
	}
	return int(count), nil
}
