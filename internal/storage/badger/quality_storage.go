package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// QualityStorage implements interfaces.QualityStorage for Badger
type QualityStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewQualityStorage creates a new QualityStorage instance
func NewQualityStorage(db *BadgerDB, logger arbor.ILogger) *QualityStorage {
	return &QualityStorage{db: db, logger: logger}
}

// UpsertConflict inserts the conflict unless one with the same content key
// already exists for the version. Returns whether a new row was created.
func (s *QualityStorage) UpsertConflict(ctx context.Context, conflict *models.Conflict) (bool, error) {
	if conflict.ContentKey == "" {
		return false, fmt.Errorf("conflict content key is required")
	}
	var existing []models.Conflict
	err := s.db.Store().Find(&existing, badgerhold.
		Where("ContentKey").Eq(conflict.ContentKey).Index("ContentKey").
		And("TenantID").Eq(conflict.TenantID).
		And("DocumentVersionID").Eq(conflict.DocumentVersionID))
	if err != nil {
		return false, fmt.Errorf("failed to check existing conflict: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	now := time.Now()
	conflict.CreatedAt = now
	conflict.UpdatedAt = now
	if conflict.Status == "" {
		conflict.Status = models.ConflictOpen
	}
	if err := s.db.Store().Insert(conflict.ID, conflict); err != nil {
		return false, fmt.Errorf("failed to insert conflict: %w", err)
	}
	return true, nil
}

// UpsertQuestion inserts the question unless one with the same content key
// already exists for the version
func (s *QualityStorage) UpsertQuestion(ctx context.Context, question *models.OpenQuestion) (bool, error) {
	if question.ContentKey == "" {
		return false, fmt.Errorf("question content key is required")
	}
	var existing []models.OpenQuestion
	err := s.db.Store().Find(&existing, badgerhold.
		Where("ContentKey").Eq(question.ContentKey).Index("ContentKey").
		And("TenantID").Eq(question.TenantID).
		And("DocumentVersionID").Eq(question.DocumentVersionID))
	if err != nil {
		return false, fmt.Errorf("failed to check existing question: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	now := time.Now()
	question.CreatedAt = now
	question.UpdatedAt = now
	if question.Status == "" {
		question.Status = models.QuestionOpen
	}
	if err := s.db.Store().Insert(question.ID, question); err != nil {
		return false, fmt.Errorf("failed to insert question: %w", err)
	}
	return true, nil
}

func (s *QualityStorage) ListConflictsForVersion(ctx context.Context, tenantID, versionID string) ([]*models.Conflict, error) {
	var conflicts []models.Conflict
	err := s.db.Store().Find(&conflicts, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	result := make([]*models.Conflict, len(conflicts))
	for i := range conflicts {
		result[i] = &conflicts[i]
	}
	return result, nil
}

func (s *QualityStorage) ListQuestionsForVersion(ctx context.Context, tenantID, versionID string) ([]*models.OpenQuestion, error) {
	var questions []models.OpenQuestion
	err := s.db.Store().Find(&questions, badgerhold.
		Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	result := make([]*models.OpenQuestion, len(questions))
	for i := range questions {
		result[i] = &questions[i]
	}
	return result, nil
}

func (s *QualityStorage) DeleteConflictsForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	query := badgerhold.Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID)
	count, err := s.db.Store().Count(&models.Conflict{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.Conflict{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete conflicts: %w", err)
	}
	return int(count), nil
}

func (s *QualityStorage) DeleteQuestionsForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	query := badgerhold.Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID)
	count, err := s.db.Store().Count(&models.OpenQuestion{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.OpenQuestion{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete questions: %w", err)
	}
	return int(count), nil
}
