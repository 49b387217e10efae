package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DeletionStorage implements interfaces.DeletionStorage for Badger
type DeletionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDeletionStorage creates a new DeletionStorage instance
func NewDeletionStorage(db *BadgerDB, logger arbor.ILogger) *DeletionStorage {
	return &DeletionStorage{db: db, logger: logger}
}

func (s *DeletionStorage) SaveTask(ctx context.Context, task *models.DeletionTask) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.TenantID == "" {
		return fmt.Errorf("task tenant ID is required")
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to save deletion task: %w", err)
	}
	return nil
}

func (s *DeletionStorage) UpdateTask(ctx context.Context, task *models.DeletionTask) error {
	if err := s.db.Store().Update(task.ID, task); err != nil {
		return fmt.Errorf("failed to update deletion task: %w", err)
	}
	return nil
}

func (s *DeletionStorage) ListTasksForDocument(ctx context.Context, tenantID, documentID string) ([]*models.DeletionTask, error) {
	var tasks []models.DeletionTask
	err := s.db.Store().Find(&tasks, badgerhold.
		Where("DocumentID").Eq(documentID).Index("DocumentID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list deletion tasks: %w", err)
	}
	result := make([]*models.DeletionTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ProcessingOrder < result[j].ProcessingOrder
	})
	return result, nil
}

func (s *DeletionStorage) PendingTasksForDocument(ctx context.Context, tenantID, documentID string) ([]*models.DeletionTask, error) {
	tasks, err := s.ListTasksForDocument(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	pending := make([]*models.DeletionTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == models.TaskPending || t.Status == models.TaskFailed {
			pending = append(pending, t)
		}
	}
	return pending, nil
}
