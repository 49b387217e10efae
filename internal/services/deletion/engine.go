// Package deletion implements the two-phase document deletion protocol:
// mark the document and plan per-resource tasks, then execute tasks in
// ascending processing order. Tasks at the same order level are independent.
// The protocol is resumable: after a crash, pending tasks re-drive in order.
package deletion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Engine plans and executes document deletions
type Engine struct {
	documentStorage  interfaces.DocumentStorage
	versionStorage   interfaces.VersionStorage
	spanStorage      interfaces.SpanStorage
	embeddingStorage interfaces.EmbeddingStorage
	factStorage      interfaces.FactStorage
	runStorage       interfaces.RunStorage
	qualityStorage   interfaces.QualityStorage
	projectStorage   interfaces.ProjectStorage
	deletionStorage  interfaces.DeletionStorage
	blobStore        interfaces.BlobStore
	vectorIndex      interfaces.VectorIndex
	logger           arbor.ILogger
}

// NewEngine creates a deletion engine
func NewEngine(
	documentStorage interfaces.DocumentStorage,
	versionStorage interfaces.VersionStorage,
	spanStorage interfaces.SpanStorage,
	embeddingStorage interfaces.EmbeddingStorage,
	factStorage interfaces.FactStorage,
	runStorage interfaces.RunStorage,
	qualityStorage interfaces.QualityStorage,
	projectStorage interfaces.ProjectStorage,
	deletionStorage interfaces.DeletionStorage,
	blobStore interfaces.BlobStore,
	vectorIndex interfaces.VectorIndex,
	logger arbor.ILogger,
) *Engine {
	return &Engine{
		documentStorage:  documentStorage,
		versionStorage:   versionStorage,
		spanStorage:      spanStorage,
		embeddingStorage: embeddingStorage,
		factStorage:      factStorage,
		runStorage:       runStorage,
		qualityStorage:   qualityStorage,
		projectStorage:   projectStorage,
		deletionStorage:  deletionStorage,
		blobStore:        blobStore,
		vectorIndex:      vectorIndex,
		logger:           logger,
	}
}

// MarkForDeletion runs phase 1: sets MARKED, records the requester and
// plans one task per dependent resource with its processing order. The
// document disappears from listings and search immediately.
func (e *Engine) MarkForDeletion(ctx context.Context, principal models.Principal, documentID string) ([]*models.DeletionTask, error) {
	doc, err := e.documentStorage.GetDocument(ctx, principal.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.DeletionStatus == models.DeletionDeleted {
		return nil, fmt.Errorf("document already deleted: %w", interfaces.ErrConflict)
	}
	if doc.DeletionStatus == models.DeletionMarked || doc.DeletionStatus == models.DeletionRunning {
		// Idempotent re-mark: return the existing plan
		return e.deletionStorage.ListTasksForDocument(ctx, principal.TenantID, documentID)
	}

	now := time.Now()
	doc.DeletionStatus = models.DeletionMarked
	doc.DeletionRequestedAt = &now
	doc.DeletionRequestedBy = principal.ActorID
	doc.DeletedAt = &now
	if err := e.documentStorage.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}

	tasks, err := e.planTasks(ctx, doc)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if err := e.deletionStorage.SaveTask(ctx, task); err != nil {
			return nil, err
		}
	}

	e.logger.Info().
		Str("document_id", doc.ID).
		Int("tasks", len(tasks)).
		Str("requested_by", principal.ActorID).
		Msg("Document marked for deletion")
	return tasks, nil
}

// planTasks enumerates dependent resources into ordered tasks
func (e *Engine) planTasks(ctx context.Context, doc *models.Document) ([]*models.DeletionTask, error) {
	var tasks []*models.DeletionTask
	newTask := func(taskType models.DeletionTaskType, versionID, resourceID string, count int) {
		tasks = append(tasks, &models.DeletionTask{
			ID:              common.NewID(common.PrefixDeletion),
			TenantID:        doc.TenantID,
			DocumentID:      doc.ID,
			VersionID:       versionID,
			TaskType:        taskType,
			ResourceID:      resourceID,
			ResourceCount:   count,
			ProcessingOrder: models.DeletionOrder[taskType],
			Status:          models.TaskPending,
		})
	}

	versions, err := e.versionStorage.ListVersions(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return nil, err
	}

	for _, v := range versions {
		newTask(models.TaskStorageFile, v.ID, v.StorageURI, 1)

		chunkCount, err := e.embeddingStorage.CountChunksForVersion(ctx, doc.TenantID, v.ID)
		if err != nil {
			return nil, err
		}
		newTask(models.TaskEmbeddingChunks, v.ID, v.ID, chunkCount)

		spanCount, err := e.spanStorage.CountSpansForVersion(ctx, doc.TenantID, v.ID)
		if err != nil {
			return nil, err
		}
		newTask(models.TaskSpans, v.ID, v.ID, spanCount)

		newTask(models.TaskFactsClaims, v.ID, v.ID, 0)
		newTask(models.TaskFactsMetrics, v.ID, v.ID, 0)
		newTask(models.TaskFactsConstraints, v.ID, v.ID, 0)
		newTask(models.TaskFactsRisks, v.ID, v.ID, 0)
		newTask(models.TaskQualityConflicts, v.ID, v.ID, 0)
		newTask(models.TaskQualityQuestions, v.ID, v.ID, 0)
		newTask(models.TaskExtractionRuns, v.ID, v.ID, 0)
	}

	newTask(models.TaskProjectDocuments, "", doc.ID, 0)
	newTask(models.TaskDocumentVersions, "", doc.ID, len(versions))
	newTask(models.TaskDocumentRecord, "", doc.ID, 1)

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ProcessingOrder < tasks[j].ProcessingOrder
	})
	return tasks, nil
}

// ExecutePending runs phase 2: consume the document's tasks in ascending
// order. A failed task retries up to the per-task cap; exhaustion moves the
// document to DELETION_FAILED and stops, retaining all partial state.
func (e *Engine) ExecutePending(ctx context.Context, tenantID, documentID string) error {
	doc, err := e.documentStorage.GetDocument(ctx, tenantID, documentID)
	if err != nil {
		return err
	}
	if doc.DeletionStatus == models.DeletionDeleted {
		return nil
	}

	doc.DeletionStatus = models.DeletionRunning
	if err := e.documentStorage.UpdateDocument(ctx, doc); err != nil {
		return err
	}

	tasks, err := e.deletionStorage.ListTasksForDocument(ctx, tenantID, documentID)
	if err != nil {
		return err
	}

	// Walk levels in order; all tasks at a level must reach a non-failed
	// terminal state before the next level starts
	byLevel := map[int][]*models.DeletionTask{}
	var levels []int
	for _, task := range tasks {
		if _, ok := byLevel[task.ProcessingOrder]; !ok {
			levels = append(levels, task.ProcessingOrder)
		}
		byLevel[task.ProcessingOrder] = append(byLevel[task.ProcessingOrder], task)
	}
	sort.Ints(levels)

	for _, level := range levels {
		for _, task := range byLevel[level] {
			if task.Status == models.TaskCompleted || task.Status == models.TaskSkipped {
				continue
			}
			if err := e.runTask(ctx, doc, task); err != nil {
				doc.DeletionStatus = models.DeletionFailed
				doc.DeletionError = err.Error()
				if uerr := e.documentStorage.UpdateDocument(ctx, doc); uerr != nil {
					e.logger.Error().Err(uerr).Str("document_id", doc.ID).Msg("Failed to record deletion failure")
				}
				return fmt.Errorf("deletion task %s (%s) failed: %w", task.ID, task.TaskType, err)
			}
		}
	}
	return nil
}

// runTask drives one task through pending → in_progress → terminal with
// bounded retries
func (e *Engine) runTask(ctx context.Context, doc *models.Document, task *models.DeletionTask) error {
	var lastErr error
	for task.RetryCount <= models.MaxDeletionRetries {
		now := time.Now()
		task.Status = models.TaskInProgress
		task.StartedAt = &now
		if err := e.deletionStorage.UpdateTask(ctx, task); err != nil {
			return err
		}

		status, err := e.deleteResource(ctx, doc, task)
		done := time.Now()
		task.CompletedAt = &done

		if err == nil {
			task.Status = status
			task.ErrorMessage = ""
			if task.TaskType == models.TaskDocumentRecord {
				// finalizeDocument cleared the refs on the other rows; this
				// row's own update must not restore its reference
				task.DocumentID = ""
			}
			return e.deletionStorage.UpdateTask(ctx, task)
		}

		lastErr = err
		task.RetryCount++
		task.Status = models.TaskFailed
		task.ErrorMessage = err.Error()
		if uerr := e.deletionStorage.UpdateTask(ctx, task); uerr != nil {
			return uerr
		}
		e.logger.Warn().
			Err(err).
			Str("task_id", task.ID).
			Str("task_type", string(task.TaskType)).
			Int("retry_count", task.RetryCount).
			Msg("Deletion task failed")
	}
	return lastErr
}

// deleteResource removes one resource kind. Returns SKIPPED when the
// resource was already absent.
func (e *Engine) deleteResource(ctx context.Context, doc *models.Document, task *models.DeletionTask) (models.DeletionTaskStatus, error) {
	tenantID := doc.TenantID

	switch task.TaskType {
	case models.TaskStorageFile:
		existed, err := e.blobStore.Delete(ctx, task.ResourceID)
		if err != nil {
			return models.TaskFailed, err
		}
		if !existed {
			return models.TaskSkipped, nil
		}
		return models.TaskCompleted, nil

	case models.TaskEmbeddingChunks:
		chunks, err := e.embeddingStorage.ListChunksForVersion(ctx, tenantID, task.VersionID)
		if err != nil {
			return models.TaskFailed, err
		}
		if e.vectorIndex != nil && e.vectorIndex.Available() && len(chunks) > 0 {
			ids := make([]string, len(chunks))
			for i, c := range chunks {
				ids[i] = c.ID
			}
			if err := e.vectorIndex.Delete(ctx, tenantID, ids); err != nil {
				e.logger.Warn().Err(err).Str("version_id", task.VersionID).Msg("Vector index delete failed")
			}
		}
		count, err := e.embeddingStorage.DeleteChunksForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskSpans:
		count, err := e.spanStorage.DeleteSpansForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskFactsClaims:
		count, err := e.factStorage.DeleteClaimsForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskFactsMetrics:
		count, err := e.factStorage.DeleteMetricsForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskFactsConstraints:
		count, err := e.factStorage.DeleteConstraintsForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskFactsRisks:
		count, err := e.factStorage.DeleteRisksForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskQualityConflicts:
		count, err := e.qualityStorage.DeleteConflictsForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskQualityQuestions:
		count, err := e.qualityStorage.DeleteQuestionsForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskExtractionRuns:
		count, err := e.runStorage.DeleteRunsForVersion(ctx, tenantID, task.VersionID)
		return skippedWhenEmpty(count, err)

	case models.TaskProjectDocuments:
		count, err := e.projectStorage.DeleteAttachmentsForDocument(ctx, tenantID, doc.ID)
		return skippedWhenEmpty(count, err)

	case models.TaskDocumentVersions:
		count, err := e.versionStorage.DeleteVersionsForDocument(ctx, tenantID, doc.ID)
		return skippedWhenEmpty(count, err)

	case models.TaskDocumentRecord:
		return e.finalizeDocument(ctx, doc)

	default:
		return models.TaskFailed, fmt.Errorf("unknown deletion task type: %q", task.TaskType)
	}
}

// finalizeDocument flips the document to DELETED and nulls the document ref
// in the remaining tasks; the rows persist as audit trail
func (e *Engine) finalizeDocument(ctx context.Context, doc *models.Document) (models.DeletionTaskStatus, error) {
	now := time.Now()
	doc.DeletionStatus = models.DeletionDeleted
	doc.DeletionCompletedAt = &now
	doc.DeletionError = ""
	if err := e.documentStorage.UpdateDocument(ctx, doc); err != nil {
		return models.TaskFailed, err
	}

	tasks, err := e.deletionStorage.ListTasksForDocument(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return models.TaskFailed, err
	}
	for _, t := range tasks {
		t.DocumentID = ""
		if err := e.deletionStorage.UpdateTask(ctx, t); err != nil {
			return models.TaskFailed, err
		}
	}

	e.logger.Info().Str("document_id", doc.ID).Msg("Document deletion completed")
	return models.TaskCompleted, nil
}

// Status reports the deletion state and per-task progress
func (e *Engine) Status(ctx context.Context, principal models.Principal, documentID string) (map[string]interface{}, error) {
	doc, err := e.documentStorage.GetDocument(ctx, principal.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	tasks, err := e.deletionStorage.ListTasksForDocument(ctx, principal.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"document_id":     doc.ID,
		"deletion_status": doc.DeletionStatus,
		"deletion_error":  doc.DeletionError,
		"tasks":           tasks,
	}, nil
}

func skippedWhenEmpty(count int, err error) (models.DeletionTaskStatus, error) {
	if err != nil {
		return models.TaskFailed, err
	}
	if count == 0 {
		return models.TaskSkipped, nil
	}
	return models.TaskCompleted, nil
}
