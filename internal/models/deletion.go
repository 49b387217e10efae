package models

import (
	"time"
)

// DeletionTaskStatus tracks one resource deletion inside a document delete
type DeletionTaskStatus string

const (
	TaskPending    DeletionTaskStatus = "pending"
	TaskInProgress DeletionTaskStatus = "in_progress"
	TaskCompleted  DeletionTaskStatus = "completed"
	TaskFailed     DeletionTaskStatus = "failed"
	TaskSkipped    DeletionTaskStatus = "skipped" // resource already absent; not a failure
)

// IsTerminal reports whether the task has finished
func (s DeletionTaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskSkipped
}

// DeletionTaskType names the resource kind a task deletes
type DeletionTaskType string

const (
	TaskStorageFile      DeletionTaskType = "storage_file"
	TaskEmbeddingChunks  DeletionTaskType = "embedding_chunks"
	TaskSpans            DeletionTaskType = "spans"
	TaskFactsClaims      DeletionTaskType = "facts_claims"
	TaskFactsMetrics     DeletionTaskType = "facts_metrics"
	TaskFactsConstraints DeletionTaskType = "facts_constraints"
	TaskFactsRisks       DeletionTaskType = "facts_risks"
	TaskQualityConflicts DeletionTaskType = "quality_conflicts"
	TaskQualityQuestions DeletionTaskType = "quality_questions"
	TaskExtractionRuns   DeletionTaskType = "extraction_runs"
	TaskProjectDocuments DeletionTaskType = "project_documents"
	TaskDocumentVersions DeletionTaskType = "document_versions"
	TaskDocumentRecord   DeletionTaskType = "document_record" // final step
)

// DeletionOrder is the declarative dependency graph between resource kinds,
// pre-computed to topological levels. Lower level deletes first; tasks at the
// same level are independent and may run concurrently.
var DeletionOrder = map[DeletionTaskType]int{
	TaskStorageFile:      1,
	TaskEmbeddingChunks:  2,
	TaskSpans:            3,
	TaskFactsClaims:      4,
	TaskFactsMetrics:     4,
	TaskFactsConstraints: 4,
	TaskFactsRisks:       4,
	TaskQualityConflicts: 5,
	TaskQualityQuestions: 5,
	TaskExtractionRuns:   6,
	TaskProjectDocuments: 7,
	TaskDocumentVersions: 8,
	TaskDocumentRecord:   9,
}

// MaxDeletionRetries caps per-task retry attempts
const MaxDeletionRetries = 3

// DeletionTask is one resource deletion within a larger document delete.
// Tasks persist after completion as an audit trail; the final document_record
// task nulls DocumentID on the remaining rows.
type DeletionTask struct {
	ID       string `json:"id" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	// Nullable after the final step clears it
	DocumentID string `json:"document_id,omitempty" badgerhold:"index"`
	VersionID  string `json:"version_id,omitempty"`

	TaskType      DeletionTaskType `json:"task_type"`
	ResourceID    string           `json:"resource_id"` // entity ID or storage URI
	ResourceCount int              `json:"resource_count"`

	ProcessingOrder int `json:"processing_order"`

	Status       DeletionTaskStatus `json:"status" badgerhold:"index"`
	ErrorMessage string             `json:"error_message,omitempty"`
	RetryCount   int                `json:"retry_count"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
