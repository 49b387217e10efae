package models

import (
	"time"
)

// JobStatus is the lifecycle state of a queued job
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
	JobRetrying  JobStatus = "retrying"
)

// IsTerminal reports whether the status is final. A job in a terminal state
// never transitions to a different terminal state.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCanceled
}

// JobType names a background job handled by the worker dispatcher
type JobType string

const (
	JobTypeDocumentIngest      JobType = "document_ingest"
	JobTypeDocumentExtract     JobType = "document_extract"
	JobTypeDocumentEmbed       JobType = "document_embed"
	JobTypeDocumentProcessFull JobType = "document_process_full"
	JobTypeProcessVersion      JobType = "process_document_version"
	JobTypeBulkFolderIngest    JobType = "bulk_folder_ingest"
	JobTypeBulkURLIngest       JobType = "bulk_url_ingest"
	JobTypeBatchExtract        JobType = "batch_extract"
	JobTypeBatchEmbed          JobType = "batch_embed"
	JobTypeFactExtract         JobType = "fact_extract"
	JobTypeMultilevelExtract   JobType = "multilevel_extract"
	JobTypeUpgradeLevel        JobType = "upgrade_extraction_level"
	JobTypeQualityCheck        JobType = "quality_check"
	JobTypeDocumentDelete      JobType = "document_delete"
	JobTypeCleanup             JobType = "cleanup"
)

// Queue names by priority band
const (
	QueueHigh   = "high"
	QueueNormal = "normal"
	QueueLow    = "low"
)

// QueueForPriority selects the queue for a priority integer: >= 10 is high,
// < 0 is low, anything else normal.
func QueueForPriority(priority int) string {
	switch {
	case priority >= 10:
		return QueueHigh
	case priority < 0:
		return QueueLow
	default:
		return QueueNormal
	}
}

// Job is a persistent record of one piece of queued work. The queue message
// carries only the job ID; this row is the source of truth for status,
// progress and results.
type Job struct {
	ID       string `json:"id" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	Type   JobType   `json:"type" badgerhold:"index"`
	Status JobStatus `json:"status" badgerhold:"index"`

	Priority int `json:"priority"`

	Payload map[string]interface{} `json:"payload"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`

	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	Progress        int    `json:"progress"` // 0-100
	ProgressMessage string `json:"progress_message,omitempty"`

	WorkerID   string `json:"worker_id,omitempty"`
	QueueJobID string `json:"queue_job_id,omitempty" badgerhold:"index"`

	// Cooperative cancellation flag checked by handlers at suspension points
	CancelRequested bool `json:"cancel_requested,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// CanRetry reports whether a failed job has attempts left
func (j *Job) CanRetry() bool {
	return j.Status == JobFailed && j.Attempts < j.MaxAttempts
}

// DurationSeconds returns the run duration, or 0 when not finished
func (j *Job) DurationSeconds() float64 {
	if j.StartedAt != nil && j.FinishedAt != nil {
		return j.FinishedAt.Sub(*j.StartedAt).Seconds()
	}
	return 0
}
