package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/indicium/internal/models"
)

// Sentinel errors shared by every storage implementation
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ListOptions represents common filtering and pagination options
type ListOptions struct {
	Limit  int
	Offset int
}

// DocumentListOptions filters document listings
type DocumentListOptions struct {
	Limit          int
	Offset         int
	DocumentType   string
	SourceType     string
	IncludeDeleted bool // include non-ACTIVE deletion states (admin/deletion engine only)
}

// DocumentFilter is the metadata filter used by two-stage search stage 1
type DocumentFilter struct {
	Sectors       []string
	Topics        []string
	DocumentTypes []string
	Geographies   []string
	Companies     []string
	DocumentIDs   []string
}

// DocumentStorage persists documents. Every method scopes to tenantID.
type DocumentStorage interface {
	SaveDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error)
	GetDocumentByHash(ctx context.Context, tenantID, fileHash string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, tenantID, id string) error
	ListDocuments(ctx context.Context, tenantID string, opts *DocumentListOptions) ([]*models.Document, error)
	FilterDocuments(ctx context.Context, tenantID string, filter *DocumentFilter) ([]*models.Document, error)
	CountDocuments(ctx context.Context, tenantID string) (int, error)
}

// VersionStorage persists document versions
type VersionStorage interface {
	SaveVersion(ctx context.Context, version *models.DocumentVersion) error
	GetVersion(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error)
	UpdateVersion(ctx context.Context, version *models.DocumentVersion) error
	DeleteVersionsForDocument(ctx context.Context, tenantID, documentID string) (int, error)
	ListVersions(ctx context.Context, tenantID, documentID string) ([]*models.DocumentVersion, error)
	LatestVersion(ctx context.Context, tenantID, documentID string) (*models.DocumentVersion, error)
	// NextVersionNumber assigns max(version_number)+1 for the document
	NextVersionNumber(ctx context.Context, tenantID, documentID string) (int, error)
	// ClaimPendingVersion atomically claims one PENDING version for the
	// polling worker by moving extraction_status to PROCESSING.
	ClaimPendingVersion(ctx context.Context, workerID string) (*models.DocumentVersion, error)
	CountVersionsByExtractionStatus(ctx context.Context) (map[models.ExtractionStatus]int, error)
}

// SpanStorage persists spans with (version_id, span_hash) upsert semantics
type SpanStorage interface {
	// UpsertSpan reuses the existing span when (version, span_hash) exists.
	// Returns the stored span and whether it was newly created.
	UpsertSpan(ctx context.Context, span *models.Span) (*models.Span, bool, error)
	GetSpan(ctx context.Context, tenantID, id string) (*models.Span, error)
	UpdateSpan(ctx context.Context, span *models.Span) error
	DeleteSpan(ctx context.Context, tenantID, id string) error
	ListSpansForVersion(ctx context.Context, tenantID, versionID string) ([]*models.Span, error)
	DeleteSpansForVersion(ctx context.Context, tenantID, versionID string) (int, error)
	CountSpansForVersion(ctx context.Context, tenantID, versionID string) (int, error)
}

// EmbeddingStorage persists embedding chunks
type EmbeddingStorage interface {
	SaveChunk(ctx context.Context, chunk *models.EmbeddingChunk) error
	GetChunkBySpan(ctx context.Context, tenantID, spanID string) (*models.EmbeddingChunk, error)
	ListChunks(ctx context.Context, tenantID string) ([]*models.EmbeddingChunk, error)
	ListChunksForVersion(ctx context.Context, tenantID, versionID string) ([]*models.EmbeddingChunk, error)
	ListChunksForVersions(ctx context.Context, tenantID string, versionIDs []string) ([]*models.EmbeddingChunk, error)
	DeleteChunksForVersion(ctx context.Context, tenantID, versionID string) (int, error)
	CountChunksForVersion(ctx context.Context, tenantID, versionID string) (int, error)
}

// FactStorage persists extracted facts
type FactStorage interface {
	SaveClaim(ctx context.Context, claim *models.Claim) error
	SaveMetric(ctx context.Context, metric *models.Metric) error
	SaveConstraint(ctx context.Context, constraint *models.Constraint) error
	SaveRisk(ctx context.Context, risk *models.Risk) error

	GetClaim(ctx context.Context, tenantID, id string) (*models.Claim, error)
	GetMetric(ctx context.Context, tenantID, id string) (*models.Metric, error)

	UpdateClaim(ctx context.Context, claim *models.Claim) error
	UpdateMetric(ctx context.Context, metric *models.Metric) error
	DeleteClaim(ctx context.Context, tenantID, id string) error
	DeleteMetric(ctx context.Context, tenantID, id string) error

	ListClaimsForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Claim, error)
	ListMetricsForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Metric, error)
	ListConstraintsForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Constraint, error)
	ListRisksForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Risk, error)

	DeleteFactsForRun(ctx context.Context, tenantID, runID string) (int, error)
	DeleteClaimsForVersion(ctx context.Context, tenantID, versionID string) (int, error)
	DeleteMetricsForVersion(ctx context.Context, tenantID, versionID string) (int, error)
	DeleteConstraintsForVersion(ctx context.Context, tenantID, versionID string) (int, error)
	DeleteRisksForVersion(ctx context.Context, tenantID, versionID string) (int, error)
}

// RunStorage persists extraction runs and enforces the at-most-one-active
// invariant per (version, profile, process_context, level)
type RunStorage interface {
	// CreateRun fails with ErrConflict when an active (queued|running) run
	// already exists for the same (version, profile, process_context, level).
	CreateRun(ctx context.Context, run *models.ExtractionRun) error
	GetRun(ctx context.Context, tenantID, id string) (*models.ExtractionRun, error)
	UpdateRun(ctx context.Context, run *models.ExtractionRun) error
	ListRunsForVersion(ctx context.Context, tenantID, versionID string) ([]*models.ExtractionRun, error)
	ActiveRun(ctx context.Context, tenantID, versionID, profile, processContext string, level int) (*models.ExtractionRun, error)
	LatestCompletedFactRun(ctx context.Context, tenantID, versionID, profile, processContext string, level int) (*models.ExtractionRun, error)
	DeleteRunsForVersion(ctx context.Context, tenantID, versionID string) (int, error)
}

// QualityStorage persists conflicts and open questions with content-key dedup
type QualityStorage interface {
	UpsertConflict(ctx context.Context, conflict *models.Conflict) (bool, error)
	UpsertQuestion(ctx context.Context, question *models.OpenQuestion) (bool, error)
	ListConflictsForVersion(ctx context.Context, tenantID, versionID string) ([]*models.Conflict, error)
	ListQuestionsForVersion(ctx context.Context, tenantID, versionID string) ([]*models.OpenQuestion, error)
	DeleteConflictsForVersion(ctx context.Context, tenantID, versionID string) (int, error)
	DeleteQuestionsForVersion(ctx context.Context, tenantID, versionID string) (int, error)
}

// ProjectStorage persists projects, attachments, folders and evidence packs
type ProjectStorage interface {
	SaveProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, tenantID, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	ListProjects(ctx context.Context, tenantID string, opts *ListOptions) ([]*models.Project, error)

	// AttachDocument fails with ErrConflict on duplicate (project, document)
	AttachDocument(ctx context.Context, attachment *models.ProjectDocument) error
	DetachDocument(ctx context.Context, tenantID, projectID, documentID string) error
	UpdateAttachment(ctx context.Context, attachment *models.ProjectDocument) error
	GetAttachment(ctx context.Context, tenantID, projectID, documentID string) (*models.ProjectDocument, error)
	ListAttachments(ctx context.Context, tenantID, projectID string) ([]*models.ProjectDocument, error)
	ListAttachmentsForDocument(ctx context.Context, tenantID, documentID string) ([]*models.ProjectDocument, error)
	DeleteAttachmentsForDocument(ctx context.Context, tenantID, documentID string) (int, error)

	SaveFolder(ctx context.Context, folder *models.Folder) error
	GetFolder(ctx context.Context, tenantID, id string) (*models.Folder, error)
	UpdateFolder(ctx context.Context, folder *models.Folder) error
	ListFolders(ctx context.Context, tenantID, projectID string) ([]*models.Folder, error)

	SavePack(ctx context.Context, pack *models.EvidencePack) error
	GetPack(ctx context.Context, tenantID, id string) (*models.EvidencePack, error)
	UpdatePack(ctx context.Context, pack *models.EvidencePack) error
	DeletePack(ctx context.Context, tenantID, id string) error
	ListPacks(ctx context.Context, tenantID string, opts *ListOptions) ([]*models.EvidencePack, error)
}

// JobListOptions filters job listings
type JobListOptions struct {
	Status models.JobStatus
	Type   models.JobType
	Limit  int
	Offset int
}

// JobStorage persists job records
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, tenantID, id string) (*models.Job, error)
	// GetJobAnyTenant is used only by the worker claiming queue messages;
	// the message carries the tenant with it.
	GetJobAnyTenant(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, tenantID, id string) error
	ListJobs(ctx context.Context, tenantID string, opts *JobListOptions) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context, tenantID string) (map[models.JobStatus]int, error)
	// StaleRunningJobs returns running jobs whose start exceeds the threshold
	StaleRunningJobs(ctx context.Context, olderThan time.Duration) ([]*models.Job, error)
	// DeleteTerminalJobsOlderThan removes old terminal jobs, returning the count
	DeleteTerminalJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// DeletionStorage persists deletion tasks
type DeletionStorage interface {
	SaveTask(ctx context.Context, task *models.DeletionTask) error
	UpdateTask(ctx context.Context, task *models.DeletionTask) error
	ListTasksForDocument(ctx context.Context, tenantID, documentID string) ([]*models.DeletionTask, error)
	PendingTasksForDocument(ctx context.Context, tenantID, documentID string) ([]*models.DeletionTask, error)
}

// AuditStorage persists append-only audit records
type AuditStorage interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	ListForTenant(ctx context.Context, tenantID string, opts *ListOptions) ([]*models.AuditLog, error)
}

// TenantStorage persists tenants and their API keys
type TenantStorage interface {
	SaveTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	ListTenants(ctx context.Context, opts *ListOptions) ([]*models.Tenant, error)

	SaveAPIKey(ctx context.Context, key *models.TenantAPIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.TenantAPIKey, error)
	UpdateAPIKey(ctx context.Context, key *models.TenantAPIKey) error
	ListAPIKeys(ctx context.Context, tenantID string) ([]*models.TenantAPIKey, error)
}

// StorageManager is the composite interface over all storage areas
type StorageManager interface {
	DocumentStorage() DocumentStorage
	VersionStorage() VersionStorage
	SpanStorage() SpanStorage
	EmbeddingStorage() EmbeddingStorage
	FactStorage() FactStorage
	RunStorage() RunStorage
	QualityStorage() QualityStorage
	ProjectStorage() ProjectStorage
	JobStorage() JobStorage
	DeletionStorage() DeletionStorage
	AuditStorage() AuditStorage
	TenantStorage() TenantStorage
	Close() error
}
