// Package models defines the entity model for the Indicium evidence repository.
//
// Every entity is tenant-scoped: each carries a TenantID and every storage
// query filters on it. Documents are logical assets; each upload of new bytes
// creates an immutable DocumentVersion that owns all derived artifacts
// (spans, embeddings, facts, quality results) for that snapshot.
package models

import (
	"time"
)

// UploadStatus tracks whether a version's bytes are actually in storage
type UploadStatus string

const (
	UploadPending  UploadStatus = "pending" // presigned URL issued, awaiting upload
	UploadUploaded UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "failed"
)

// ExtractionStatus is the claim marker used by the polling worker
type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
)

// ProcessingStatus tracks progress through the full pipeline.
//
// Stages in order: UPLOADED → EXTRACTED → SPANS_BUILT → EMBEDDED →
// FACTS_EXTRACTED → QUALITY_CHECKED. FAILED means processing stopped at
// some stage; the predecessor stage's state is intact.
type ProcessingStatus string

const (
	ProcessingPending        ProcessingStatus = "pending"
	ProcessingUploaded       ProcessingStatus = "uploaded"
	ProcessingExtracted      ProcessingStatus = "extracted"
	ProcessingSpansBuilt     ProcessingStatus = "spans_built"
	ProcessingEmbedded       ProcessingStatus = "embedded"
	ProcessingFactsExtracted ProcessingStatus = "facts_extracted"
	ProcessingQualityChecked ProcessingStatus = "quality_checked"
	ProcessingFailed         ProcessingStatus = "failed"
)

// stageOrder maps each pipeline stage to its position for monotonicity checks
var stageOrder = map[ProcessingStatus]int{
	ProcessingPending:        0,
	ProcessingUploaded:       1,
	ProcessingExtracted:      2,
	ProcessingSpansBuilt:     3,
	ProcessingEmbedded:       4,
	ProcessingFactsExtracted: 5,
	ProcessingQualityChecked: 6,
}

// StageRank returns the position of a stage in the pipeline, or -1 for FAILED
// and unknown values.
func (s ProcessingStatus) StageRank() int {
	if rank, ok := stageOrder[s]; ok {
		return rank
	}
	return -1
}

// CanAdvanceTo reports whether a transition from s to next is a legal forward
// move. FAILED is reachable from any non-terminal stage; backward moves are
// only possible through an explicit reset.
func (s ProcessingStatus) CanAdvanceTo(next ProcessingStatus) bool {
	if next == ProcessingFailed {
		return s != ProcessingQualityChecked
	}
	return next.StageRank() > s.StageRank()
}

// DocumentType classifies the document for metadata filtering
type DocumentType string

const (
	DocTypeAcademicPaper    DocumentType = "academic_paper"
	DocTypeNewsArticle      DocumentType = "news_article"
	DocTypeBlogPost         DocumentType = "blog_post"
	DocTypeCompanyReport    DocumentType = "company_report"
	DocTypeFinancialStmt    DocumentType = "financial_statement"
	DocTypeLegalDocument    DocumentType = "legal_document"
	DocTypeTechnicalDocs    DocumentType = "technical_documentation"
	DocTypePressRelease     DocumentType = "press_release"
	DocTypeMarketing        DocumentType = "marketing_material"
	DocTypeGovernment       DocumentType = "government_document"
	DocTypePatent           DocumentType = "patent"
	DocTypePresentation     DocumentType = "presentation"
	DocTypeWhitepaper       DocumentType = "whitepaper"
	DocTypeCaseStudy        DocumentType = "case_study"
	DocTypePolicyDocument   DocumentType = "policy_document"
	DocTypeRegulatoryFiling DocumentType = "regulatory_filing"
	DocTypeInternalMemo     DocumentType = "internal_memo"
	DocTypeContract         DocumentType = "contract"
	DocTypeInvoice          DocumentType = "invoice"
	DocTypeSpreadsheetData  DocumentType = "spreadsheet_data"
	DocTypeUnknown          DocumentType = "unknown"
)

// SourceType records how a document entered the system
type SourceType string

const (
	SourceUpload      SourceType = "upload"
	SourceURL         SourceType = "url"
	SourceEmail       SourceType = "email"
	SourceAPI         SourceType = "api"
	SourceCrawler     SourceType = "crawler"
	SourceBatchImport SourceType = "batch_import"
	SourceUnknown     SourceType = "unknown"
)

// DeletionStatus tracks the multi-step document deletion protocol.
//
// Flow: ACTIVE → MARKED → DELETING → DELETED (or FAILED, retryable).
type DeletionStatus string

const (
	DeletionActive  DeletionStatus = "active"
	DeletionMarked  DeletionStatus = "marked"
	DeletionRunning DeletionStatus = "deleting"
	DeletionFailed  DeletionStatus = "failed"
	DeletionDeleted DeletionStatus = "deleted"
)

// Document is the logical asset. Versions hold the bytes and derived state.
type Document struct {
	ID       string `json:"id" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`

	// SHA-256 of the original bytes, for within-tenant deduplication
	FileHash string `json:"file_hash" badgerhold:"index"`

	// Extraction profile (general, vc, pharma, insurance)
	ProfileCode string `json:"profile_code"`

	DocumentType DocumentType `json:"document_type"`
	SourceType   SourceType   `json:"source_type"`
	SourceURL    string       `json:"source_url,omitempty"`

	// Extracted metadata arrays for filtering
	Sectors      []string `json:"sectors,omitempty"`
	MainTopics   []string `json:"main_topics,omitempty"`
	Geographies  []string `json:"geographies,omitempty"`
	CompanyNames []string `json:"company_names,omitempty"`
	Authors      []string `json:"authors,omitempty"`

	PublishingOrganization string     `json:"publishing_organization,omitempty"`
	PublicationDate        *time.Time `json:"publication_date,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Soft delete + multi-step deletion tracking
	DeletedAt           *time.Time     `json:"deleted_at,omitempty"`
	DeletionStatus      DeletionStatus `json:"deletion_status" badgerhold:"index"`
	DeletionRequestedAt *time.Time     `json:"deletion_requested_at,omitempty"`
	DeletionRequestedBy string         `json:"deletion_requested_by,omitempty"`
	DeletionCompletedAt *time.Time     `json:"deletion_completed_at,omitempty"`
	DeletionError       string         `json:"deletion_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsVisible reports whether the document should appear in listings and search
func (d *Document) IsVisible() bool {
	return d.DeletionStatus == DeletionActive && d.DeletedAt == nil
}

// DocumentVersion is an immutable snapshot of a document's bytes plus the
// derivation state for that snapshot. Edits create a new version.
type DocumentVersion struct {
	ID         string `json:"id" badgerhold:"key"`
	TenantID   string `json:"tenant_id" badgerhold:"index"`
	DocumentID string `json:"document_id" badgerhold:"index"`

	VersionNumber int `json:"version_number"`

	// Blob location and content identity
	StorageURI string `json:"storage_uri"`
	FileSize   int64  `json:"file_size"`
	FileHash   string `json:"file_hash"`

	UploadStatus     UploadStatus     `json:"upload_status"`
	ProcessingStatus ProcessingStatus `json:"processing_status" badgerhold:"index"`
	ExtractionStatus ExtractionStatus `json:"extraction_status" badgerhold:"index"`
	ExtractionError  string           `json:"extraction_error,omitempty"`

	ExtractedText string     `json:"extracted_text,omitempty"`
	ExtractedAt   *time.Time `json:"extracted_at,omitempty"`
	PageCount     int        `json:"page_count,omitempty"`

	// Credibility assessment filled by the fact extractor
	TruthfulnessScore     *float64               `json:"truthfulness_score,omitempty"`
	BiasScore             *float64               `json:"bias_score,omitempty"`
	CredibilityAssessment map[string]interface{} `json:"credibility_assessment,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
