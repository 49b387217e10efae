package models

import (
	"time"
)

// Project is a tenant-scoped grouping of documents. Attachment is
// many-to-many via ProjectDocument.
type Project struct {
	ID       string `json:"id" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Soft delete tombstone; hidden from listings when set
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectDocument attaches a document to a project. (ProjectID, DocumentID)
// is unique. PinnedVersionID pins a specific version; empty means the project
// references the latest version.
type ProjectDocument struct {
	ID         string `json:"id" badgerhold:"key"`
	TenantID   string `json:"tenant_id" badgerhold:"index"`
	ProjectID  string `json:"project_id" badgerhold:"index"`
	DocumentID string `json:"document_id" badgerhold:"index"`

	PinnedVersionID string `json:"pinned_version_id,omitempty"`
	FolderID        string `json:"folder_id,omitempty" badgerhold:"index"`

	AttachedBy string    `json:"attached_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Folder is optional hierarchical organization within a project. Folders may
// nest via ParentID and are soft-deletable.
type Folder struct {
	ID        string `json:"id" badgerhold:"key"`
	TenantID  string `json:"tenant_id" badgerhold:"index"`
	ProjectID string `json:"project_id" badgerhold:"index"`

	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty" badgerhold:"index"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EvidencePack is a named bundle of spans, claims and metrics, exportable as
// a structured JSON tree for downstream consumers.
type EvidencePack struct {
	ID       string `json:"id" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty" badgerhold:"index"`

	SpanIDs   []string `json:"span_ids,omitempty"`
	ClaimIDs  []string `json:"claim_ids,omitempty"`
	MetricIDs []string `json:"metric_ids,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
