// Package documents implements upload, deduplication, versioning, download
// and status for documents and their versions.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/blob"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// UploadInput carries one upload request
type UploadInput struct {
	Filename     string
	ContentType  string
	Data         []byte
	DocumentType models.DocumentType
	SourceType   models.SourceType
	SourceURL    string
	ProfileCode  string
	Metadata     map[string]interface{}
}

// UploadResult reports the created (or reused) document and version
type UploadResult struct {
	Document   *models.Document
	Version    *models.DocumentVersion
	Duplicate  bool
	NewVersion bool
}

// Service manages documents and versions
type Service struct {
	documentStorage interfaces.DocumentStorage
	versionStorage  interfaces.VersionStorage
	blobStore       interfaces.BlobStore
	maxFileSize     int64
	logger          arbor.ILogger
}

// NewService creates a document service
func NewService(
	documentStorage interfaces.DocumentStorage,
	versionStorage interfaces.VersionStorage,
	blobStore interfaces.BlobStore,
	maxFileSizeMB int,
	logger arbor.ILogger,
) *Service {
	return &Service{
		documentStorage: documentStorage,
		versionStorage:  versionStorage,
		blobStore:       blobStore,
		maxFileSize:     int64(maxFileSizeMB) * 1024 * 1024,
		logger:          logger,
	}
}

// Upload stores bytes as a new document, or reuses the existing document
// when identical bytes were already uploaded in this tenant.
func (s *Service) Upload(ctx context.Context, principal models.Principal, input *UploadInput) (*UploadResult, error) {
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("upload is empty")
	}
	if s.maxFileSize > 0 && int64(len(input.Data)) > s.maxFileSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", s.maxFileSize)
	}

	hash := hashBytes(input.Data)

	// Identical bytes within the tenant reuse the existing document and
	// version; no new blob is written
	if existing, err := s.documentStorage.GetDocumentByHash(ctx, principal.TenantID, hash); err == nil {
		version, err := s.versionStorage.LatestVersion(ctx, principal.TenantID, existing.ID)
		if err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("document_id", existing.ID).
			Str("file_hash", hash).
			Msg("Duplicate upload deduplicated")
		return &UploadResult{Document: existing, Version: version, Duplicate: true}, nil
	} else if err != interfaces.ErrNotFound {
		return nil, err
	}

	doc := &models.Document{
		ID:               common.NewID(common.PrefixDocument),
		TenantID:         principal.TenantID,
		Filename:         blob.SanitizeFilename(input.Filename),
		OriginalFilename: input.Filename,
		ContentType:      input.ContentType,
		FileHash:         hash,
		ProfileCode:      defaultProfile(input.ProfileCode),
		DocumentType:     defaultDocType(input.DocumentType),
		SourceType:       defaultSourceType(input.SourceType),
		SourceURL:        input.SourceURL,
		Metadata:         input.Metadata,
		DeletionStatus:   models.DeletionActive,
	}
	if err := s.documentStorage.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	version, err := s.createVersion(ctx, doc, input.Data, input.ContentType)
	if err != nil {
		return nil, err
	}

	return &UploadResult{Document: doc, Version: version, NewVersion: true}, nil
}

// UploadVersion adds a new immutable version to an existing document
func (s *Service) UploadVersion(ctx context.Context, principal models.Principal, documentID string, data []byte, contentType string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("upload is empty")
	}
	doc, err := s.documentStorage.GetDocument(ctx, principal.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsVisible() {
		return nil, interfaces.ErrNotFound
	}

	version, err := s.createVersion(ctx, doc, data, contentType)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Document: doc, Version: version, NewVersion: true}, nil
}

func (s *Service) createVersion(ctx context.Context, doc *models.Document, data []byte, contentType string) (*models.DocumentVersion, error) {
	versionNumber, err := s.versionStorage.NextVersionNumber(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return nil, err
	}

	key := blob.DocumentKey(doc.ID, versionNumber, doc.OriginalFilename)
	uri, err := s.blobStore.Put(ctx, key, data, contentType, map[string]string{
		"tenant_id":   doc.TenantID,
		"document_id": doc.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store bytes: %w", err)
	}

	version := &models.DocumentVersion{
		ID:               common.NewID(common.PrefixVersion),
		TenantID:         doc.TenantID,
		DocumentID:       doc.ID,
		VersionNumber:    versionNumber,
		StorageURI:       uri,
		FileSize:         int64(len(data)),
		FileHash:         hashBytes(data),
		UploadStatus:     models.UploadUploaded,
		ProcessingStatus: models.ProcessingUploaded,
		ExtractionStatus: models.ExtractionPending,
	}
	if err := s.versionStorage.SaveVersion(ctx, version); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("version_id", version.ID).
		Int("version_number", versionNumber).
		Msg("Document version created")
	return version, nil
}

// PresignUpload pre-allocates a document and a PENDING version for a direct
// browser upload; ConfirmUpload finalizes it.
func (s *Service) PresignUpload(ctx context.Context, principal models.Principal, filename, contentType string) (*UploadResult, string, error) {
	doc := &models.Document{
		ID:               common.NewID(common.PrefixDocument),
		TenantID:         principal.TenantID,
		Filename:         blob.SanitizeFilename(filename),
		OriginalFilename: filename,
		ContentType:      contentType,
		ProfileCode:      "general",
		DocumentType:     models.DocTypeUnknown,
		SourceType:       models.SourceUpload,
		DeletionStatus:   models.DeletionActive,
	}
	if err := s.documentStorage.SaveDocument(ctx, doc); err != nil {
		return nil, "", err
	}

	version := &models.DocumentVersion{
		ID:               common.NewID(common.PrefixVersion),
		TenantID:         principal.TenantID,
		DocumentID:       doc.ID,
		VersionNumber:    1,
		StorageURI:       "file://" + blob.DocumentKey(doc.ID, 1, filename),
		UploadStatus:     models.UploadPending,
		ProcessingStatus: models.ProcessingPending,
		ExtractionStatus: models.ExtractionPending,
	}
	if err := s.versionStorage.SaveVersion(ctx, version); err != nil {
		return nil, "", err
	}

	uploadURL, err := s.blobStore.SignDownloadURL(version.StorageURI, 15*time.Minute)
	if err != nil {
		return nil, "", err
	}
	return &UploadResult{Document: doc, Version: version, NewVersion: true}, uploadURL, nil
}

// ConfirmUpload finalizes a presigned upload after the client PUT the bytes
func (s *Service) ConfirmUpload(ctx context.Context, principal models.Principal, versionID string) (*models.DocumentVersion, error) {
	version, err := s.versionStorage.GetVersion(ctx, principal.TenantID, versionID)
	if err != nil {
		return nil, err
	}
	if version.UploadStatus == models.UploadUploaded {
		return version, nil
	}

	data, err := s.blobStore.Get(ctx, version.StorageURI)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return nil, fmt.Errorf("bytes not present in storage yet")
		}
		return nil, err
	}

	version.FileSize = int64(len(data))
	version.FileHash = hashBytes(data)
	version.UploadStatus = models.UploadUploaded
	version.ProcessingStatus = models.ProcessingUploaded
	if err := s.versionStorage.UpdateVersion(ctx, version); err != nil {
		return nil, err
	}

	doc, err := s.documentStorage.GetDocument(ctx, principal.TenantID, version.DocumentID)
	if err == nil && doc.FileHash == "" {
		doc.FileHash = version.FileHash
		if err := s.documentStorage.UpdateDocument(ctx, doc); err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to backfill document hash")
		}
	}
	return version, nil
}

// Get returns a visible document
func (s *Service) Get(ctx context.Context, principal models.Principal, documentID string) (*models.Document, error) {
	doc, err := s.documentStorage.GetDocument(ctx, principal.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsVisible() {
		return nil, interfaces.ErrNotFound
	}
	return doc, nil
}

// List returns the tenant's visible documents
func (s *Service) List(ctx context.Context, principal models.Principal, opts *interfaces.DocumentListOptions) ([]*models.Document, error) {
	if opts == nil {
		opts = &interfaces.DocumentListOptions{}
	}
	opts.IncludeDeleted = false
	return s.documentStorage.ListDocuments(ctx, principal.TenantID, opts)
}

// Versions lists a document's versions, newest first
func (s *Service) Versions(ctx context.Context, principal models.Principal, documentID string) ([]*models.DocumentVersion, error) {
	if _, err := s.Get(ctx, principal, documentID); err != nil {
		return nil, err
	}
	return s.versionStorage.ListVersions(ctx, principal.TenantID, documentID)
}

// Download returns the original bytes of a version plus the filename for
// Content-Disposition
func (s *Service) Download(ctx context.Context, principal models.Principal, documentID, versionID string) ([]byte, string, error) {
	doc, err := s.Get(ctx, principal, documentID)
	if err != nil {
		return nil, "", err
	}

	var version *models.DocumentVersion
	if versionID == "" {
		version, err = s.versionStorage.LatestVersion(ctx, principal.TenantID, documentID)
	} else {
		version, err = s.versionStorage.GetVersion(ctx, principal.TenantID, versionID)
	}
	if err != nil {
		return nil, "", err
	}
	if version.DocumentID != doc.ID {
		return nil, "", interfaces.ErrNotFound
	}

	data, err := s.blobStore.Get(ctx, version.StorageURI)
	if err != nil {
		return nil, "", err
	}
	return data, doc.OriginalFilename, nil
}

// Status reports a version's pipeline position
func (s *Service) Status(ctx context.Context, principal models.Principal, documentID string) (map[string]interface{}, error) {
	doc, err := s.Get(ctx, principal, documentID)
	if err != nil {
		return nil, err
	}
	version, err := s.versionStorage.LatestVersion(ctx, principal.TenantID, documentID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"document_id":       doc.ID,
		"version_id":        version.ID,
		"filename":          doc.OriginalFilename,
		"version_number":    version.VersionNumber,
		"upload_status":     version.UploadStatus,
		"processing_status": version.ProcessingStatus,
		"extraction_status": version.ExtractionStatus,
		"page_count":        version.PageCount,
		"error":             version.ExtractionError,
		"created_at":        version.CreatedAt,
	}, nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func defaultProfile(p string) string {
	if p == "" {
		return "general"
	}
	return p
}

func defaultDocType(t models.DocumentType) models.DocumentType {
	if t == "" {
		return models.DocTypeUnknown
	}
	return t
}

func defaultSourceType(t models.SourceType) models.SourceType {
	if t == "" {
		return models.SourceUpload
	}
	return t
}
