package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements interfaces.DocumentStorage for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) *DocumentStorage {
	return &DocumentStorage{db: db, logger: logger}
}

func (s *DocumentStorage) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.TenantID == "" {
		return fmt.Errorf("document tenant ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.DeletionStatus == "" {
		doc.DeletionStatus = models.DeletionActive
	}

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.Debug().
		Str("document_id", doc.ID).
		Str("tenant_id", doc.TenantID).
		Msg("Document saved")
	return nil
}

func (s *DocumentStorage) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	// Cross-tenant reads look identical to missing rows
	if doc.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return &doc, nil
}

func (s *DocumentStorage) GetDocumentByHash(ctx context.Context, tenantID, fileHash string) (*models.Document, error) {
	var docs []models.Document
	err := s.db.Store().Find(&docs, badgerhold.
		Where("TenantID").Eq(tenantID).Index("TenantID").
		And("FileHash").Eq(fileHash).
		And("DeletionStatus").Eq(models.DeletionActive))
	if err != nil {
		return nil, fmt.Errorf("failed to find document by hash: %w", err)
	}
	if len(docs) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &docs[0], nil
}

func (s *DocumentStorage) UpdateDocument(ctx context.Context, doc *models.Document) error {
	existing, err := s.GetDocument(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return err
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now()
	if err := s.db.Store().Update(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) DeleteDocument(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetDocument(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListDocuments(ctx context.Context, tenantID string, opts *interfaces.DocumentListOptions) ([]*models.Document, error) {
	query := badgerhold.Where("TenantID").Eq(tenantID).Index("TenantID")

	if opts == nil {
		opts = &interfaces.DocumentListOptions{}
	}
	if !opts.IncludeDeleted {
		query = query.And("DeletionStatus").Eq(models.DeletionActive)
	}
	if opts.DocumentType != "" {
		query = query.And("DocumentType").Eq(models.DocumentType(opts.DocumentType))
	}
	if opts.SourceType != "" {
		query = query.And("SourceType").Eq(models.SourceType(opts.SourceType))
	}
	query = query.SortBy("CreatedAt").Reverse()
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Skip(opts.Offset)
	}

	var docs []models.Document
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) FilterDocuments(ctx context.Context, tenantID string, filter *interfaces.DocumentFilter) ([]*models.Document, error) {
	// Badgerhold cannot express array-contains queries, so the metadata
	// filter loads the tenant's active documents and filters in Go.
	var docs []models.Document
	err := s.db.Store().Find(&docs, badgerhold.
		Where("TenantID").Eq(tenantID).Index("TenantID").
		And("DeletionStatus").Eq(models.DeletionActive))
	if err != nil {
		return nil, fmt.Errorf("failed to filter documents: %w", err)
	}

	idSet := map[string]bool{}
	for _, id := range filter.DocumentIDs {
		idSet[id] = true
	}

	result := make([]*models.Document, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if len(idSet) > 0 && !idSet[doc.ID] {
			continue
		}
		if !containsAll(doc.Sectors, filter.Sectors) {
			continue
		}
		if !containsAll(doc.MainTopics, filter.Topics) {
			continue
		}
		if !containsAll(doc.Geographies, filter.Geographies) {
			continue
		}
		if !containsAll(doc.CompanyNames, filter.Companies) {
			continue
		}
		if len(filter.DocumentTypes) > 0 && !containsValue(filter.DocumentTypes, string(doc.DocumentType)) {
			continue
		}
		result = append(result, doc)
	}
	return result, nil
}

func (s *DocumentStorage) CountDocuments(ctx context.Context, tenantID string) (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, badgerhold.
		Where("TenantID").Eq(tenantID).Index("TenantID").
		And("DeletionStatus").Eq(models.DeletionActive))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

// containsAll reports whether values contains every required entry
func containsAll(values, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	for _, r := range required {
		if !set[r] {
			return false
		}
	}
	return true
}

func containsValue(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
