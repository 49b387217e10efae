package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ProjectStorage implements interfaces.ProjectStorage for Badger
type ProjectStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Guards the attach uniqueness check
	mu sync.Mutex
}

// NewProjectStorage creates a new ProjectStorage instance
func NewProjectStorage(db *BadgerDB, logger arbor.ILogger) *ProjectStorage {
	return &ProjectStorage{db: db, logger: logger}
}

func (s *ProjectStorage) SaveProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" || project.TenantID == "" {
		return fmt.Errorf("project ID and tenant ID are required")
	}
	now := time.Now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if err := s.db.Store().Upsert(project.ID, project); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetProject(ctx context.Context, tenantID, id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.Store().Get(id, &project); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project.TenantID != tenantID || project.DeletedAt != nil {
		return nil, interfaces.ErrNotFound
	}
	return &project, nil
}

func (s *ProjectStorage) UpdateProject(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()
	if err := s.db.Store().Update(project.ID, project); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (s *ProjectStorage) ListProjects(ctx context.Context, tenantID string, opts *interfaces.ListOptions) ([]*models.Project, error) {
	query := badgerhold.Where("TenantID").Eq(tenantID).Index("TenantID").
		SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	var projects []models.Project
	if err := s.db.Store().Find(&projects, query); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	result := make([]*models.Project, 0, len(projects))
	for i := range projects {
		if projects[i].DeletedAt == nil {
			result = append(result, &projects[i])
		}
	}
	return result, nil
}

// AttachDocument inserts the attachment; a duplicate (project, document)
// pair fails with ErrConflict
func (s *ProjectStorage) AttachDocument(ctx context.Context, attachment *models.ProjectDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getAttachmentLocked(attachment.TenantID, attachment.ProjectID, attachment.DocumentID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("document %s already attached to project %s: %w",
			attachment.DocumentID, attachment.ProjectID, interfaces.ErrConflict)
	}

	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now()
	}
	if err := s.db.Store().Insert(attachment.ID, attachment); err != nil {
		return fmt.Errorf("failed to attach document: %w", err)
	}
	return nil
}

func (s *ProjectStorage) DetachDocument(ctx context.Context, tenantID, projectID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attachment, err := s.getAttachmentLocked(tenantID, projectID, documentID)
	if err != nil {
		return err
	}
	if attachment == nil {
		return interfaces.ErrNotFound
	}
	if err := s.db.Store().Delete(attachment.ID, &models.ProjectDocument{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to detach document: %w", err)
	}
	return nil
}

func (s *ProjectStorage) UpdateAttachment(ctx context.Context, attachment *models.ProjectDocument) error {
	if err := s.db.Store().Update(attachment.ID, attachment); err != nil {
		return fmt.Errorf("failed to update attachment: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetAttachment(ctx context.Context, tenantID, projectID, documentID string) (*models.ProjectDocument, error) {
	attachment, err := s.getAttachmentLocked(tenantID, projectID, documentID)
	if err != nil {
		return nil, err
	}
	if attachment == nil {
		return nil, interfaces.ErrNotFound
	}
	return attachment, nil
}

func (s *ProjectStorage) getAttachmentLocked(tenantID, projectID, documentID string) (*models.ProjectDocument, error) {
	var attachments []models.ProjectDocument
	err := s.db.Store().Find(&attachments, badgerhold.
		Where("ProjectID").Eq(projectID).Index("ProjectID").
		And("TenantID").Eq(tenantID).
		And("DocumentID").Eq(documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to query attachment: %w", err)
	}
	if len(attachments) == 0 {
		return nil, nil
	}
	return &attachments[0], nil
}

func (s *ProjectStorage) ListAttachments(ctx context.Context, tenantID, projectID string) ([]*models.ProjectDocument, error) {
	var attachments []models.ProjectDocument
	err := s.db.Store().Find(&attachments, badgerhold.
		Where("ProjectID").Eq(projectID).Index("ProjectID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	result := make([]*models.ProjectDocument, len(attachments))
	for i := range attachments {
		result[i] = &attachments[i]
	}
	return result, nil
}

func (s *ProjectStorage) ListAttachmentsForDocument(ctx context.Context, tenantID, documentID string) ([]*models.ProjectDocument, error) {
	var attachments []models.ProjectDocument
	err := s.db.Store().Find(&attachments, badgerhold.
		Where("DocumentID").Eq(documentID).Index("DocumentID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments for document: %w", err)
	}
	result := make([]*models.ProjectDocument, len(attachments))
	for i := range attachments {
		result[i] = &attachments[i]
	}
	return result, nil
}

func (s *ProjectStorage) DeleteAttachmentsForDocument(ctx context.Context, tenantID, documentID string) (int, error) {
	query := badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID").
		And("TenantID").Eq(tenantID)
	count, err := s.db.Store().Count(&models.ProjectDocument{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count attachments: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.ProjectDocument{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete attachments: %w", err)
	}
	return int(count), nil
}

func (s *ProjectStorage) SaveFolder(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" || folder.TenantID == "" {
		return fmt.Errorf("folder ID and tenant ID are required")
	}
	now := time.Now()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	folder.UpdatedAt = now
	if err := s.db.Store().Upsert(folder.ID, folder); err != nil {
		return fmt.Errorf("failed to save folder: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetFolder(ctx context.Context, tenantID, id string) (*models.Folder, error) {
	var folder models.Folder
	if err := s.db.Store().Get(id, &folder); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	if folder.TenantID != tenantID || folder.DeletedAt != nil {
		return nil, interfaces.ErrNotFound
	}
	return &folder, nil
}

func (s *ProjectStorage) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	folder.UpdatedAt = time.Now()
	if err := s.db.Store().Update(folder.ID, folder); err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	return nil
}

func (s *ProjectStorage) ListFolders(ctx context.Context, tenantID, projectID string) ([]*models.Folder, error) {
	var folders []models.Folder
	err := s.db.Store().Find(&folders, badgerhold.
		Where("ProjectID").Eq(projectID).Index("ProjectID").
		And("TenantID").Eq(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	result := make([]*models.Folder, 0, len(folders))
	for i := range folders {
		if folders[i].DeletedAt == nil {
			result = append(result, &folders[i])
		}
	}
	return result, nil
}

func (s *ProjectStorage) SavePack(ctx context.Context, pack *models.EvidencePack) error {
	if pack.ID == "" || pack.TenantID == "" {
		return fmt.Errorf("pack ID and tenant ID are required")
	}
	now := time.Now()
	if pack.CreatedAt.IsZero() {
		pack.CreatedAt = now
	}
	pack.UpdatedAt = now
	if err := s.db.Store().Upsert(pack.ID, pack); err != nil {
		return fmt.Errorf("failed to save evidence pack: %w", err)
	}
	return nil
}

func (s *ProjectStorage) GetPack(ctx context.Context, tenantID, id string) (*models.EvidencePack, error) {
	var pack models.EvidencePack
	if err := s.db.Store().Get(id, &pack); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get evidence pack: %w", err)
	}
	if pack.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return &pack, nil
}

func (s *ProjectStorage) UpdatePack(ctx context.Context, pack *models.EvidencePack) error {
	pack.UpdatedAt = time.Now()
	if err := s.db.Store().Update(pack.ID, pack); err != nil {
		return fmt.Errorf("failed to update evidence pack: %w", err)
	}
	return nil
}

func (s *ProjectStorage) DeletePack(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetPack(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.db.Store().Delete(id, &models.EvidencePack{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete evidence pack: %w", err)
	}
	return nil
}

func (s *ProjectStorage) ListPacks(ctx context.Context, tenantID string, opts *interfaces.ListOptions) ([]*models.EvidencePack, error) {
	query := badgerhold.Where("TenantID").Eq(tenantID).Index("TenantID").
		SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	var packs []models.EvidencePack
	if err := s.db.Store().Find(&packs, query); err != nil {
		return nil, fmt.Errorf("failed to list evidence packs: %w", err)
	}
	result := make([]*models.EvidencePack, len(packs))
	for i := range packs {
		result[i] = &packs[i]
	}
	return result, nil
}
