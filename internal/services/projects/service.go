// Package projects implements project, folder and attachment management.
package projects

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Service manages projects, folders and project-document attachments
type Service struct {
	projectStorage  interfaces.ProjectStorage
	documentStorage interfaces.DocumentStorage
	versionStorage  interfaces.VersionStorage
	logger          arbor.ILogger
}

// NewService creates a project service
func NewService(
	projectStorage interfaces.ProjectStorage,
	documentStorage interfaces.DocumentStorage,
	versionStorage interfaces.VersionStorage,
	logger arbor.ILogger,
) *Service {
	return &Service{
		projectStorage:  projectStorage,
		documentStorage: documentStorage,
		versionStorage:  versionStorage,
		logger:          logger,
	}
}

// Create creates a project
func (s *Service) Create(ctx context.Context, principal models.Principal, name, description string) (*models.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	project := &models.Project{
		ID:          common.NewID(common.PrefixProject),
		TenantID:    principal.TenantID,
		Name:        name,
		Description: description,
	}
	if err := s.projectStorage.SaveProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Get returns a live project
func (s *Service) Get(ctx context.Context, principal models.Principal, projectID string) (*models.Project, error) {
	return s.projectStorage.GetProject(ctx, principal.TenantID, projectID)
}

// List returns the tenant's live projects
func (s *Service) List(ctx context.Context, principal models.Principal, opts *interfaces.ListOptions) ([]*models.Project, error) {
	return s.projectStorage.ListProjects(ctx, principal.TenantID, opts)
}

// Update renames or re-describes a project
func (s *Service) Update(ctx context.Context, principal models.Principal, projectID, name, description string) (*models.Project, error) {
	project, err := s.projectStorage.GetProject(ctx, principal.TenantID, projectID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		project.Name = name
	}
	project.Description = description
	if err := s.projectStorage.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete soft-deletes a project; documents remain untouched
func (s *Service) Delete(ctx context.Context, principal models.Principal, projectID string) error {
	project, err := s.projectStorage.GetProject(ctx, principal.TenantID, projectID)
	if err != nil {
		return err
	}
	now := time.Now()
	project.DeletedAt = &now
	return s.projectStorage.UpdateProject(ctx, project)
}

// Attach attaches a document, optionally pinning a version
func (s *Service) Attach(ctx context.Context, principal models.Principal, projectID, documentID, pinnedVersionID string) (*models.ProjectDocument, error) {
	if _, err := s.projectStorage.GetProject(ctx, principal.TenantID, projectID); err != nil {
		return nil, err
	}
	doc, err := s.documentStorage.GetDocument(ctx, principal.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsVisible() {
		return nil, interfaces.ErrNotFound
	}
	if pinnedVersionID != "" {
		version, err := s.versionStorage.GetVersion(ctx, principal.TenantID, pinnedVersionID)
		if err != nil {
			return nil, err
		}
		if version.DocumentID != documentID {
			return nil, fmt.Errorf("version %s does not belong to document %s", pinnedVersionID, documentID)
		}
	}

	attachment := &models.ProjectDocument{
		ID:              common.NewID(common.PrefixProject) + "-att",
		TenantID:        principal.TenantID,
		ProjectID:       projectID,
		DocumentID:      documentID,
		PinnedVersionID: pinnedVersionID,
		AttachedBy:      principal.ActorID,
	}
	if err := s.projectStorage.AttachDocument(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// Detach removes a document from a project
func (s *Service) Detach(ctx context.Context, principal models.Principal, projectID, documentID string) error {
	return s.projectStorage.DetachDocument(ctx, principal.TenantID, projectID, documentID)
}

// Documents lists a project's attachments
func (s *Service) Documents(ctx context.Context, principal models.Principal, projectID string) ([]*models.ProjectDocument, error) {
	if _, err := s.projectStorage.GetProject(ctx, principal.TenantID, projectID); err != nil {
		return nil, err
	}
	return s.projectStorage.ListAttachments(ctx, principal.TenantID, projectID)
}

// CreateFolder creates a folder, optionally nested under parentID
func (s *Service) CreateFolder(ctx context.Context, principal models.Principal, projectID, name, parentID string) (*models.Folder, error) {
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}
	if _, err := s.projectStorage.GetProject(ctx, principal.TenantID, projectID); err != nil {
		return nil, err
	}
	if parentID != "" {
		parent, err := s.projectStorage.GetFolder(ctx, principal.TenantID, parentID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != projectID {
			return nil, fmt.Errorf("parent folder belongs to a different project")
		}
	}

	folder := &models.Folder{
		ID:        common.NewID(common.PrefixFolder),
		TenantID:  principal.TenantID,
		ProjectID: projectID,
		Name:      name,
		ParentID:  parentID,
	}
	if err := s.projectStorage.SaveFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// ListFolders lists a project's live folders
func (s *Service) ListFolders(ctx context.Context, principal models.Principal, projectID string) ([]*models.Folder, error) {
	return s.projectStorage.ListFolders(ctx, principal.TenantID, projectID)
}

// DeleteFolder soft-deletes a folder; attachments fall back to the project
// root
func (s *Service) DeleteFolder(ctx context.Context, principal models.Principal, folderID string) error {
	folder, err := s.projectStorage.GetFolder(ctx, principal.TenantID, folderID)
	if err != nil {
		return err
	}
	now := time.Now()
	folder.DeletedAt = &now
	if err := s.projectStorage.UpdateFolder(ctx, folder); err != nil {
		return err
	}

	attachments, err := s.projectStorage.ListAttachments(ctx, principal.TenantID, folder.ProjectID)
	if err != nil {
		return err
	}
	for _, att := range attachments {
		if att.FolderID == folderID {
			att.FolderID = ""
			if err := s.projectStorage.UpdateAttachment(ctx, att); err != nil {
				return err
			}
		}
	}
	return nil
}

// MoveDocument assigns an attachment to a folder (or the root when folderID
// is empty)
func (s *Service) MoveDocument(ctx context.Context, principal models.Principal, projectID, documentID, folderID string) error {
	attachment, err := s.projectStorage.GetAttachment(ctx, principal.TenantID, projectID, documentID)
	if err != nil {
		return err
	}
	if folderID != "" {
		folder, err := s.projectStorage.GetFolder(ctx, principal.TenantID, folderID)
		if err != nil {
			return err
		}
		if folder.ProjectID != projectID {
			return fmt.Errorf("folder belongs to a different project")
		}
	}
	attachment.FolderID = folderID
	return s.projectStorage.UpdateAttachment(ctx, attachment)
}
