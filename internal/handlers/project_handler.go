package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/services/projects"
)

// ProjectHandler serves project, folder and attachment operations
type ProjectHandler struct {
	projectService *projects.Service
	logger         arbor.ILogger
}

// NewProjectHandler creates a project handler
func NewProjectHandler(projectService *projects.Service, logger arbor.ILogger) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, logger: logger}
}

// CreateHandler creates a project
func (h *ProjectHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	var req struct {
		Name        string `json:"name" validate:"required"`
		Description string `json:"description"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	project, err := h.projectService.Create(r.Context(), principal, req.Name, req.Description)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, project)
}

// ListHandler lists the tenant's projects
func (h *ProjectHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	list, err := h.projectService.List(r.Context(), principal, &interfaces.ListOptions{
		Limit:  intQuery(r, "limit", 50),
		Offset: intQuery(r, "offset", 0),
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"projects": list, "count": len(list)})
}

// GetHandler returns one project
func (h *ProjectHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	project, err := h.projectService.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, project)
}

// UpdateHandler edits a project
func (h *ProjectHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	project, err := h.projectService.Update(r.Context(), principal, r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, project)
}

// DeleteHandler soft-deletes a project
func (h *ProjectHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeDelete) {
		return
	}
	if err := h.projectService.Delete(r.Context(), principal, r.PathValue("id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// AttachHandler attaches a document, optionally pinning a version
func (h *ProjectHandler) AttachHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var req struct {
		DocumentID      string `json:"document_id" validate:"required"`
		PinnedVersionID string `json:"pinned_version_id"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	attachment, err := h.projectService.Attach(r.Context(), principal, r.PathValue("id"), req.DocumentID, req.PinnedVersionID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, attachment)
}

// DetachHandler removes a document from a project
func (h *ProjectHandler) DetachHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	if err := h.projectService.Detach(r.Context(), principal, r.PathValue("id"), r.PathValue("document_id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"detached": true})
}

// DocumentsHandler lists a project's attachments
func (h *ProjectHandler) DocumentsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	attachments, err := h.projectService.Documents(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"documents": attachments, "count": len(attachments)})
}

// CreateFolderHandler creates a folder in a project
func (h *ProjectHandler) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var req struct {
		Name     string `json:"name" validate:"required"`
		ParentID string `json:"parent_id"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	folder, err := h.projectService.CreateFolder(r.Context(), principal, r.PathValue("id"), req.Name, req.ParentID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, folder)
}

// ListFoldersHandler lists a project's folders
func (h *ProjectHandler) ListFoldersHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	folders, err := h.projectService.ListFolders(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"folders": folders, "count": len(folders)})
}

// DeleteFolderHandler soft-deletes a folder
func (h *ProjectHandler) DeleteFolderHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeDelete) {
		return
	}
	if err := h.projectService.DeleteFolder(r.Context(), principal, r.PathValue("folder_id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// MoveDocumentHandler moves an attachment between folders
func (h *ProjectHandler) MoveDocumentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var req struct {
		FolderID string `json:"folder_id"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err := h.projectService.MoveDocument(r.Context(), principal, r.PathValue("id"), r.PathValue("document_id"), req.FolderID); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"moved": true})
}
