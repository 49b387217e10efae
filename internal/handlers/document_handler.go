package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/pipeline"
	"github.com/ternarybob/indicium/internal/queue"
	"github.com/ternarybob/indicium/internal/services/audit"
	"github.com/ternarybob/indicium/internal/services/deletion"
	"github.com/ternarybob/indicium/internal/services/documents"
)

// maxUploadMemory bounds multipart parsing memory
const maxUploadMemory = 32 << 20

// DocumentHandler serves document and version operations
type DocumentHandler struct {
	documentService *documents.Service
	deletionEngine  *deletion.Engine
	orchestrator    *pipeline.Orchestrator
	jobService      *queue.Service
	auditor         *audit.Recorder
	logger          arbor.ILogger
}

// NewDocumentHandler creates a document handler
func NewDocumentHandler(
	documentService *documents.Service,
	deletionEngine *deletion.Engine,
	orchestrator *pipeline.Orchestrator,
	jobService *queue.Service,
	auditor *audit.Recorder,
	logger arbor.ILogger,
) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		deletionEngine:  deletionEngine,
		orchestrator:    orchestrator,
		jobService:      jobService,
		auditor:         auditor,
		logger:          logger,
	}
}

// UploadHandler accepts a multipart upload, dedups on content hash and
// enqueues version processing
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "failed to read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if override := r.FormValue("content_type"); override != "" {
		contentType = override
	}

	result, err := h.documentService.Upload(r.Context(), principal, &documents.UploadInput{
		Filename:     header.Filename,
		ContentType:  contentType,
		Data:         data,
		DocumentType: models.DocumentType(r.FormValue("document_type")),
		SourceType:   models.SourceUpload,
		ProfileCode:  r.FormValue("profile_code"),
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	h.auditor.Record(r.Context(), audit.Event{
		TenantID:   principal.TenantID,
		Action:     "document.upload",
		ActorID:    principal.ActorID,
		EntityType: "document",
		EntityID:   result.Document.ID,
		RequestID:  r.Header.Get("X-Request-ID"),
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Details:    map[string]interface{}{"duplicate": result.Duplicate},
	})

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	} else {
		if _, err := h.jobService.Enqueue(r.Context(), principal.TenantID, models.JobTypeProcessVersion, map[string]interface{}{
			"version_id": result.Version.ID,
		}, 0, 3); err != nil {
			h.logger.Error().Err(err).Str("version_id", result.Version.ID).Msg("Failed to enqueue processing")
		}
	}

	WriteJSON(w, status, map[string]interface{}{
		"document":  result.Document,
		"version":   result.Version,
		"duplicate": result.Duplicate,
	})
}

// PresignHandler issues a presigned upload plus pre-allocated ids
func (h *DocumentHandler) PresignHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	var req struct {
		Filename    string `json:"filename" validate:"required"`
		ContentType string `json:"content_type" validate:"required"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, uploadURL, err := h.documentService.PresignUpload(r.Context(), principal, req.Filename, req.ContentType)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"document_id": result.Document.ID,
		"version_id":  result.Version.ID,
		"upload_url":  uploadURL,
	})
}

// ConfirmHandler finalizes a presigned upload and enqueues processing
func (h *DocumentHandler) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	versionID := r.PathValue("version_id")

	version, err := h.documentService.ConfirmUpload(r.Context(), principal, versionID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if _, err := h.jobService.Enqueue(r.Context(), principal.TenantID, models.JobTypeProcessVersion, map[string]interface{}{
		"version_id": version.ID,
	}, 0, 3); err != nil {
		h.logger.Error().Err(err).Str("version_id", version.ID).Msg("Failed to enqueue processing")
	}
	WriteJSON(w, http.StatusOK, version)
}

// ListHandler lists the tenant's documents
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	opts := &interfaces.DocumentListOptions{
		Limit:        intQuery(r, "limit", 50),
		Offset:       intQuery(r, "offset", 0),
		DocumentType: r.URL.Query().Get("document_type"),
		SourceType:   r.URL.Query().Get("source_type"),
	}
	docs, err := h.documentService.List(r.Context(), principal, opts)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

// GetHandler returns one document
func (h *DocumentHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	doc, err := h.documentService.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

// VersionsHandler lists a document's versions
func (h *DocumentHandler) VersionsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	versions, err := h.documentService.Versions(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"versions": versions, "count": len(versions)})
}

// UploadVersionHandler adds a new version to an existing document
func (h *DocumentHandler) UploadVersionHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "file field is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "failed to read upload")
		return
	}

	result, err := h.documentService.UploadVersion(r.Context(), principal, r.PathValue("id"), data, header.Header.Get("Content-Type"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if _, err := h.jobService.Enqueue(r.Context(), principal.TenantID, models.JobTypeProcessVersion, map[string]interface{}{
		"version_id": result.Version.ID,
	}, 0, 3); err != nil {
		h.logger.Error().Err(err).Str("version_id", result.Version.ID).Msg("Failed to enqueue processing")
	}
	WriteJSON(w, http.StatusCreated, result.Version)
}

// DownloadHandler streams the original bytes with Content-Disposition
func (h *DocumentHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	data, filename, err := h.documentService.Download(r.Context(), principal, r.PathValue("id"), r.URL.Query().Get("version_id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// DeleteHandler initiates the deletion protocol and enqueues its execution
func (h *DocumentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeDelete) {
		return
	}

	documentID := r.PathValue("id")
	tasks, err := h.deletionEngine.MarkForDeletion(r.Context(), principal, documentID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	h.auditor.Record(r.Context(), audit.Event{
		TenantID:   principal.TenantID,
		Action:     "document.delete",
		ActorID:    principal.ActorID,
		EntityType: "document",
		EntityID:   documentID,
		RequestID:  r.Header.Get("X-Request-ID"),
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})

	if _, err := h.jobService.Enqueue(r.Context(), principal.TenantID, models.JobTypeDocumentDelete, map[string]interface{}{
		"document_id": documentID,
	}, 10, 3); err != nil {
		h.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to enqueue deletion")
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"document_id": documentID,
		"status":      models.DeletionMarked,
		"task_count":  len(tasks),
	})
}

// StatusHandler reports the latest version's pipeline position
func (h *DocumentHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	status, err := h.documentService.Status(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// RetryHandler resets a failed or stuck latest version to PENDING so a
// worker picks it up again
func (h *DocumentHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	versions, err := h.documentService.Versions(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if len(versions) == 0 {
		WriteError(w, r, http.StatusNotFound, "not_found", "document has no versions")
		return
	}

	if err := h.orchestrator.RetryVersion(r.Context(), principal.TenantID, versions[0].ID); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version_id": versions[0].ID,
		"status":     models.ExtractionPending,
	})
}

// DeletionStatusHandler reports per-task deletion progress
func (h *DocumentHandler) DeletionStatusHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	status, err := h.deletionEngine.Status(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func intQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}
