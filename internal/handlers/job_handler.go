package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/queue"
)

// JobHandler serves the job management surface
type JobHandler struct {
	jobService *queue.Service
	logger     arbor.ILogger
}

// NewJobHandler creates a job handler
func NewJobHandler(jobService *queue.Service, logger arbor.ILogger) *JobHandler {
	return &JobHandler{jobService: jobService, logger: logger}
}

// EnqueueHandler enqueues an arbitrary job
func (h *JobHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	var req struct {
		Type        string                 `json:"type" validate:"required"`
		Payload     map[string]interface{} `json:"payload"`
		Priority    int                    `json:"priority"`
		MaxAttempts int                    `json:"max_attempts"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	job, err := h.jobService.Enqueue(r.Context(), principal.TenantID, models.JobType(req.Type), req.Payload, req.Priority, req.MaxAttempts)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

// GetHandler returns one job
func (h *JobHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	job, err := h.jobService.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ListHandler lists jobs with status/type filters
func (h *JobHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	jobs, err := h.jobService.List(r.Context(), principal, &interfaces.JobListOptions{
		Status: models.JobStatus(r.URL.Query().Get("status")),
		Type:   models.JobType(r.URL.Query().Get("type")),
		Limit:  intQuery(r, "limit", 50),
		Offset: intQuery(r, "offset", 0),
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "count": len(jobs)})
}

// CancelHandler cancels a queued or running job
func (h *JobHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	job, err := h.jobService.Cancel(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// RetryHandler re-enqueues a failed job
func (h *JobHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	job, err := h.jobService.Retry(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DeleteHandler removes a terminal job
func (h *JobHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if err := h.jobService.Delete(r.Context(), principal, r.PathValue("id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// RunSyncHandler runs a job inline (debugging surface)
func (h *JobHandler) RunSyncHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var req struct {
		Type    string                 `json:"type" validate:"required"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	job, err := h.jobService.RunSync(r.Context(), principal, models.JobType(req.Type), req.Payload)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ProcessNextHandler claims and runs one queued job; serverless cron drivers
// call it repeatedly
func (h *JobHandler) ProcessNextHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := MustPrincipal(w, r); !ok {
		return
	}
	hostname, _ := os.Hostname()
	processed, err := h.jobService.ProcessNext(r.Context(), hostname+":http")
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"processed": processed})
}

// RequeueStaleHandler re-enqueues running jobs whose worker lease expired
func (h *JobHandler) RequeueStaleHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}
	count, err := h.jobService.RequeueStaleJobs(r.Context(), time.Hour)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"requeued": count})
}

// CleanupHandler removes old terminal jobs
func (h *JobHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}
	count, err := h.jobService.CleanupOldJobs(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"removed": count})
}
