package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/services/evidence"
)

// EvidenceHandler serves span/claim/metric CRUD and evidence packs
type EvidenceHandler struct {
	evidenceService *evidence.Service
	logger          arbor.ILogger
}

// NewEvidenceHandler creates an evidence handler
func NewEvidenceHandler(evidenceService *evidence.Service, logger arbor.ILogger) *EvidenceHandler {
	return &EvidenceHandler{evidenceService: evidenceService, logger: logger}
}

// CreateSpanHandler persists a caller-authored span
func (h *EvidenceHandler) CreateSpanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var req struct {
		VersionID   string          `json:"version_id" validate:"required"`
		Locator     models.Locator  `json:"locator" validate:"required"`
		SpanType    models.SpanType `json:"span_type"`
		TextContent string          `json:"text_content" validate:"required"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	span, err := h.evidenceService.CreateSpan(r.Context(), principal, req.VersionID, req.Locator, req.SpanType, req.TextContent)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, span)
}

// CreateClaimHandler persists a caller-authored claim
func (h *EvidenceHandler) CreateClaimHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var claim models.Claim
	if err := DecodeJSON(r, &claim); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	created, err := h.evidenceService.CreateClaim(r.Context(), principal, &claim)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// CreateMetricHandler persists a caller-authored metric
func (h *EvidenceHandler) CreateMetricHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var metric models.Metric
	if err := DecodeJSON(r, &metric); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	created, err := h.evidenceService.CreateMetric(r.Context(), principal, &metric)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// GetSpanHandler returns one span
func (h *EvidenceHandler) GetSpanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	span, err := h.evidenceService.GetSpan(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, span)
}

// ListSpansHandler lists a version's spans
func (h *EvidenceHandler) ListSpansHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	versionID := r.URL.Query().Get("version_id")
	if versionID == "" {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "version_id query parameter is required")
		return
	}
	list, err := h.evidenceService.ListSpans(r.Context(), principal, versionID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"spans": list, "count": len(list)})
}

// DeleteSpanHandler removes a span
func (h *EvidenceHandler) DeleteSpanHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeDelete) {
		return
	}
	if err := h.evidenceService.DeleteSpan(r.Context(), principal, r.PathValue("id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// GetClaimHandler returns one claim
func (h *EvidenceHandler) GetClaimHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	claim, err := h.evidenceService.GetClaim(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, claim)
}

// UpdateClaimHandler edits a claim
func (h *EvidenceHandler) UpdateClaimHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var claim models.Claim
	if err := DecodeJSON(r, &claim); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	claim.ID = r.PathValue("id")
	if err := h.evidenceService.UpdateClaim(r.Context(), principal, &claim); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, claim)
}

// DeleteClaimHandler removes a claim
func (h *EvidenceHandler) DeleteClaimHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeDelete) {
		return
	}
	if err := h.evidenceService.DeleteClaim(r.Context(), principal, r.PathValue("id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// GetMetricHandler returns one metric
func (h *EvidenceHandler) GetMetricHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	metric, err := h.evidenceService.GetMetric(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, metric)
}

// UpdateMetricHandler edits a metric
func (h *EvidenceHandler) UpdateMetricHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var metric models.Metric
	if err := DecodeJSON(r, &metric); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	metric.ID = r.PathValue("id")
	if err := h.evidenceService.UpdateMetric(r.Context(), principal, &metric); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, metric)
}

// DeleteMetricHandler removes a metric
func (h *EvidenceHandler) DeleteMetricHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeDelete) {
		return
	}
	if err := h.evidenceService.DeleteMetric(r.Context(), principal, r.PathValue("id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// CreatePackHandler creates an evidence pack
func (h *EvidenceHandler) CreatePackHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var req struct {
		Name        string   `json:"name" validate:"required"`
		Description string   `json:"description"`
		ProjectID   string   `json:"project_id"`
		SpanIDs     []string `json:"span_ids"`
		ClaimIDs    []string `json:"claim_ids"`
		MetricIDs   []string `json:"metric_ids"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	pack, err := h.evidenceService.CreatePack(r.Context(), principal, req.Name, req.Description, req.ProjectID, req.SpanIDs, req.ClaimIDs, req.MetricIDs)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, pack)
}

// ListPacksHandler lists evidence packs
func (h *EvidenceHandler) ListPacksHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	packs, err := h.evidenceService.ListPacks(r.Context(), principal, &interfaces.ListOptions{
		Limit:  intQuery(r, "limit", 50),
		Offset: intQuery(r, "offset", 0),
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"packs": packs, "count": len(packs)})
}

// GetPackHandler returns one evidence pack
func (h *EvidenceHandler) GetPackHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	pack, err := h.evidenceService.GetPack(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, pack)
}

// UpdatePackHandler replaces pack membership
func (h *EvidenceHandler) UpdatePackHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}
	var pack models.EvidencePack
	if err := DecodeJSON(r, &pack); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	pack.ID = r.PathValue("id")
	if err := h.evidenceService.UpdatePack(r.Context(), principal, &pack); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, pack)
}

// DeletePackHandler removes an evidence pack
func (h *EvidenceHandler) DeletePackHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeDelete) {
		return
	}
	if err := h.evidenceService.DeletePack(r.Context(), principal, r.PathValue("id")); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// ExportPackHandler materializes a pack to its structured export tree
func (h *EvidenceHandler) ExportPackHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	export, err := h.evidenceService.ExportPack(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, export)
}
