package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/queue"
	"github.com/ternarybob/indicium/internal/services/facts"
)

// ExtractionHandler serves fact extraction triggers, runs and results
type ExtractionHandler struct {
	runStorage     interfaces.RunStorage
	factStorage    interfaces.FactStorage
	qualityStorage interfaces.QualityStorage
	versionStorage interfaces.VersionStorage
	tenantStorage  interfaces.TenantStorage
	jobService     *queue.Service
	logger         arbor.ILogger
}

// NewExtractionHandler creates an extraction handler
func NewExtractionHandler(
	runStorage interfaces.RunStorage,
	factStorage interfaces.FactStorage,
	qualityStorage interfaces.QualityStorage,
	versionStorage interfaces.VersionStorage,
	tenantStorage interfaces.TenantStorage,
	jobService *queue.Service,
	logger arbor.ILogger,
) *ExtractionHandler {
	return &ExtractionHandler{
		runStorage:     runStorage,
		factStorage:    factStorage,
		qualityStorage: qualityStorage,
		versionStorage: versionStorage,
		tenantStorage:  tenantStorage,
		jobService:     jobService,
		logger:         logger,
	}
}

// extractionSettingsKey is where per-tenant extraction defaults live inside
// tenant settings
const extractionSettingsKey = "extraction"

// SettingsHandler returns the tenant's extraction defaults
func (h *ExtractionHandler) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	tenant, err := h.tenantStorage.GetTenant(r.Context(), principal.TenantID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	settings, _ := tenant.Settings[extractionSettingsKey].(map[string]interface{})
	if settings == nil {
		settings = map[string]interface{}{
			"profile_code":  "general",
			"default_level": 1,
		}
	}
	WriteJSON(w, http.StatusOK, settings)
}

// UpdateSettingsHandler replaces the tenant's extraction defaults
func (h *ExtractionHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	var settings map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if profile, ok := settings["profile_code"].(string); ok && profile != "" {
		if _, err := facts.VocabularyFor(profile); err != nil {
			WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}

	tenant, err := h.tenantStorage.GetTenant(r.Context(), principal.TenantID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if tenant.Settings == nil {
		tenant.Settings = map[string]interface{}{}
	}
	tenant.Settings[extractionSettingsKey] = settings
	if err := h.tenantStorage.UpdateTenant(r.Context(), tenant); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

// ProfilesHandler lists extraction profiles and levels
func (h *ExtractionHandler) ProfilesHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := MustPrincipal(w, r); !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"profiles":       facts.Profiles(),
		"levels":         []int{1, 2, 3, 4},
		"schema_version": facts.SchemaVersion,
		"vocab_version":  facts.VocabVersion,
	})
}

// TriggerHandler enqueues a multilevel fact extraction
func (h *ExtractionHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeWrite) {
		return
	}

	var req struct {
		VersionID            string `json:"version_id" validate:"required"`
		ProfileCode          string `json:"profile_code"`
		ProcessContext       string `json:"process_context"`
		Level                int    `json:"level" validate:"omitempty,min=1,max=4"`
		ComputeMissingLevels bool   `json:"compute_missing_levels"`
		Priority             int    `json:"priority"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	// Version must exist in this tenant before any job is queued
	if _, err := h.versionStorage.GetVersion(r.Context(), principal.TenantID, req.VersionID); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	// Duplicate active runs fail fast rather than at pickup time
	level := req.Level
	if level == 0 {
		level = 1
	}
	profile := req.ProfileCode
	if profile == "" {
		profile = "general"
	}
	if _, err := h.runStorage.ActiveRun(r.Context(), principal.TenantID, req.VersionID, profile, req.ProcessContext, level); err == nil {
		WriteError(w, r, http.StatusConflict, "conflict", "an active extraction run already exists for this version/profile/context/level")
		return
	} else if err != interfaces.ErrNotFound {
		WriteServiceError(w, r, err)
		return
	}

	job, err := h.jobService.Enqueue(r.Context(), principal.TenantID, models.JobTypeMultilevelExtract, map[string]interface{}{
		"version_id":             req.VersionID,
		"profile_code":           profile,
		"process_context":        req.ProcessContext,
		"level":                  level,
		"compute_missing_levels": req.ComputeMissingLevels,
	}, req.Priority, 3)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

// RunsHandler lists a version's extraction runs
func (h *ExtractionHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	runs, err := h.runStorage.ListRunsForVersion(r.Context(), principal.TenantID, r.PathValue("version_id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

// RunHandler returns one run
func (h *ExtractionHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	run, err := h.runStorage.GetRun(r.Context(), principal.TenantID, r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// FactsHandler lists a version's facts
func (h *ExtractionHandler) FactsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	versionID := r.PathValue("version_id")
	processContext := r.URL.Query().Get("process_context")

	claims, err := h.factStorage.ListClaimsForVersion(r.Context(), principal.TenantID, versionID, processContext)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	metrics, err := h.factStorage.ListMetricsForVersion(r.Context(), principal.TenantID, versionID, processContext)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	constraints, err := h.factStorage.ListConstraintsForVersion(r.Context(), principal.TenantID, versionID, processContext)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	risks, err := h.factStorage.ListRisksForVersion(r.Context(), principal.TenantID, versionID, processContext)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"claims":      claims,
		"metrics":     metrics,
		"constraints": constraints,
		"risks":       risks,
	})
}

// QualityHandler lists a version's conflicts and open questions
func (h *ExtractionHandler) QualityHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	versionID := r.PathValue("version_id")

	conflicts, err := h.qualityStorage.ListConflictsForVersion(r.Context(), principal.TenantID, versionID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	questions, err := h.qualityStorage.ListQuestionsForVersion(r.Context(), principal.TenantID, versionID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conflicts":      conflicts,
		"open_questions": questions,
	})
}
