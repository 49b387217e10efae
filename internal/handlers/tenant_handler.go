package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/services/audit"
	"github.com/ternarybob/indicium/internal/services/tenants"
)

// TenantHandler serves tenant management and API key issuance. All routes
// require the admin scope.
type TenantHandler struct {
	tenantService *tenants.Service
	auditor       *audit.Recorder
	logger        arbor.ILogger
}

// NewTenantHandler creates a tenant handler
func NewTenantHandler(tenantService *tenants.Service, auditor *audit.Recorder, logger arbor.ILogger) *TenantHandler {
	return &TenantHandler{tenantService: tenantService, auditor: auditor, logger: logger}
}

// CreateHandler creates a tenant
func (h *TenantHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}

	var req struct {
		Name       string `json:"name" validate:"required"`
		Slug       string `json:"slug" validate:"required"`
		OwnerEmail string `json:"owner_email" validate:"required,email"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	tenant, err := h.tenantService.Create(r.Context(), req.Name, req.Slug, req.OwnerEmail)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, tenant)
}

// ListHandler lists tenants
func (h *TenantHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}
	list, err := h.tenantService.List(r.Context(), &interfaces.ListOptions{
		Limit:  intQuery(r, "limit", 50),
		Offset: intQuery(r, "offset", 0),
	})
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"tenants": list, "count": len(list)})
}

// GetHandler returns one tenant
func (h *TenantHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}
	tenant, err := h.tenantService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tenant)
}

// UpdateHandler edits tenant details or suspends the tenant
func (h *TenantHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}

	var req struct {
		Name         string `json:"name"`
		BillingEmail string `json:"billing_email"`
		Suspend      bool   `json:"suspend"`
		SuspendReason string `json:"suspend_reason"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	tenantID := r.PathValue("id")
	if req.Suspend {
		if err := h.tenantService.Suspend(r.Context(), tenantID, req.SuspendReason); err != nil {
			WriteServiceError(w, r, err)
			return
		}
	}

	tenant, err := h.tenantService.Get(r.Context(), tenantID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if req.Name != "" {
		tenant.Name = req.Name
	}
	if req.BillingEmail != "" {
		tenant.BillingEmail = req.BillingEmail
	}
	if err := h.tenantService.Update(r.Context(), tenant); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tenant)
}

// IssueKeyHandler issues an API key; the plaintext appears in this response
// only
func (h *TenantHandler) IssueKeyHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}

	var req struct {
		Name      string     `json:"name" validate:"required"`
		Scopes    []string   `json:"scopes"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	tenantID := r.PathValue("id")
	key, plaintext, err := h.tenantService.IssueKey(r.Context(), tenantID, req.Name, req.Scopes, principal.ActorID, req.ExpiresAt)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	h.auditor.Record(r.Context(), audit.Event{
		TenantID:   tenantID,
		Action:     "api_key.issue",
		ActorID:    principal.ActorID,
		EntityType: "api_key",
		EntityID:   key.ID,
		RequestID:  r.Header.Get("X-Request-ID"),
	})

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"key":       key,
		"plaintext": plaintext,
	})
}

// RevokeKeyHandler deactivates an API key
func (h *TenantHandler) RevokeKeyHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}
	tenantID := r.PathValue("id")
	keyID := r.PathValue("key_id")
	if err := h.tenantService.RevokeKey(r.Context(), tenantID, keyID, principal.ActorID); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	h.auditor.Record(r.Context(), audit.Event{
		TenantID:   tenantID,
		Action:     "api_key.revoke",
		ActorID:    principal.ActorID,
		EntityType: "api_key",
		EntityID:   keyID,
		RequestID:  r.Header.Get("X-Request-ID"),
	})
	WriteJSON(w, http.StatusOK, map[string]interface{}{"revoked": true})
}

// ListKeysHandler lists a tenant's API keys
func (h *TenantHandler) ListKeysHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}
	if !RequireScope(w, r, principal, models.ScopeAdmin) {
		return
	}
	keys, err := h.tenantService.ListKeys(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"keys": keys, "count": len(keys)})
}
