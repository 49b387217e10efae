// Package handlers contains the HTTP handlers for the API surface.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/indicium/internal/auth"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// validate checks request DTO struct tags
var validate = validator.New()

// errorBody is the uniform non-2xx envelope
type errorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError writes the error envelope with the request id attached
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	details := map[string]interface{}{}
	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		details["request_id"] = requestID
	}
	WriteJSON(w, status, errorBody{Error: code, Message: message, Details: details})
}

// WriteServiceError maps service errors onto the envelope. Cross-tenant and
// missing entities both surface as 404 so existence is not leaked.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, interfaces.ErrConflict):
		WriteError(w, r, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		WriteError(w, r, http.StatusUnauthorized, "unauthenticated", "missing or invalid credentials")
	default:
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// DecodeJSON decodes and validates a request body
func DecodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// MustPrincipal reads the authenticated principal placed by the middleware.
// The auth middleware guarantees presence on API routes; the fallback 401
// covers misrouted handlers.
func MustPrincipal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		WriteError(w, r, http.StatusUnauthorized, "unauthenticated", "missing or invalid credentials")
		return models.Principal{}, false
	}
	return principal, true
}

// RequireScope enforces a scope on the principal
func RequireScope(w http.ResponseWriter, r *http.Request, principal models.Principal, scope string) bool {
	if !principal.HasScope(scope) && !principal.HasScope(models.ScopeAdmin) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "missing required scope: "+scope)
		return false
	}
	return true
}
