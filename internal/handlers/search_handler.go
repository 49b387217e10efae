package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/services/search"
)

// SearchHandler serves global and project-scoped search
type SearchHandler struct {
	searchService *search.Service
	logger        arbor.ILogger
}

// NewSearchHandler creates a search handler
func NewSearchHandler(searchService *search.Service, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{searchService: searchService, logger: logger}
}

// SearchHandler runs a search across the tenant's documents
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}

	var req models.SearchRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := h.searchService.Search(r.Context(), principal, &req)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ProjectSearchHandler scopes the search to one project's documents
func (h *SearchHandler) ProjectSearchHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := MustPrincipal(w, r)
	if !ok {
		return
	}

	var req models.SearchRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	req.ProjectID = r.PathValue("project_id")

	result, err := h.searchService.Search(r.Context(), principal, &req)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
