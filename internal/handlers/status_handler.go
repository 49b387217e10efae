package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
)

// StatusHandler serves liveness, readiness and the dependency breakdown
type StatusHandler struct {
	versionStorage interfaces.VersionStorage
	vectorIndex    interfaces.VectorIndex
	logger         arbor.ILogger
	startedAt      time.Time
}

// NewStatusHandler creates a status handler
func NewStatusHandler(versionStorage interfaces.VersionStorage, vectorIndex interfaces.VectorIndex, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		versionStorage: versionStorage,
		vectorIndex:    vectorIndex,
		logger:         logger,
		startedAt:      time.Now(),
	}
}

// LivenessHandler is a static OK
func (h *StatusHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// ReadinessHandler verifies the database answers
func (h *StatusHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.versionStorage.CountVersionsByExtractionStatus(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

// HealthHandler reports the full dependency breakdown plus pipeline depths
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	deps := map[string]interface{}{}

	counts, err := h.versionStorage.CountVersionsByExtractionStatus(r.Context())
	if err != nil {
		deps["database"] = map[string]interface{}{"status": "down", "error": err.Error()}
	} else {
		queue := map[string]int{}
		for status, count := range counts {
			queue[string(status)] = count
		}
		deps["database"] = map[string]interface{}{"status": "up", "queue": queue}
	}

	vectorStatus := "disabled"
	if h.vectorIndex != nil && h.vectorIndex.Available() {
		vectorStatus = "up"
	}
	deps["vector_index"] = map[string]interface{}{"status": vectorStatus}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      common.GetVersion(),
		"uptime_secs":  int(time.Since(h.startedAt).Seconds()),
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}
