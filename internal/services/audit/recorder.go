// Package audit emits append-only audit events for tenant actions.
package audit

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Event describes one auditable action
type Event struct {
	TenantID   string
	Action     string
	ActorID    string
	EntityType string
	EntityID   string
	RequestID  string
	IPAddress  string
	UserAgent  string
	Details    map[string]interface{}
}

// Recorder writes audit events. Failures are logged, never propagated: an
// audit write must not fail the action it records.
type Recorder struct {
	storage interfaces.AuditStorage
	logger  arbor.ILogger
}

// NewRecorder creates an audit recorder
func NewRecorder(storage interfaces.AuditStorage, logger arbor.ILogger) *Recorder {
	return &Recorder{storage: storage, logger: logger}
}

// Record appends one audit entry
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.TenantID == "" {
		return
	}
	entry := &models.AuditLog{
		ID:         common.NewID(common.PrefixAudit),
		TenantID:   event.TenantID,
		Action:     event.Action,
		ActorID:    event.ActorID,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		RequestID:  event.RequestID,
		IPAddress:  event.IPAddress,
		UserAgent:  event.UserAgent,
		Details:    event.Details,
	}
	if err := r.storage.Append(ctx, entry); err != nil {
		r.logger.Warn().Err(err).Str("action", event.Action).Msg("Failed to write audit entry")
	}
}
