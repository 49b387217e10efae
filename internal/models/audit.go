package models

import (
	"time"
)

// AuditLog is an append-only, tenant-scoped record of an action. Produced by
// the core; never mutated.
type AuditLog struct {
	ID       string `json:"id" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	Action     string `json:"action"`
	ActorID    string `json:"actor_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty" badgerhold:"index"`

	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	Details map[string]interface{} `json:"details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
