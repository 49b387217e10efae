package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/indicium/internal/models"
)

// Message is the only structure that goes onto the queue. The job row is the
// source of truth; the message just routes the worker to it.
type Message struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	Type     string `json:"type"`
}

// ToJSON serializes the message for queue storage
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal queue message: %w", err)
	}
	return data, nil
}

// MessageFromJSON deserializes a queue message
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue message: %w", err)
	}
	return &msg, nil
}

// ProgressFunc reports handler progress onto the job row
type ProgressFunc func(progress int, message string)

// Handler executes one job type. The payload passed in is already filtered
// to the handler's allowed parameter names.
type Handler func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error)

// handlerSpec pairs a handler with its allowed parameter names. Dispatch
// filters the payload to this set, so callers can attach ancillary fields
// without breaking handlers.
type handlerSpec struct {
	handler Handler
	params  []string
}
