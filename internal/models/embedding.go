package models

import (
	"time"
)

// EmbeddingChunk is a vector attached to either a span or a free-text chunk
// of a version. Every chunk keeps a back-reference to its source so search
// always returns a citation; raw vectors are never exposed over the API.
type EmbeddingChunk struct {
	ID                string `json:"id" badgerhold:"key"`
	TenantID          string `json:"tenant_id" badgerhold:"index"`
	DocumentVersionID string `json:"document_version_id" badgerhold:"index"`

	// Set when the chunk embeds a span; empty for free-text chunks
	SpanID string `json:"span_id,omitempty" badgerhold:"index"`

	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`

	Embedding []float32 `json:"embedding"`

	CharStart int `json:"char_start,omitempty"`
	CharEnd   int `json:"char_end,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
