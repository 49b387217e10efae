package interfaces

import (
	"context"

	"github.com/ternarybob/indicium/internal/models"
)

// Extractor turns raw bytes into an ExtractionArtifact. Extractors are pure:
// they never touch the database or the queue.
type Extractor interface {
	Name() string
	Version() string
	SupportedContentTypes() []string
	CanHandle(contentType string) bool
	Extract(ctx context.Context, data []byte, filename, contentType string, workDir string) (*models.ExtractionArtifact, error)
}

// OCRProvider extracts text from image bytes. The default implementation is
// a no-op; a real provider plugs in behind this interface.
type OCRProvider interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// SpanGenerator segments an artifact into locator-tagged spans
type SpanGenerator interface {
	Name() string
	SupportedContentTypes() []string
	CanHandle(contentType string) bool
	GenerateSpans(artifact *models.ExtractionArtifact) []models.SpanData
}

// EmbeddingClient turns texts into equal-length vectors. Empty strings map
// to zero vectors at the same index.
type EmbeddingClient interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	TokensUsed() int64
}

// Message is a chat message for the LLM provider
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// LLMService is the narrow text-to-text interface over the LLM vendor
type LLMService interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	ProviderName() string
}

// VectorIndex is the optional ANN index over embedding chunks. Absence of an
// index is a functional degradation (brute-force scan), not a failure.
type VectorIndex interface {
	Upsert(ctx context.Context, tenantID string, chunk *models.EmbeddingChunk) error
	Delete(ctx context.Context, tenantID string, chunkIDs []string) error
	// Query returns chunk IDs with cosine similarities, best first.
	Query(ctx context.Context, tenantID string, vector []float32, limit int) ([]VectorHit, error)
	Available() bool
}

// VectorHit is one vector-index match
type VectorHit struct {
	ChunkID    string
	Similarity float64
}
