package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// spanBatchSize is how many spans are embedded per vendor call
const spanBatchSize = 50

// SpanEmbeddingService embeds the text-bearing spans of a version. Table and
// figure spans are skipped, and a span with an existing embedding is not
// regenerated unless the caller asks for a reprocess.
type SpanEmbeddingService struct {
	client           interfaces.EmbeddingClient
	spanStorage      interfaces.SpanStorage
	embeddingStorage interfaces.EmbeddingStorage
	vectorIndex      interfaces.VectorIndex
	logger           arbor.ILogger
}

// NewSpanEmbeddingService creates a span embedding service. vectorIndex may
// be nil when no index is configured.
func NewSpanEmbeddingService(
	client interfaces.EmbeddingClient,
	spanStorage interfaces.SpanStorage,
	embeddingStorage interfaces.EmbeddingStorage,
	vectorIndex interfaces.VectorIndex,
	logger arbor.ILogger,
) *SpanEmbeddingService {
	return &SpanEmbeddingService{
		client:           client,
		spanStorage:      spanStorage,
		embeddingStorage: embeddingStorage,
		vectorIndex:      vectorIndex,
		logger:           logger,
	}
}

// EmbedSpansForVersion embeds every embeddable span of the version. With
// reprocess, existing embeddings are deleted first.
func (s *SpanEmbeddingService) EmbedSpansForVersion(ctx context.Context, version *models.DocumentVersion, reprocess bool) ([]*models.EmbeddingChunk, error) {
	allSpans, err := s.spanStorage.ListSpansForVersion(ctx, version.TenantID, version.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load spans: %w", err)
	}

	embeddable := make([]*models.Span, 0, len(allSpans))
	for _, span := range allSpans {
		if span.SpanType.IsEmbeddable() && strings.TrimSpace(span.TextContent) != "" {
			embeddable = append(embeddable, span)
		}
	}
	if len(embeddable) == 0 {
		s.logger.Info().Str("version_id", version.ID).Msg("No embeddable spans found")
		return nil, nil
	}

	if reprocess {
		deleted, err := s.embeddingStorage.DeleteChunksForVersion(ctx, version.TenantID, version.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete existing embeddings: %w", err)
		}
		s.logger.Info().
			Str("version_id", version.ID).
			Int("deleted", deleted).
			Msg("Deleted existing embeddings for reprocess")
	}

	var chunks []*models.EmbeddingChunk
	for start := 0; start < len(embeddable); start += spanBatchSize {
		end := start + spanBatchSize
		if end > len(embeddable) {
			end = len(embeddable)
		}
		batch, err := s.embedBatch(ctx, version, embeddable[start:end], len(chunks))
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, batch...)
	}

	s.logger.Info().
		Str("version_id", version.ID).
		Int("chunks", len(chunks)).
		Int("tokens_used", int(s.client.TokensUsed())).
		Msg("Span embedding completed")
	return chunks, nil
}

func (s *SpanEmbeddingService) embedBatch(ctx context.Context, version *models.DocumentVersion, batch []*models.Span, chunkOffset int) ([]*models.EmbeddingChunk, error) {
	// Skip spans that already have an embedding
	pending := make([]*models.Span, 0, len(batch))
	for _, span := range batch {
		if _, err := s.embeddingStorage.GetChunkBySpan(ctx, version.TenantID, span.ID); err == nil {
			continue
		} else if err != interfaces.ErrNotFound {
			return nil, fmt.Errorf("failed to check existing embedding: %w", err)
		}
		pending = append(pending, span)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	texts := make([]string, len(pending))
	for i, span := range pending {
		texts[i] = span.TextContent
	}

	vectors, err := s.client.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed spans: %w", err)
	}

	chunks := make([]*models.EmbeddingChunk, 0, len(pending))
	for i, span := range pending {
		chunk := &models.EmbeddingChunk{
			ID:                common.NewID(common.PrefixChunk),
			TenantID:          version.TenantID,
			DocumentVersionID: version.ID,
			SpanID:            span.ID,
			ChunkIndex:        chunkOffset + i,
			Text:              span.TextContent,
			Embedding:         vectors[i],
			Metadata: map[string]interface{}{
				"span_type": string(span.SpanType),
				"span_hash": span.SpanHash,
				"locator":   span.Locator,
			},
		}
		if span.Locator.Type == models.LocatorTypeText {
			chunk.CharStart = span.Locator.OffsetStart
			chunk.CharEnd = span.Locator.OffsetEnd
		}
		if err := s.embeddingStorage.SaveChunk(ctx, chunk); err != nil {
			return chunks, fmt.Errorf("failed to save embedding chunk: %w", err)
		}
		if s.vectorIndex != nil && s.vectorIndex.Available() {
			if err := s.vectorIndex.Upsert(ctx, version.TenantID, chunk); err != nil {
				// Index absence or failure degrades search, it does not fail
				// the pipeline
				s.logger.Warn().Err(err).Str("chunk_id", chunk.ID).Msg("Vector index upsert failed")
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
