package spans

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Service routes artifacts to span generators and persists the results.
// Persistence upserts on (version, span_hash): rebuilding spans over an
// unchanged artifact is a no-op.
type Service struct {
	generators  []interfaces.SpanGenerator
	spanStorage interfaces.SpanStorage
	logger      arbor.ILogger
}

// NewService wires the built-in span generators
func NewService(spanStorage interfaces.SpanStorage, logger arbor.ILogger) *Service {
	return &Service{
		generators: []interfaces.SpanGenerator{
			NewCSVSpanGenerator(),
			NewExcelSpanGenerator(),
			NewImageSpanGenerator(),
			NewTextSpanGenerator(),
		},
		spanStorage: spanStorage,
		logger:      logger,
	}
}

// GeneratorFor returns the generator advertising the given content type
func (s *Service) GeneratorFor(contentType string) (interfaces.SpanGenerator, error) {
	for _, g := range s.generators {
		if g.CanHandle(contentType) {
			return g, nil
		}
	}
	return nil, fmt.Errorf("no span generator for content type %q", contentType)
}

// BuildSpans generates and persists spans for a version's artifact.
// Returns the stored spans plus how many were newly created.
func (s *Service) BuildSpans(ctx context.Context, version *models.DocumentVersion, contentType string, artifact *models.ExtractionArtifact) ([]*models.Span, int, error) {
	generator, err := s.GeneratorFor(contentType)
	if err != nil {
		return nil, 0, err
	}

	spanData := generator.GenerateSpans(artifact)

	stored := make([]*models.Span, 0, len(spanData))
	created := 0
	for _, data := range spanData {
		span := &models.Span{
			ID:                common.NewID(common.PrefixSpan),
			TenantID:          version.TenantID,
			DocumentVersionID: version.ID,
			TextContent:       data.TextContent,
			Locator:           data.Locator,
			SpanType:          data.SpanType,
			SpanHash:          data.SpanHash,
			Metadata:          data.Metadata,
		}
		result, isNew, err := s.spanStorage.UpsertSpan(ctx, span)
		if err != nil {
			return stored, created, fmt.Errorf("failed to persist span: %w", err)
		}
		if isNew {
			created++
		}
		stored = append(stored, result)
	}

	s.logger.Info().
		Str("version_id", version.ID).
		Str("generator", generator.Name()).
		Int("spans", len(stored)).
		Int("created", created).
		Msg("Spans built")
	return stored, created, nil
}
