// Package extraction contains the per-format content extractors. Each
// extractor is pure: it consumes raw bytes and produces an
// ExtractionArtifact; persistence and queueing happen elsewhere.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Registry routes content types to extractors
type Registry struct {
	extractors []interfaces.Extractor
	logger     arbor.ILogger
}

// NewRegistry wires the built-in extractors. The PDF extractor prefers the
// remote service when keys are configured and falls back to the local one.
func NewRegistry(cfg *common.ExtractionConfig, ocr interfaces.OCRProvider, logger arbor.ILogger) *Registry {
	if ocr == nil {
		ocr = NoopOCR{}
	}

	var remote *LovePDFClient
	if cfg.LovePDFPublicKey != "" && cfg.LovePDFSecretKey != "" {
		remote = NewLovePDFClient(cfg.LovePDFBaseURL, cfg.LovePDFPublicKey, cfg.LovePDFSecretKey, logger)
	}

	return &Registry{
		extractors: []interfaces.Extractor{
			NewPDFExtractor(remote, cfg.ExtractImages, logger),
			NewTextExtractor(logger),
			NewCSVExtractor(logger),
			NewExcelExtractor(logger),
			NewImageExtractor(ocr, logger),
		},
		logger: logger,
	}
}

// ExtractorFor returns the extractor advertising the given content type
func (r *Registry) ExtractorFor(contentType string) (interfaces.Extractor, error) {
	for _, e := range r.extractors {
		if e.CanHandle(contentType) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no extractor for content type %q", contentType)
}

// Extract runs the matching extractor and stamps the artifact with extractor
// identity and content counts
func (r *Registry) Extract(ctx context.Context, data []byte, filename, contentType, workDir string) (*models.ExtractionArtifact, error) {
	extractor, err := r.ExtractorFor(contentType)
	if err != nil {
		return nil, err
	}

	artifact, err := extractor.Extract(ctx, data, filename, contentType, workDir)
	if err != nil {
		return nil, fmt.Errorf("%s extraction failed: %w", extractor.Name(), err)
	}

	artifact.ExtractorName = extractor.Name()
	artifact.ExtractorVersion = extractor.Version()
	if artifact.Text != "" {
		artifact.CharCount = len(artifact.Text)
		artifact.WordCount = len(strings.Fields(artifact.Text))
	}

	r.logger.Debug().
		Str("extractor", extractor.Name()).
		Str("filename", filename).
		Int("char_count", artifact.CharCount).
		Int("tables", len(artifact.Tables)).
		Int("images", len(artifact.Images)).
		Msg("Extraction completed")
	return artifact, nil
}

// SupportedContentTypes lists every content type some extractor handles
func (r *Registry) SupportedContentTypes() []string {
	var types []string
	for _, e := range r.extractors {
		types = append(types, e.SupportedContentTypes()...)
	}
	return types
}

// matchesContentType is the shared content-type check used by extractors
func matchesContentType(supported []string, contentType string) bool {
	// Parameters like "; charset=utf-8" are ignored
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, s := range supported {
		if strings.ToLower(s) == contentType {
			return true
		}
	}
	return false
}
