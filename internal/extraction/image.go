package extraction

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// ImageExtractor records image metadata and runs the pluggable OCR provider.
// Metadata is always captured; OCR failure is a warning, never a failure.
type ImageExtractor struct {
	ocr    interfaces.OCRProvider
	logger arbor.ILogger
}

// NewImageExtractor creates a new image extractor
func NewImageExtractor(ocr interfaces.OCRProvider, logger arbor.ILogger) *ImageExtractor {
	return &ImageExtractor{ocr: ocr, logger: logger}
}

func (e *ImageExtractor) Name() string    { return "image" }
func (e *ImageExtractor) Version() string { return "1.0.0" }

func (e *ImageExtractor) SupportedContentTypes() []string {
	return []string{
		"image/png", "image/jpeg", "image/gif",
		"image/webp", "image/tiff", "image/bmp",
	}
}

func (e *ImageExtractor) CanHandle(contentType string) bool {
	return matchesContentType(e.SupportedContentTypes(), contentType)
}

func (e *ImageExtractor) Extract(ctx context.Context, data []byte, filename, contentType string, workDir string) (*models.ExtractionArtifact, error) {
	start := time.Now()
	artifact := &models.ExtractionArtifact{}

	meta := map[string]interface{}{
		"filename":     filename,
		"content_type": contentType,
		"byte_size":    len(data),
	}

	width, height := 0, 0
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
		meta["width"] = width
		meta["height"] = height
		meta["format"] = format
	} else {
		artifact.Warnings = append(artifact.Warnings, fmt.Sprintf("failed to decode image dimensions: %v", err))
	}

	ocrText := ""
	if e.ocr != nil {
		text, err := e.ocr.ExtractText(ctx, data, contentType)
		if err != nil {
			artifact.Warnings = append(artifact.Warnings, fmt.Sprintf("ocr failed: %v", err))
		} else {
			ocrText = text
		}
	}

	artifact.Text = ocrText
	artifact.Images = []models.ImageData{{
		ImageIndex:  0,
		ContentType: contentType,
		Width:       width,
		Height:      height,
		OCRText:     ocrText,
	}}
	artifact.Metadata = meta
	artifact.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	return artifact, nil
}

// NoopOCR is the default OCR provider: it extracts nothing
type NoopOCR struct{}

func (NoopOCR) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	return "", nil
}
