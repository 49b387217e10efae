package spans

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/indicium/internal/models"
)

// ImageSpanGenerator produces exactly one figure span per image: standalone
// uploads and images embedded in PDFs alike.
type ImageSpanGenerator struct{}

// NewImageSpanGenerator creates an image span generator
func NewImageSpanGenerator() *ImageSpanGenerator {
	return &ImageSpanGenerator{}
}

func (g *ImageSpanGenerator) Name() string { return "image" }

func (g *ImageSpanGenerator) SupportedContentTypes() []string {
	return []string{
		"image/png", "image/jpeg", "image/gif",
		"image/webp", "image/tiff", "image/bmp",
	}
}

func (g *ImageSpanGenerator) CanHandle(contentType string) bool {
	return matchesContentType(g.SupportedContentTypes(), contentType)
}

func (g *ImageSpanGenerator) GenerateSpans(artifact *models.ExtractionArtifact) []models.SpanData {
	var spans []models.SpanData

	if len(artifact.Images) == 0 {
		// Standalone image whose extractor recorded only text + metadata
		if span, ok := g.standaloneSpan(artifact); ok {
			spans = append(spans, span)
		}
		return spans
	}

	for _, img := range artifact.Images {
		filename := fmt.Sprintf("image_%d", img.ImageIndex)
		if img.StoragePath != "" {
			filename = filepath.Base(img.StoragePath)
		} else if name, ok := artifact.Metadata["filename"].(string); ok && len(artifact.Images) == 1 {
			filename = name
		}

		text := buildImageText(filename, img.OCRText, img.Width, img.Height, img.PageNumber)
		locator := models.ImageLocator(filename, img.ImageIndex, img.Width, img.Height, img.PageNumber)

		spans = append(spans, models.NewSpanData(text, locator, models.SpanTypeFigure, map[string]interface{}{
			"filename":     filename,
			"content_type": img.ContentType,
			"width":        img.Width,
			"height":       img.Height,
			"page_number":  img.PageNumber,
			"storage_path": img.StoragePath,
			"has_ocr":      img.OCRText != "",
		}))
	}
	return spans
}

func (g *ImageSpanGenerator) standaloneSpan(artifact *models.ExtractionArtifact) (models.SpanData, bool) {
	filename, _ := artifact.Metadata["filename"].(string)
	if filename == "" {
		filename = "image"
	}
	width := metaInt(artifact.Metadata, "width")
	height := metaInt(artifact.Metadata, "height")

	text := buildImageText(filename, artifact.Text, width, height, 0)
	locator := models.ImageLocator(filename, 0, width, height, 0)

	return models.NewSpanData(text, locator, models.SpanTypeFigure, map[string]interface{}{
		"filename": filename,
		"width":    width,
		"height":   height,
		"has_ocr":  artifact.Text != "",
	}), true
}

// buildImageText summarizes the image for citation display
func buildImageText(filename, ocrText string, width, height, pageNumber int) string {
	parts := []string{fmt.Sprintf("[Image: %s]", filename)}
	if width > 0 && height > 0 {
		parts = append(parts, fmt.Sprintf("Dimensions: %dx%d", width, height))
	}
	if pageNumber > 0 {
		parts = append(parts, fmt.Sprintf("Source page: %d", pageNumber))
	}
	if ocrText != "" {
		parts = append(parts, "", "OCR Text:", ocrText)
	}
	return strings.Join(parts, "\n")
}

func metaInt(metadata map[string]interface{}, key string) int {
	switch v := metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
