// Package spans contains the per-format span generators. A generator
// consumes an ExtractionArtifact and produces locator-tagged SpanData with
// stable content hashes; persistence is an upsert keyed on
// (version, span_hash) so regeneration is idempotent.
package spans

import (
	"regexp"
	"strings"

	"github.com/ternarybob/indicium/internal/models"
)

// Text span sizing defaults
const (
	DefaultMinSpanSize = 500
	DefaultMaxSpanSize = 1000
	DefaultOverlap     = 100
)

var (
	sentenceEndPattern = regexp.MustCompile(`[.!?]\s+`)
	paragraphPattern   = regexp.MustCompile(`\n\s*\n`)
)

// TextSpanGenerator slides a window over extracted text, preferring breaks
// at paragraph, then sentence, then word boundaries.
type TextSpanGenerator struct {
	MinSpanSize int
	MaxSpanSize int
	OverlapSize int
}

// NewTextSpanGenerator creates a text span generator with default sizing
func NewTextSpanGenerator() *TextSpanGenerator {
	return &TextSpanGenerator{
		MinSpanSize: DefaultMinSpanSize,
		MaxSpanSize: DefaultMaxSpanSize,
		OverlapSize: DefaultOverlap,
	}
}

func (g *TextSpanGenerator) Name() string { return "text" }

func (g *TextSpanGenerator) SupportedContentTypes() []string {
	return []string{"application/pdf", "text/plain", "text/markdown", "text/x-markdown"}
}

func (g *TextSpanGenerator) CanHandle(contentType string) bool {
	return matchesContentType(g.SupportedContentTypes(), contentType)
}

func (g *TextSpanGenerator) GenerateSpans(artifact *models.ExtractionArtifact) []models.SpanData {
	text := artifact.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pageBreaks := pageBreaksFromMetadata(artifact.Metadata)

	var spans []models.SpanData
	textLength := len(text)
	position := 0
	lastStart := -1

	for position < textLength {
		end := position + g.MaxSpanSize
		if end > textLength {
			end = textLength
		}
		if end < textLength {
			end = g.findBreakPoint(text, position, end)
		}

		spanText := strings.TrimSpace(text[position:end])
		if spanText != "" && len(spanText) >= g.MinSpanSize/2 {
			locator := models.TextLocator(position, end, pageHintFor(position, pageBreaks))
			spans = append(spans, models.NewSpanData(spanText, locator, models.SpanTypeText, map[string]interface{}{
				"char_count": len(spanText),
				"word_count": len(strings.Fields(spanText)),
			}))
			lastStart = position
		}

		if end >= textLength {
			break
		}

		// Overlap, but successive spans never share a start offset
		position = end - g.OverlapSize
		if position <= lastStart {
			position = end
		}
	}
	return spans
}

// findBreakPoint searches [start+min, maxEnd) for the best break:
// paragraph > sentence > word > hard cut
func (g *TextSpanGenerator) findBreakPoint(text string, start, maxEnd int) int {
	searchStart := start + g.MinSpanSize
	if searchStart >= maxEnd {
		return maxEnd
	}
	searchText := text[searchStart:maxEnd]

	if m := paragraphPattern.FindStringIndex(searchText); m != nil {
		return searchStart + m[1]
	}

	if matches := sentenceEndPattern.FindAllStringIndex(searchText, -1); len(matches) > 0 {
		return searchStart + matches[len(matches)-1][1]
	}

	if lastSpace := strings.LastIndex(text[searchStart:maxEnd], " "); lastSpace > 0 {
		return searchStart + lastSpace + 1
	}

	return maxEnd
}

// pageBreaksFromMetadata reads the page_breaks offsets the PDF extractor
// records; tolerates both []int and the []interface{} json decodes to
func pageBreaksFromMetadata(metadata map[string]interface{}) []int {
	if metadata == nil {
		return nil
	}
	raw, ok := metadata["page_breaks"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []int:
		return v
	case []interface{}:
		breaks := make([]int, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int:
				breaks = append(breaks, n)
			case float64:
				breaks = append(breaks, int(n))
			}
		}
		return breaks
	}
	return nil
}

// pageHintFor returns the 1-indexed page containing the offset, 0 when
// unknown
func pageHintFor(position int, pageBreaks []int) int {
	if len(pageBreaks) == 0 {
		return 0
	}
	page := 1
	for _, breakPos := range pageBreaks {
		if position >= breakPos {
			page++
		} else {
			break
		}
	}
	return page
}

func matchesContentType(supported []string, contentType string) bool {
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
