package spans

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/models"
)

func textArtifact(text string, metadata map[string]interface{}) *models.ExtractionArtifact {
	return &models.ExtractionArtifact{Text: text, Metadata: metadata}
}

func TestTextSpansEmptyInput(t *testing.T) {
	g := NewTextSpanGenerator()
	assert.Empty(t, g.GenerateSpans(textArtifact("", nil)))
	assert.Empty(t, g.GenerateSpans(textArtifact("   \n  ", nil)))
}

func TestTextSpansShortInput(t *testing.T) {
	g := NewTextSpanGenerator()
	text := strings.Repeat("The quarterly report shows solid growth. ", 8) // ~330 chars
	spans := g.GenerateSpans(textArtifact(text, nil))
	require.Len(t, spans, 1)
	assert.Equal(t, models.SpanTypeText, spans[0].SpanType)
	assert.Equal(t, 0, spans[0].Locator.OffsetStart)
}

func TestTextSpansSizing(t *testing.T) {
	g := NewTextSpanGenerator()
	sentence := "Revenue increased across all segments this quarter. "
	text := strings.Repeat(sentence, 100) // ~5200 chars

	spans := g.GenerateSpans(textArtifact(text, nil))
	require.Greater(t, len(spans), 3)

	for _, span := range spans {
		assert.LessOrEqual(t, span.Locator.OffsetEnd-span.Locator.OffsetStart, g.MaxSpanSize)
		assert.NotEmpty(t, span.SpanHash)
	}
}

func TestTextSpansDistinctStartOffsets(t *testing.T) {
	g := NewTextSpanGenerator()
	text := strings.Repeat("Margins held steady despite input cost pressure. ", 120)

	spans := g.GenerateSpans(textArtifact(text, nil))
	require.Greater(t, len(spans), 1)

	seen := map[int]bool{}
	for _, span := range spans {
		assert.False(t, seen[span.Locator.OffsetStart], "duplicate start offset %d", span.Locator.OffsetStart)
		seen[span.Locator.OffsetStart] = true
	}
}

func TestTextSpansPreferParagraphBreak(t *testing.T) {
	g := NewTextSpanGenerator()
	para1 := strings.Repeat("First paragraph sentence. ", 25) // ~650 chars
	para2 := strings.Repeat("Second paragraph sentence. ", 25)
	text := para1 + "\n\n" + para2

	spans := g.GenerateSpans(textArtifact(text, nil))
	require.GreaterOrEqual(t, len(spans), 2)

	// The first span ends at the paragraph boundary, not mid-sentence
	first := spans[0]
	assert.LessOrEqual(t, first.Locator.OffsetEnd, len(para1)+2)
}

func TestTextSpansPageHints(t *testing.T) {
	g := NewTextSpanGenerator()
	text := strings.Repeat("Page one content here. ", 80) + strings.Repeat("Page two content here. ", 80)
	metadata := map[string]interface{}{
		"page_breaks": []int{len(text) / 2},
	}

	spans := g.GenerateSpans(textArtifact(text, metadata))
	require.Greater(t, len(spans), 1)
	assert.Equal(t, 1, spans[0].Locator.PageHint)
	assert.Equal(t, 2, spans[len(spans)-1].Locator.PageHint)
}

func TestTextSpansDeterministic(t *testing.T) {
	g := NewTextSpanGenerator()
	text := strings.Repeat("Deterministic output matters for span identity. ", 60)
	artifact := textArtifact(text, nil)

	first := g.GenerateSpans(artifact)
	second := g.GenerateSpans(artifact)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SpanHash, second[i].SpanHash)
		assert.Equal(t, first[i].Locator, second[i].Locator)
		assert.Equal(t, first[i].TextContent, second[i].TextContent)
	}
}
