package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/models"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, cosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity(a, c), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(a, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"annual", "recurring", "revenue"}, tokenize("Annual Recurring Revenue"))
	assert.Equal(t, []string{"revenue", "growth"}, tokenize("revenue, growth!"))
	assert.Empty(t, tokenize("a"))
}

func chunkWithText(id, text string) *models.EmbeddingChunk {
	return &models.EmbeddingChunk{ID: id, SpanID: "span-" + id, Text: text}
}

func TestKeywordScoresFractionOfTokens(t *testing.T) {
	req := &models.SearchRequest{Query: "annual recurring revenue"}
	candidates := []*models.EmbeddingChunk{
		chunkWithText("all", "annual recurring revenue reached new highs"),
		chunkWithText("two", "recurring revenue expanded in the period"),
		chunkWithText("none", "operating costs were flat"),
	}

	scored := keywordScores(req, candidates)
	byID := map[string]float64{}
	for _, sc := range scored {
		byID[sc.chunk.ID] = sc.score
	}

	assert.InDelta(t, 1.0, byID["all"], 1e-9)
	assert.InDelta(t, 2.0/3.0, byID["two"], 1e-9)
	assert.InDelta(t, 0.0, byID["none"], 1e-9)
}

func TestKeywordScoresRequiredAndExcluded(t *testing.T) {
	req := &models.SearchRequest{
		Query:           "revenue",
		Keywords:        []string{"audited"},
		ExcludeKeywords: []string{"draft"},
	}
	candidates := []*models.EmbeddingChunk{
		chunkWithText("keep", "audited revenue statement"),
		chunkWithText("missing-required", "revenue statement"),
		chunkWithText("excluded", "audited draft revenue statement"),
	}

	scored := keywordScores(req, candidates)
	require.Len(t, scored, 1)
	assert.Equal(t, "keep", scored[0].chunk.ID)
}

// Hybrid fusion: with weights 0.7/0.3, a semantically close span that
// keyword-matches two of three tokens outranks an off-topic span matching
// all three.
func TestHybridFusionMath(t *testing.T) {
	alpha, beta := 0.7, 0.3

	semanticClose := alpha*0.88 + beta*(2.0/3.0)
	keywordOnly := alpha*0.20 + beta*1.0

	assert.InDelta(t, 0.816, semanticClose, 0.001)
	assert.InDelta(t, 0.440, keywordOnly, 0.001)
	assert.Greater(t, semanticClose, keywordOnly)
}

func TestHighlightRanges(t *testing.T) {
	ranges := highlightRanges("Revenue and revenue again", []string{"revenue"})
	require.Len(t, ranges, 2)
	assert.Equal(t, 0, ranges[0].Start)
	assert.Equal(t, 7, ranges[0].End)
	assert.Equal(t, 12, ranges[1].Start)
}
