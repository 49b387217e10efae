package search

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/models"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
)

// fakeEmbedder maps revenue-flavored text onto one axis and everything else
// onto the other, so similarity is deterministic in tests
type fakeEmbedder struct{}

func (fakeEmbedder) Dimensions() int   { return 2 }
func (fakeEmbedder) TokensUsed() int64 { return 0 }

func (f fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "revenue") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (f fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.EmbedText(ctx, t)
	}
	return out, nil
}

type searchFixture struct {
	manager *badgerstore.Manager
	service *Service
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	logger := common.GetLogger()
	manager, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	cfg := &common.SearchConfig{
		SimilarityThreshold: 0.7,
		SemanticWeight:      0.7,
		KeywordWeight:       0.3,
		MetadataWeight:      0.3,
	}
	service := NewService(
		cfg,
		fakeEmbedder{},
		nil, // no vector index: brute-force path
		manager.DocumentStorage(),
		manager.VersionStorage(),
		manager.SpanStorage(),
		manager.EmbeddingStorage(),
		manager.ProjectStorage(),
		logger,
	)
	return &searchFixture{manager: manager, service: service}
}

// seed creates a document with one version and one span-backed chunk
func (f *searchFixture) seed(t *testing.T, tenantID string, docType models.DocumentType, sectors []string, text string) *models.Document {
	t.Helper()
	ctx := context.Background()

	doc := &models.Document{
		ID:               common.NewID(common.PrefixDocument),
		TenantID:         tenantID,
		Filename:         "doc.pdf",
		OriginalFilename: fmt.Sprintf("doc-%s.pdf", docSuffix(text)),
		ContentType:      "application/pdf",
		FileHash:         common.NewID("h"),
		DocumentType:     docType,
		Sectors:          sectors,
	}
	require.NoError(t, f.manager.DocumentStorage().SaveDocument(ctx, doc))

	version := &models.DocumentVersion{
		ID:            common.NewID(common.PrefixVersion),
		TenantID:      tenantID,
		DocumentID:    doc.ID,
		VersionNumber: 1,
		StorageURI:    "file://x",
	}
	require.NoError(t, f.manager.VersionStorage().SaveVersion(ctx, version))

	locator := models.TextLocator(0, len(text), 1)
	span := &models.Span{
		ID:                common.NewID(common.PrefixSpan),
		TenantID:          tenantID,
		DocumentVersionID: version.ID,
		TextContent:       text,
		Locator:           locator,
		SpanType:          models.SpanTypeText,
		SpanHash:          models.ComputeSpanHash(locator, text),
	}
	_, _, err := f.manager.SpanStorage().UpsertSpan(ctx, span)
	require.NoError(t, err)

	embedding, _ := fakeEmbedder{}.EmbedText(ctx, text)
	chunk := &models.EmbeddingChunk{
		ID:                common.NewID(common.PrefixChunk),
		TenantID:          tenantID,
		DocumentVersionID: version.ID,
		SpanID:            span.ID,
		Text:              text,
		Embedding:         embedding,
		Metadata:          map[string]interface{}{"span_type": string(models.SpanTypeText)},
	}
	require.NoError(t, f.manager.EmbeddingStorage().SaveChunk(ctx, chunk))
	return doc
}

var shortCounter int

func docSuffix(string) string {
	shortCounter++
	return fmt.Sprintf("%03d", shortCounter)
}

var searchPrincipal = models.Principal{TenantID: "tenant-a", ActorID: "tester"}

func TestSemanticSearchReturnsCitations(t *testing.T) {
	f := newSearchFixture(t)
	doc := f.seed(t, "tenant-a", models.DocTypeFinancialStmt, []string{"healthcare"}, "2024 revenue was 10M")
	f.seed(t, "tenant-a", models.DocTypeBlogPost, nil, "a post about gardening")

	result, err := f.service.Search(context.Background(), searchPrincipal, &models.SearchRequest{
		Query: "2024 revenue",
		Mode:  models.SearchSemantic,
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	item := result.Results[0]
	assert.Equal(t, doc.ID, item.Citation.DocumentID)
	assert.NotEmpty(t, item.Citation.SpanID)
	assert.Equal(t, models.LocatorTypeText, item.Citation.Locator.Type)
	assert.GreaterOrEqual(t, item.Similarity, 0.7)
	assert.Equal(t, "none", result.FiltersApplied["vector_index"])
}

func TestSearchTenantIsolation(t *testing.T) {
	f := newSearchFixture(t)
	f.seed(t, "tenant-a", models.DocTypeFinancialStmt, nil, "2024 revenue was 10M")

	result, err := f.service.Search(context.Background(), models.Principal{TenantID: "tenant-b"}, &models.SearchRequest{
		Query: "2024 revenue",
		Mode:  models.SearchSemantic,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}

// Discovery mode with metadata filters: at most limit results, each from a
// distinct document, all matching the stage-1 filter, with filters recorded
func TestDiscoveryModeFilterScoping(t *testing.T) {
	f := newSearchFixture(t)

	// Seven qualifying documents, plus noise that fails one filter each
	for i := 0; i < 7; i++ {
		f.seed(t, "tenant-a", models.DocTypeFinancialStmt, []string{"healthcare", "biotech"},
			fmt.Sprintf("2024 revenue statement %d", i))
	}
	f.seed(t, "tenant-a", models.DocTypeFinancialStmt, []string{"energy"}, "2024 revenue energy")
	f.seed(t, "tenant-a", models.DocTypeBlogPost, []string{"healthcare"}, "2024 revenue blog")

	result, err := f.service.Search(context.Background(), searchPrincipal, &models.SearchRequest{
		Query:         "2024 revenue",
		Mode:          models.SearchDiscovery,
		Limit:         5,
		Sectors:       []string{"healthcare"},
		DocumentTypes: []string{string(models.DocTypeFinancialStmt)},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(result.Results), 5)
	assert.NotEmpty(t, result.Results)

	seen := map[string]bool{}
	for _, item := range result.Results {
		assert.False(t, seen[item.Citation.DocumentID], "discovery returns distinct documents")
		seen[item.Citation.DocumentID] = true

		doc, err := f.manager.DocumentStorage().GetDocument(context.Background(), "tenant-a", item.Citation.DocumentID)
		require.NoError(t, err)
		assert.Contains(t, doc.Sectors, "healthcare")
		assert.Equal(t, models.DocTypeFinancialStmt, doc.DocumentType)
	}

	assert.Equal(t, []string{"healthcare"}, result.FiltersApplied["sectors"])
	assert.Equal(t, []string{string(models.DocTypeFinancialStmt)}, result.FiltersApplied["document_types"])
}

func TestTwoStageCombinedScores(t *testing.T) {
	f := newSearchFixture(t)
	f.seed(t, "tenant-a", models.DocTypeFinancialStmt, []string{"healthcare"}, "2024 revenue was strong")

	result, err := f.service.Search(context.Background(), searchPrincipal, &models.SearchRequest{
		Query:   "2024 revenue",
		Mode:    models.SearchTwoStage,
		Limit:   5,
		Sectors: []string{"healthcare"},
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	// metadata 0.3 * 1.0 + semantic 0.7 * 1.0 = 1.0 for a perfect match
	assert.InDelta(t, 1.0, result.Results[0].Similarity, 0.01)
	assert.Equal(t, 0.3, result.FiltersApplied["metadata_weight"])
	assert.Equal(t, 0.7, result.FiltersApplied["semantic_weight"])
}

func TestKeywordSearchExcludes(t *testing.T) {
	f := newSearchFixture(t)
	f.seed(t, "tenant-a", models.DocTypeFinancialStmt, nil, "2024 revenue final audited")
	f.seed(t, "tenant-a", models.DocTypeFinancialStmt, nil, "2024 revenue draft estimate")

	result, err := f.service.Search(context.Background(), searchPrincipal, &models.SearchRequest{
		Query:           "2024 revenue",
		Mode:            models.SearchKeyword,
		ExcludeKeywords: []string{"draft"},
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].MatchedText, "audited")
}

func TestSearchExcludesDeletedDocuments(t *testing.T) {
	f := newSearchFixture(t)
	doc := f.seed(t, "tenant-a", models.DocTypeFinancialStmt, nil, "2024 revenue was 10M")

	doc.DeletionStatus = models.DeletionMarked
	require.NoError(t, f.manager.DocumentStorage().UpdateDocument(context.Background(), doc))

	result, err := f.service.Search(context.Background(), searchPrincipal, &models.SearchRequest{
		Query: "2024 revenue",
		Mode:  models.SearchSemantic,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}
