// Package search implements the five search modes over embedding chunks:
// semantic, keyword, hybrid, two-stage and discovery. Every result carries a
// citation back to its span and document; raw vectors never leave the
// service. Tenant scope is applied unconditionally.
package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Service executes search requests
type Service struct {
	config           *common.SearchConfig
	embedder         interfaces.EmbeddingClient
	vectorIndex      interfaces.VectorIndex
	documentStorage  interfaces.DocumentStorage
	versionStorage   interfaces.VersionStorage
	spanStorage      interfaces.SpanStorage
	embeddingStorage interfaces.EmbeddingStorage
	projectStorage   interfaces.ProjectStorage
	logger           arbor.ILogger
}

// NewService creates the search service. vectorIndex may be nil; search then
// runs brute-force over stored chunks.
func NewService(
	config *common.SearchConfig,
	embedder interfaces.EmbeddingClient,
	vectorIndex interfaces.VectorIndex,
	documentStorage interfaces.DocumentStorage,
	versionStorage interfaces.VersionStorage,
	spanStorage interfaces.SpanStorage,
	embeddingStorage interfaces.EmbeddingStorage,
	projectStorage interfaces.ProjectStorage,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:           config,
		embedder:         embedder,
		vectorIndex:      vectorIndex,
		documentStorage:  documentStorage,
		versionStorage:   versionStorage,
		spanStorage:      spanStorage,
		embeddingStorage: embeddingStorage,
		projectStorage:   projectStorage,
		logger:           logger,
	}
}

// Search dispatches the request to its mode
func (s *Service) Search(ctx context.Context, principal models.Principal, req *models.SearchRequest) (*models.SearchResult, error) {
	start := time.Now()

	if req.Mode == "" {
		req.Mode = models.SearchSemantic
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.SimilarityThreshold == 0 {
		req.SimilarityThreshold = s.config.SimilarityThreshold
	}

	scope, err := s.resolveScope(ctx, principal.TenantID, req)
	if err != nil {
		return nil, err
	}

	var items []models.SearchResultItem
	filters := s.baseFilters(req, scope)

	switch req.Mode {
	case models.SearchSemantic:
		items, err = s.semanticSearch(ctx, principal.TenantID, req, scope)
	case models.SearchKeyword:
		items, err = s.keywordSearch(ctx, principal.TenantID, req, scope)
	case models.SearchHybrid:
		items, err = s.hybridSearch(ctx, principal.TenantID, req, scope, filters)
	case models.SearchTwoStage:
		items, err = s.twoStageSearch(ctx, principal.TenantID, req, scope, filters)
	case models.SearchDiscovery:
		items, err = s.discoverySearch(ctx, principal.TenantID, req, scope, filters)
	default:
		return nil, fmt.Errorf("unknown search mode: %q", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	return &models.SearchResult{
		Query:          req.Query,
		Mode:           req.Mode,
		Results:        items,
		Total:          len(items),
		SearchTimeMs:   time.Since(start).Milliseconds(),
		Timestamp:      time.Now().UTC(),
		FiltersApplied: filters,
	}, nil
}

// searchScope is the resolved candidate set for one request
type searchScope struct {
	// versionIDs limits candidates; nil means all visible tenant versions
	versionIDs map[string]bool
	// documentByVersion maps candidate versions to their documents
	documentByVersion map[string]*models.Document
}

// resolveScope computes the candidate version set. Global scope is the
// latest version of every visible document; project scope honors pinned
// versions; document scope narrows further.
func (s *Service) resolveScope(ctx context.Context, tenantID string, req *models.SearchRequest) (*searchScope, error) {
	scope := &searchScope{
		versionIDs:        map[string]bool{},
		documentByVersion: map[string]*models.Document{},
	}

	docFilter := map[string]bool{}
	for _, id := range req.DocumentIDs {
		docFilter[id] = true
	}

	addLatest := func(doc *models.Document, pinnedVersionID string) error {
		if !doc.IsVisible() {
			return nil
		}
		if len(docFilter) > 0 && !docFilter[doc.ID] {
			return nil
		}
		versionID := pinnedVersionID
		if versionID == "" {
			latest, err := s.versionStorage.LatestVersion(ctx, tenantID, doc.ID)
			if err != nil {
				if err == interfaces.ErrNotFound {
					return nil
				}
				return err
			}
			versionID = latest.ID
		}
		scope.versionIDs[versionID] = true
		scope.documentByVersion[versionID] = doc
		return nil
	}

	if req.ProjectID != "" {
		if _, err := s.projectStorage.GetProject(ctx, tenantID, req.ProjectID); err != nil {
			return nil, err
		}
		attachments, err := s.projectStorage.ListAttachments(ctx, tenantID, req.ProjectID)
		if err != nil {
			return nil, err
		}
		for _, att := range attachments {
			doc, err := s.documentStorage.GetDocument(ctx, tenantID, att.DocumentID)
			if err != nil {
				if err == interfaces.ErrNotFound {
					continue
				}
				return nil, err
			}
			if err := addLatest(doc, att.PinnedVersionID); err != nil {
				return nil, err
			}
		}
		return scope, nil
	}

	docs, err := s.documentStorage.ListDocuments(ctx, tenantID, &interfaces.DocumentListOptions{})
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if err := addLatest(doc, ""); err != nil {
			return nil, err
		}
	}
	return scope, nil
}

// loadCandidates fetches the chunks in scope, applying spans_only and
// span-type filters
func (s *Service) loadCandidates(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope) ([]*models.EmbeddingChunk, error) {
	versionIDs := make([]string, 0, len(scope.versionIDs))
	for id := range scope.versionIDs {
		versionIDs = append(versionIDs, id)
	}
	chunks, err := s.embeddingStorage.ListChunksForVersions(ctx, tenantID, versionIDs)
	if err != nil {
		return nil, err
	}

	typeFilter := map[models.SpanType]bool{}
	for _, t := range req.SpanTypes {
		typeFilter[t] = true
	}

	filtered := make([]*models.EmbeddingChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if req.SpansOnly && chunk.SpanID == "" {
			continue
		}
		if len(typeFilter) > 0 {
			spanType, _ := chunk.Metadata["span_type"].(string)
			if !typeFilter[models.SpanType(spanType)] {
				continue
			}
		}
		filtered = append(filtered, chunk)
	}
	return filtered, nil
}

// buildItem resolves a chunk into a result item with its citation
func (s *Service) buildItem(ctx context.Context, tenantID string, chunk *models.EmbeddingChunk, scope *searchScope, similarity float64, metadata map[string]interface{}) (models.SearchResultItem, error) {
	doc := scope.documentByVersion[chunk.DocumentVersionID]

	citation := models.Citation{
		SpanID:            chunk.SpanID,
		DocumentVersionID: chunk.DocumentVersionID,
		TextExcerpt:       excerpt(chunk.Text, 500),
		SpanType:          models.SpanTypeText,
	}
	if doc != nil {
		citation.DocumentID = doc.ID
		citation.DocumentFilename = doc.OriginalFilename
	}

	if chunk.SpanID != "" {
		span, err := s.spanStorage.GetSpan(ctx, tenantID, chunk.SpanID)
		if err == nil {
			citation.SpanType = span.SpanType
			citation.Locator = span.Locator
		} else if err != interfaces.ErrNotFound {
			return models.SearchResultItem{}, err
		}
	} else {
		citation.Locator = models.TextLocator(chunk.CharStart, chunk.CharEnd, 0)
	}

	return models.SearchResultItem{
		ResultID:    chunk.ID,
		Similarity:  similarity,
		Citation:    citation,
		MatchedText: excerpt(chunk.Text, 500),
		Metadata:    metadata,
	}, nil
}

func (s *Service) baseFilters(req *models.SearchRequest, scope *searchScope) map[string]interface{} {
	filters := map[string]interface{}{
		"mode":                 string(req.Mode),
		"limit":                req.Limit,
		"similarity_threshold": req.SimilarityThreshold,
	}
	if req.ProjectID != "" {
		filters["project_id"] = req.ProjectID
	}
	if len(req.DocumentIDs) > 0 {
		filters["document_ids"] = req.DocumentIDs
	}
	if len(req.Keywords) > 0 {
		filters["keywords"] = req.Keywords
	}
	if len(req.ExcludeKeywords) > 0 {
		filters["exclude_keywords"] = req.ExcludeKeywords
	}
	if len(req.SpanTypes) > 0 {
		filters["span_types"] = req.SpanTypes
	}
	if req.SpansOnly {
		filters["spans_only"] = true
	}
	if s.vectorIndex == nil || !s.vectorIndex.Available() {
		filters["vector_index"] = "none"
	}
	return filters
}

// cosineSimilarity over float32 vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
