package search

import (
	"context"
	"time"

	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// twoStageSearch runs a metadata filter over documents (stage 1), then
// semantic ranking within the surviving candidate set (stage 2). Combined
// score = metadata_weight*metadata + semantic_weight*semantic.
func (s *Service) twoStageSearch(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope, filters map[string]interface{}) ([]models.SearchResultItem, error) {
	metaWeight := req.MetadataWeight
	if metaWeight == 0 {
		metaWeight = s.config.MetadataWeight
	}
	semWeight := req.SemanticWeight
	if semWeight == 0 {
		semWeight = s.config.SemanticWeight
	}
	if total := metaWeight + semWeight; total > 0 {
		metaWeight, semWeight = metaWeight/total, semWeight/total
	}
	filters["metadata_weight"] = metaWeight
	filters["semantic_weight"] = semWeight

	stage1Start := time.Now()
	stageScope, err := s.metadataStage(ctx, tenantID, req, scope, filters)
	if err != nil {
		return nil, err
	}
	filters["stage1_time_ms"] = time.Since(stage1Start).Milliseconds()
	filters["documents_searched"] = len(stageScope.versionIDs)

	stage2Start := time.Now()
	scored, err := s.semanticScores(ctx, tenantID, req, stageScope)
	if err != nil {
		return nil, err
	}
	filters["stage2_time_ms"] = time.Since(stage2Start).Milliseconds()

	var items []models.SearchResultItem
	for _, sc := range scored {
		if sc.score < req.SimilarityThreshold {
			continue
		}
		// Every stage-2 candidate passed the full metadata filter, so its
		// metadata score is 1
		combined := metaWeight*1.0 + semWeight*sc.score
		item, err := s.buildItem(ctx, tenantID, sc.chunk, stageScope, combined, map[string]interface{}{
			"semantic_score": sc.score,
			"metadata_score": 1.0,
			"combined_score": combined,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if len(items) >= req.Limit {
			break
		}
	}
	return items, nil
}

// discoverySearch optimizes for document coverage: the best matching span
// from each qualifying document, up to limit distinct documents
func (s *Service) discoverySearch(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope, filters map[string]interface{}) ([]models.SearchResultItem, error) {
	stageScope, err := s.metadataStage(ctx, tenantID, req, scope, filters)
	if err != nil {
		return nil, err
	}
	filters["documents_searched"] = len(stageScope.versionIDs)

	scored, err := s.semanticScores(ctx, tenantID, req, stageScope)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var items []models.SearchResultItem
	for _, sc := range scored {
		if sc.score < req.SimilarityThreshold {
			continue
		}
		doc := stageScope.documentByVersion[sc.chunk.DocumentVersionID]
		if doc == nil || seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true

		item, err := s.buildItem(ctx, tenantID, sc.chunk, stageScope, sc.score, map[string]interface{}{
			"coverage_mode": true,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if len(items) >= req.Limit {
			break
		}
	}
	return items, nil
}

// metadataStage intersects the request scope with the document metadata
// filter and records the applied filters
func (s *Service) metadataStage(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope, filters map[string]interface{}) (*searchScope, error) {
	filter := &interfaces.DocumentFilter{
		Sectors:       req.Sectors,
		Topics:        req.Topics,
		DocumentTypes: req.DocumentTypes,
		Geographies:   req.Geographies,
		Companies:     req.Companies,
		DocumentIDs:   req.DocumentIDs,
	}
	if len(req.Sectors) > 0 {
		filters["sectors"] = req.Sectors
	}
	if len(req.Topics) > 0 {
		filters["topics"] = req.Topics
	}
	if len(req.DocumentTypes) > 0 {
		filters["document_types"] = req.DocumentTypes
	}
	if len(req.Geographies) > 0 {
		filters["geographies"] = req.Geographies
	}
	if len(req.Companies) > 0 {
		filters["companies"] = req.Companies
	}

	matching, err := s.documentStorage.FilterDocuments(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	matchingIDs := make(map[string]bool, len(matching))
	for _, doc := range matching {
		matchingIDs[doc.ID] = true
	}

	narrowed := &searchScope{
		versionIDs:        map[string]bool{},
		documentByVersion: map[string]*models.Document{},
	}
	for versionID, doc := range scope.documentByVersion {
		if matchingIDs[doc.ID] {
			narrowed.versionIDs[versionID] = true
			narrowed.documentByVersion[versionID] = doc
		}
	}
	return narrowed, nil
}
