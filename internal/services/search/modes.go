package search

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/indicium/internal/models"
)

// semanticSearch embeds the query and ranks candidates by cosine similarity
func (s *Service) semanticSearch(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope) ([]models.SearchResultItem, error) {
	scored, err := s.semanticScores(ctx, tenantID, req, scope)
	if err != nil {
		return nil, err
	}

	var items []models.SearchResultItem
	for _, sc := range scored {
		if sc.score < req.SimilarityThreshold {
			continue
		}
		item, err := s.buildItem(ctx, tenantID, sc.chunk, scope, sc.score, nil)
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

// keywordSearch ranks candidates by matched query tokens, with AND semantics
// over required keywords and NOT semantics over excluded ones
func (s *Service) keywordSearch(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope) ([]models.SearchResultItem, error) {
	candidates, err := s.loadCandidates(ctx, tenantID, req, scope)
	if err != nil {
		return nil, err
	}

	scored := keywordScores(req, candidates)

	var items []models.SearchResultItem
	for _, sc := range scored {
		if sc.score <= 0 {
			continue
		}
		item, err := s.buildItem(ctx, tenantID, sc.chunk, scope, sc.score, map[string]interface{}{
			"matched_tokens": sc.matched,
		})
		if err != nil {
			return nil, err
		}
		item.HighlightRanges = highlightRanges(sc.chunk.Text, tokenize(req.Query))
		items = append(items, item)
		if len(items) >= req.Limit {
			break
		}
	}
	return items, nil
}

// hybridSearch fuses semantic and keyword scores over the union candidate
// set: combined = alpha*semantic + beta*keyword, weights renormalized
func (s *Service) hybridSearch(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope, filters map[string]interface{}) ([]models.SearchResultItem, error) {
	alpha := s.config.SemanticWeight
	beta := s.config.KeywordWeight
	if req.SemanticWeight > 0 || req.MetadataWeight > 0 {
		// A caller overriding one weight renormalizes both
		if req.SemanticWeight > 0 {
			alpha = req.SemanticWeight
		}
	}
	if total := alpha + beta; total > 0 {
		alpha, beta = alpha/total, beta/total
	}
	filters["semantic_weight"] = alpha
	filters["keyword_weight"] = beta

	semScored, err := s.semanticScores(ctx, tenantID, req, scope)
	if err != nil {
		return nil, err
	}
	candidates, err := s.loadCandidates(ctx, tenantID, req, scope)
	if err != nil {
		return nil, err
	}
	kwScored := keywordScores(req, candidates)

	semByID := map[string]float64{}
	chunkByID := map[string]*models.EmbeddingChunk{}
	for _, sc := range semScored {
		semByID[sc.chunk.ID] = sc.score
		chunkByID[sc.chunk.ID] = sc.chunk
	}
	kwByID := map[string]float64{}
	for _, sc := range kwScored {
		kwByID[sc.chunk.ID] = sc.score
		chunkByID[sc.chunk.ID] = sc.chunk
	}

	type fused struct {
		chunk    *models.EmbeddingChunk
		combined float64
		sem      float64
		kw       float64
	}
	var all []fused
	for id, chunk := range chunkByID {
		sem := semByID[id]
		kw := kwByID[id]
		if sem == 0 && kw == 0 {
			continue
		}
		all = append(all, fused{chunk: chunk, combined: alpha*sem + beta*kw, sem: sem, kw: kw})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].combined > all[j].combined })

	var items []models.SearchResultItem
	for _, f := range all {
		item, err := s.buildItem(ctx, tenantID, f.chunk, scope, f.combined, map[string]interface{}{
			"semantic_score": f.sem,
			"keyword_score":  f.kw,
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

type scoredChunk struct {
	chunk   *models.EmbeddingChunk
	score   float64
	matched int
}

// semanticScores embeds the query and scores every candidate, best first.
// The vector index serves the scan when available; otherwise the stored
// chunks are scanned brute-force.
func (s *Service) semanticScores(ctx context.Context, tenantID string, req *models.SearchRequest, scope *searchScope) ([]scoredChunk, error) {
	queryVector, err := s.embedder.EmbedText(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.loadCandidates(ctx, tenantID, req, scope)
	if err != nil {
		return nil, err
	}
	inScope := make(map[string]*models.EmbeddingChunk, len(candidates))
	for _, c := range candidates {
		inScope[c.ID] = c
	}

	var scored []scoredChunk
	if s.vectorIndex != nil && s.vectorIndex.Available() {
		// Over-fetch so scope filtering still leaves enough results
		hits, err := s.vectorIndex.Query(ctx, tenantID, queryVector, req.Limit*8)
		if err == nil {
			for _, hit := range hits {
				if chunk, ok := inScope[hit.ChunkID]; ok {
					scored = append(scored, scoredChunk{chunk: chunk, score: hit.Similarity})
				}
			}
			sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
			return scored, nil
		}
		s.logger.Warn().Err(err).Msg("Vector index query failed, falling back to scan")
	}

	for _, chunk := range candidates {
		scored = append(scored, scoredChunk{chunk: chunk, score: cosineSimilarity(queryVector, chunk.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return scored, nil
}

// keywordScores scores candidates by the fraction of query tokens present.
// Required keywords use AND semantics; excluded keywords drop the chunk.
func keywordScores(req *models.SearchRequest, candidates []*models.EmbeddingChunk) []scoredChunk {
	queryTokens := tokenize(req.Query)
	required := make([]string, 0, len(req.Keywords))
	for _, k := range req.Keywords {
		required = append(required, strings.ToLower(k))
	}
	excluded := make([]string, 0, len(req.ExcludeKeywords))
	for _, k := range req.ExcludeKeywords {
		excluded = append(excluded, strings.ToLower(k))
	}

	var scored []scoredChunk
	for _, chunk := range candidates {
		text := strings.ToLower(chunk.Text)

		if anyPresent(text, excluded) {
			continue
		}
		if !allPresent(text, required) {
			continue
		}

		matched := 0
		for _, token := range queryTokens {
			if strings.Contains(text, token) {
				matched++
			}
		}
		score := 0.0
		if len(queryTokens) > 0 {
			score = float64(matched) / float64(len(queryTokens))
		} else if len(required) > 0 {
			score = 1.0
		}
		scored = append(scored, scoredChunk{chunk: chunk, score: score, matched: matched})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return scored
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func allPresent(text string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(text, n) {
			return false
		}
	}
	return true
}

func anyPresent(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// highlightRanges marks token occurrences in the matched text
func highlightRanges(text string, tokens []string) []models.HighlightRange {
	lower := strings.ToLower(text)
	var ranges []models.HighlightRange
	for _, token := range tokens {
		idx := 0
		for {
			pos := strings.Index(lower[idx:], token)
			if pos < 0 {
				break
			}
			start := idx + pos
			ranges = append(ranges, models.HighlightRange{Start: start, End: start + len(token)})
			idx = start + len(token)
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	return ranges
}
