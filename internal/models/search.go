package models

import (
	"time"
)

// SearchMode selects the search strategy
type SearchMode string

const (
	SearchSemantic  SearchMode = "semantic"  // vector similarity only
	SearchKeyword   SearchMode = "keyword"   // token match only
	SearchHybrid    SearchMode = "hybrid"    // fused semantic + keyword scores
	SearchTwoStage  SearchMode = "two_stage" // metadata filter then semantic ranking
	SearchDiscovery SearchMode = "discovery" // document-coverage mode
)

// SearchRequest carries every knob a search accepts. Tenant scope is not a
// request field; the service takes it from the tenant context.
type SearchRequest struct {
	Query string     `json:"query" validate:"required,min=1"`
	Mode  SearchMode `json:"mode,omitempty"`

	ProjectID   string   `json:"project_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`

	Limit               int     `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty" validate:"omitempty,min=0,max=1"`

	Keywords        []string `json:"keywords,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`

	SpanTypes []SpanType `json:"span_types,omitempty"`
	SpansOnly bool       `json:"spans_only,omitempty"`

	// Two-stage / discovery metadata filters
	Sectors       []string `json:"sectors,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	DocumentTypes []string `json:"document_types,omitempty"`
	Geographies   []string `json:"geographies,omitempty"`
	Companies     []string `json:"companies,omitempty"`

	MetadataWeight float64 `json:"metadata_weight,omitempty" validate:"omitempty,min=0,max=1"`
	SemanticWeight float64 `json:"semantic_weight,omitempty" validate:"omitempty,min=0,max=1"`
}

// Citation resolves a result back to its source span and document. Every
// search result carries one; raw embedding vectors are never returned.
type Citation struct {
	SpanID            string   `json:"span_id"`
	DocumentID        string   `json:"document_id"`
	DocumentVersionID string   `json:"document_version_id"`
	DocumentFilename  string   `json:"document_filename"`
	SpanType          SpanType `json:"span_type"`
	Locator           Locator  `json:"locator"`
	TextExcerpt       string   `json:"text_excerpt"`
}

// HighlightRange marks a keyword match inside MatchedText
type HighlightRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SearchResultItem is one hit
type SearchResultItem struct {
	ResultID        string                 `json:"result_id"`
	Similarity      float64                `json:"similarity"`
	Citation        Citation               `json:"citation"`
	MatchedText     string                 `json:"matched_text"`
	HighlightRanges []HighlightRange       `json:"highlight_ranges,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResult is the uniform envelope returned by every search mode
type SearchResult struct {
	Query          string                 `json:"query"`
	Mode           SearchMode             `json:"mode"`
	Results        []SearchResultItem     `json:"results"`
	Total          int                    `json:"total"`
	SearchTimeMs   int64                  `json:"search_time_ms"`
	Timestamp      time.Time              `json:"timestamp"`
	FiltersApplied map[string]interface{} `json:"filters_applied"`
}
