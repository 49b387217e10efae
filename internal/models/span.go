package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SpanType classifies the content of a span
type SpanType string

const (
	SpanTypeText     SpanType = "text"
	SpanTypeHeading  SpanType = "heading"
	SpanTypeCitation SpanType = "citation"
	SpanTypeFootnote SpanType = "footnote"
	SpanTypeTable    SpanType = "table"
	SpanTypeFigure   SpanType = "figure"
	SpanTypeOther    SpanType = "other"
)

// EmbeddableSpanTypes are the text-bearing span types that get embeddings.
// Tables and figures are intentionally skipped.
var EmbeddableSpanTypes = []SpanType{
	SpanTypeText, SpanTypeHeading, SpanTypeCitation, SpanTypeFootnote,
}

// IsEmbeddable reports whether spans of this type get vector embeddings
func (t SpanType) IsEmbeddable() bool {
	for _, e := range EmbeddableSpanTypes {
		if t == e {
			return true
		}
	}
	return false
}

// spanHashSampleSize caps the text prefix that feeds the span hash
const spanHashSampleSize = 1000

// Span is the atomic unit of citation: a referenceable slice of a document
// version with a locator and a stable content hash. (version_id, span_hash)
// is unique, so regenerating spans over the same artifact upserts in place
// without breaking outbound references.
type Span struct {
	ID                string `json:"id" badgerhold:"key"`
	TenantID          string `json:"tenant_id" badgerhold:"index"`
	DocumentVersionID string `json:"document_version_id" badgerhold:"index"`

	TextContent string   `json:"text_content"`
	Locator     Locator  `json:"locator"`
	EndLocator  *Locator `json:"end_locator,omitempty"`
	SpanType    SpanType `json:"span_type"`

	SpanHash string `json:"span_hash" badgerhold:"index"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SpanData is a generated span before persistence
type SpanData struct {
	TextContent string
	Locator     Locator
	SpanType    SpanType
	SpanHash    string
	Metadata    map[string]interface{}
}

// ComputeSpanHash computes the stable hash for a span: SHA-256 over the
// canonical locator JSON and the first 1000 characters of the text,
// hex-encoded to 64 chars. Generating spans twice over the same artifact
// yields identical hashes.
func ComputeSpanHash(locator Locator, textContent string) string {
	sample := textContent
	if runes := []rune(sample); len(runes) > spanHashSampleSize {
		sample = string(runes[:spanHashSampleSize])
	}
	h := sha256.Sum256([]byte(locator.CanonicalJSON() + "|" + sample))
	return hex.EncodeToString(h[:])
}

// NewSpanData builds a SpanData with its hash computed
func NewSpanData(textContent string, locator Locator, spanType SpanType, metadata map[string]interface{}) SpanData {
	return SpanData{
		TextContent: textContent,
		Locator:     locator,
		SpanType:    spanType,
		SpanHash:    ComputeSpanHash(locator, textContent),
		Metadata:    metadata,
	}
}
