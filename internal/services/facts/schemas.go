package facts

// Extraction output schemas. The LLM is required to answer with a single
// JSON object matching extractionOutput; malformed responses are logged as
// warnings and discarded.

type extractedFact struct {
	SpanRefs             []string `json:"span_refs,omitempty"`
	EvidenceQuote        string   `json:"evidence_quote,omitempty"`
	Certainty            string   `json:"certainty,omitempty"`
	SourceReliability    string   `json:"source_reliability,omitempty"`
	ExtractionConfidence *float64 `json:"extraction_confidence,omitempty"`
}

type extractedClaim struct {
	extractedFact
	Subject   map[string]interface{} `json:"subject"`
	Predicate string                 `json:"predicate"`
	Object    map[string]interface{} `json:"object"`
	ClaimType string                 `json:"claim_type,omitempty"`
	TimeScope map[string]interface{} `json:"time_scope,omitempty"`
}

type extractedMetric struct {
	extractedFact
	EntityID       string   `json:"entity_id,omitempty"`
	EntityType     string   `json:"entity_type,omitempty"`
	MetricName     string   `json:"metric_name"`
	MetricCategory string   `json:"metric_category,omitempty"`
	ValueNumeric   *float64 `json:"value_numeric,omitempty"`
	ValueRaw       string   `json:"value_raw,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	PeriodStart    string   `json:"period_start,omitempty"`
	PeriodEnd      string   `json:"period_end,omitempty"`
	AsOf           string   `json:"as_of,omitempty"`
	PeriodType     string   `json:"period_type,omitempty"`
	Method         string   `json:"method,omitempty"`
	QualityFlags   []string `json:"quality_flags,omitempty"`
}

type extractedConstraint struct {
	extractedFact
	ConstraintType string                 `json:"constraint_type"`
	AppliesTo      map[string]interface{} `json:"applies_to,omitempty"`
	Statement      string                 `json:"statement"`
}

type extractedRisk struct {
	extractedFact
	RiskType       string   `json:"risk_type"`
	RiskCategory   string   `json:"risk_category,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	Statement      string   `json:"statement"`
	Rationale      string   `json:"rationale,omitempty"`
	RelatedClaims  []string `json:"related_claims,omitempty"`
	RelatedMetrics []string `json:"related_metrics,omitempty"`
}

type extractionOutput struct {
	Claims      []extractedClaim      `json:"claims"`
	Metrics     []extractedMetric     `json:"metrics"`
	Constraints []extractedConstraint `json:"constraints"`
	Risks       []extractedRisk       `json:"risks"`
}

// credibilityOutput is the schema for the document credibility pass
type credibilityOutput struct {
	TruthfulnessScore float64  `json:"truthfulness_score"`
	BiasScore         float64  `json:"bias_score"`
	Reasoning         string   `json:"reasoning,omitempty"`
	Flags             []string `json:"flags,omitempty"`
}
