package models

import (
	"time"
)

// ConflictType classifies how two facts disagree
type ConflictType string

const (
	ConflictMetricMetric ConflictType = "metric_metric"
	ConflictClaimClaim   ConflictType = "claim_claim"
	ConflictMetricClaim  ConflictType = "metric_claim"
)

// ConflictSeverity grades a conflict
type ConflictSeverity string

const (
	ConflictSeverityLow      ConflictSeverity = "low"
	ConflictSeverityMedium   ConflictSeverity = "medium"
	ConflictSeverityHigh     ConflictSeverity = "high"
	ConflictSeverityCritical ConflictSeverity = "critical"
)

// ConflictStatus is the resolution state of a conflict
type ConflictStatus string

const (
	ConflictOpen        ConflictStatus = "open"
	ConflictUnderReview ConflictStatus = "under_review"
	ConflictResolved    ConflictStatus = "resolved"
	ConflictDismissed   ConflictStatus = "dismissed"
)

// Conflict records a detected disagreement between two facts. ContentKey is
// deterministic over the pair and topic so re-running the analyzer
// de-duplicates instead of piling up copies.
type Conflict struct {
	ID                string `json:"id" badgerhold:"key"`
	TenantID          string `json:"tenant_id" badgerhold:"index"`
	DocumentVersionID string `json:"document_version_id" badgerhold:"index"`
	ProcessContext    string `json:"process_context,omitempty"`

	ConflictType ConflictType     `json:"conflict_type"`
	Severity     ConflictSeverity `json:"severity"`
	Status       ConflictStatus   `json:"status"`

	Topic       string   `json:"topic"`
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence,omitempty"`

	// Fact references; which pair is set depends on ConflictType
	ClaimAID  string `json:"claim_a_id,omitempty"`
	ClaimBID  string `json:"claim_b_id,omitempty"`
	MetricAID string `json:"metric_a_id,omitempty"`
	MetricBID string `json:"metric_b_id,omitempty"`

	ContentKey string `json:"content_key" badgerhold:"index"`

	Resolution string     `json:"resolution,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionCategory classifies an open question
type QuestionCategory string

const (
	QuestionMissingData   QuestionCategory = "missing_data"
	QuestionAmbiguous     QuestionCategory = "ambiguous"
	QuestionVerification  QuestionCategory = "verification"
	QuestionMethodology   QuestionCategory = "methodology"
	QuestionTemporal      QuestionCategory = "temporal"
	QuestionClarification QuestionCategory = "clarification"
)

// QuestionPriority grades an open question
type QuestionPriority string

const (
	PriorityLow    QuestionPriority = "low"
	PriorityMedium QuestionPriority = "medium"
	PriorityHigh   QuestionPriority = "high"
	PriorityUrgent QuestionPriority = "urgent"
)

// QuestionStatus tracks the lifecycle of an open question
type QuestionStatus string

const (
	QuestionOpen       QuestionStatus = "open"
	QuestionInProgress QuestionStatus = "in_progress"
	QuestionAnswered   QuestionStatus = "answered"
	QuestionDeferred   QuestionStatus = "deferred"
	QuestionClosed     QuestionStatus = "closed"
)

// OpenQuestion is an unresolved question raised by quality analysis, linked
// to the facts that motivated it
type OpenQuestion struct {
	ID                string `json:"id" badgerhold:"key"`
	TenantID          string `json:"tenant_id" badgerhold:"index"`
	DocumentVersionID string `json:"document_version_id" badgerhold:"index"`
	ProcessContext    string `json:"process_context,omitempty"`

	Question string `json:"question"`
	Context  string `json:"context,omitempty"`

	Category QuestionCategory `json:"category"`
	Priority QuestionPriority `json:"priority"`
	Status   QuestionStatus   `json:"status"`

	ClaimIDs   []string `json:"claim_ids,omitempty"`
	MetricIDs  []string `json:"metric_ids,omitempty"`
	ConflictID string   `json:"conflict_id,omitempty"`

	ContentKey string `json:"content_key" badgerhold:"index"`

	Answer       string     `json:"answer,omitempty"`
	AnswerSource string     `json:"answer_source,omitempty"`
	AnsweredBy   string     `json:"answered_by,omitempty"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
