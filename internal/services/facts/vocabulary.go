// Package facts implements multi-level LLM fact extraction: claims, metrics,
// constraints and risks against per-profile controlled vocabularies.
package facts

import (
	"fmt"
)

// Vocabulary versioning recorded on every extraction run
const (
	SchemaVersion = "1.2"
	VocabVersion  = "1.1"
)

// MetricDefinition is one metric in a profile vocabulary
type MetricDefinition struct {
	Name     string
	Category string
	Unit     string
}

// ClaimPredicate is one predicate in a profile vocabulary
type ClaimPredicate struct {
	Name        string
	ClaimType   string
	Description string
}

// RiskCategory is one risk type in a profile vocabulary
type RiskCategory struct {
	Name     string
	Category string
}

// Vocabulary is a profile's controlled vocabulary keyed by extraction level.
// Levels are cumulative: level k includes everything at level k-1.
type Vocabulary struct {
	ProfileCode string
	ProfileName string

	// Keyed by the minimum level at which the entry becomes available
	metrics    map[int][]MetricDefinition
	predicates map[int][]ClaimPredicate
	risks      map[int][]RiskCategory
}

// MaxLevel is the deepest extraction level
const MaxLevel = 4

// Metrics returns the metric vocabulary available at the given level
func (v *Vocabulary) Metrics(level int) []MetricDefinition {
	var out []MetricDefinition
	for l := 1; l <= level; l++ {
		out = append(out, v.metrics[l]...)
	}
	return out
}

// Predicates returns the claim predicates available at the given level
func (v *Vocabulary) Predicates(level int) []ClaimPredicate {
	var out []ClaimPredicate
	for l := 1; l <= level; l++ {
		out = append(out, v.predicates[l]...)
	}
	return out
}

// Risks returns the risk categories available at the given level. Risks
// only surface at level 2 and above.
func (v *Vocabulary) Risks(level int) []RiskCategory {
	if level < 2 {
		return nil
	}
	var out []RiskCategory
	for l := 2; l <= level; l++ {
		out = append(out, v.risks[l]...)
	}
	return out
}

// registry holds the built-in profile vocabularies
var registry = map[string]*Vocabulary{
	"general":   generalVocabulary(),
	"vc":        vcVocabulary(),
	"pharma":    pharmaVocabulary(),
	"insurance": insuranceVocabulary(),
}

// Profiles lists the registered profile codes
func Profiles() []string {
	return []string{"general", "vc", "pharma", "insurance"}
}

// VocabularyFor resolves a profile code; an empty code resolves to general
// and unknown codes return an error
func VocabularyFor(profileCode string) (*Vocabulary, error) {
	if profileCode == "" {
		profileCode = "general"
	}
	v, ok := registry[profileCode]
	if !ok {
		return nil, fmt.Errorf("unknown extraction profile: %q", profileCode)
	}
	return v, nil
}

func generalVocabulary() *Vocabulary {
	return &Vocabulary{
		ProfileCode: "general",
		ProfileName: "General",
		metrics: map[int][]MetricDefinition{
			1: {
				{Name: "revenue", Category: "financial", Unit: "currency"},
				{Name: "net_income", Category: "financial", Unit: "currency"},
				{Name: "headcount", Category: "operational", Unit: "count"},
				{Name: "growth_rate", Category: "financial", Unit: "percent"},
			},
			2: {
				{Name: "gross_margin", Category: "profitability", Unit: "percent"},
				{Name: "operating_margin", Category: "profitability", Unit: "percent"},
				{Name: "market_share", Category: "market", Unit: "percent"},
			},
			3: {
				{Name: "cash_balance", Category: "liquidity", Unit: "currency"},
				{Name: "debt_total", Category: "leverage", Unit: "currency"},
				{Name: "customer_count", Category: "commercial", Unit: "count"},
			},
			4: {
				{Name: "capex", Category: "investment", Unit: "currency"},
				{Name: "rd_spend", Category: "investment", Unit: "currency"},
				{Name: "churn_rate", Category: "commercial", Unit: "percent"},
			},
		},
		predicates: map[int][]ClaimPredicate{
			1: {
				{Name: "operates_in", ClaimType: "market", Description: "entity operates in a sector or geography"},
				{Name: "offers_product", ClaimType: "commercial", Description: "entity offers a product or service"},
				{Name: "reports_metric", ClaimType: "financial", Description: "entity reports a quantitative result"},
			},
			2: {
				{Name: "partners_with", ClaimType: "commercial", Description: "entity has a partnership"},
				{Name: "competes_with", ClaimType: "market", Description: "entity competes with another"},
				{Name: "complies_with", ClaimType: "compliance", Description: "entity claims regulatory compliance"},
			},
			3: {
				{Name: "acquired", ClaimType: "corporate", Description: "entity acquired another entity"},
				{Name: "raised_funding", ClaimType: "financial", Description: "entity raised capital"},
				{Name: "holds_patent", ClaimType: "ip", Description: "entity holds intellectual property"},
			},
			4: {
				{Name: "plans_to", ClaimType: "forward_looking", Description: "entity states a forward-looking intention"},
				{Name: "depends_on", ClaimType: "operational", Description: "entity depends on a supplier or input"},
			},
		},
		risks: map[int][]RiskCategory{
			2: {
				{Name: "market_risk", Category: "market"},
				{Name: "financial_risk", Category: "financial"},
			},
			3: {
				{Name: "operational_risk", Category: "operational"},
				{Name: "regulatory_risk", Category: "legal"},
			},
			4: {
				{Name: "concentration_risk", Category: "commercial"},
				{Name: "key_person_risk", Category: "operational"},
			},
		},
	}
}

func vcVocabulary() *Vocabulary {
	v := generalVocabulary()
	v.ProfileCode = "vc"
	v.ProfileName = "Venture Capital"
	v.metrics[1] = append(v.metrics[1],
		MetricDefinition{Name: "arr", Category: "revenue", Unit: "currency"},
		MetricDefinition{Name: "mrr", Category: "revenue", Unit: "currency"},
		MetricDefinition{Name: "burn_rate", Category: "liquidity", Unit: "currency"},
	)
	v.metrics[2] = append(v.metrics[2],
		MetricDefinition{Name: "runway_months", Category: "liquidity", Unit: "months"},
		MetricDefinition{Name: "cac", Category: "commercial", Unit: "currency"},
		MetricDefinition{Name: "ltv", Category: "commercial", Unit: "currency"},
	)
	v.predicates[2] = append(v.predicates[2],
		ClaimPredicate{Name: "backed_by", ClaimType: "financial", Description: "company backed by an investor"},
	)
	v.risks[2] = append(v.risks[2], RiskCategory{Name: "runway_risk", Category: "financial"})
	return v
}

func pharmaVocabulary() *Vocabulary {
	v := generalVocabulary()
	v.ProfileCode = "pharma"
	v.ProfileName = "Pharmaceutical"
	v.metrics[1] = append(v.metrics[1],
		MetricDefinition{Name: "trial_enrollment", Category: "clinical", Unit: "count"},
		MetricDefinition{Name: "efficacy_rate", Category: "clinical", Unit: "percent"},
	)
	v.predicates[1] = append(v.predicates[1],
		ClaimPredicate{Name: "in_trial_phase", ClaimType: "clinical", Description: "compound is in a named trial phase"},
		ClaimPredicate{Name: "approved_by", ClaimType: "regulatory", Description: "product approved by a regulator"},
	)
	v.risks[2] = append(v.risks[2],
		RiskCategory{Name: "trial_failure_risk", Category: "clinical"},
		RiskCategory{Name: "approval_risk", Category: "regulatory"},
	)
	return v
}

func insuranceVocabulary() *Vocabulary {
	v := generalVocabulary()
	v.ProfileCode = "insurance"
	v.ProfileName = "Insurance"
	v.metrics[1] = append(v.metrics[1],
		MetricDefinition{Name: "gross_written_premium", Category: "financial", Unit: "currency"},
		MetricDefinition{Name: "loss_ratio", Category: "underwriting", Unit: "percent"},
		MetricDefinition{Name: "combined_ratio", Category: "underwriting", Unit: "percent"},
	)
	v.predicates[2] = append(v.predicates[2],
		ClaimPredicate{Name: "underwrites", ClaimType: "commercial", Description: "carrier underwrites a line of business"},
		ClaimPredicate{Name: "reinsured_by", ClaimType: "financial", Description: "carrier cedes risk to a reinsurer"},
	)
	v.risks[2] = append(v.risks[2],
		RiskCategory{Name: "catastrophe_risk", Category: "underwriting"},
		RiskCategory{Name: "reserve_risk", Category: "financial"},
	)
	return v
}
