// Package quality derives conflicts and open questions from the facts
// extracted for a version. Detection is deterministic over the fact set and
// idempotent: identical findings across re-runs share a content key and are
// stored once.
package quality

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Numeric disagreement thresholds for metric-metric conflicts
const (
	highSeverityDelta   = 0.25 // >= 25% relative difference
	mediumSeverityDelta = 0.10
)

// AnalysisResult summarizes one analyzer pass
type AnalysisResult struct {
	ConflictsFound  int
	ConflictsNew    int
	QuestionsFound  int
	QuestionsNew    int
}

// Analyzer detects conflicts and open questions over extracted facts
type Analyzer struct {
	factStorage    interfaces.FactStorage
	qualityStorage interfaces.QualityStorage
	logger         arbor.ILogger
}

// NewAnalyzer creates a quality analyzer
func NewAnalyzer(factStorage interfaces.FactStorage, qualityStorage interfaces.QualityStorage, logger arbor.ILogger) *Analyzer {
	return &Analyzer{
		factStorage:    factStorage,
		qualityStorage: qualityStorage,
		logger:         logger,
	}
}

// Analyze recomputes quality artifacts for the version from the current
// fact set
func (a *Analyzer) Analyze(ctx context.Context, version *models.DocumentVersion, processContext string) (*AnalysisResult, error) {
	claims, err := a.factStorage.ListClaimsForVersion(ctx, version.TenantID, version.ID, processContext)
	if err != nil {
		return nil, fmt.Errorf("failed to load claims: %w", err)
	}
	metrics, err := a.factStorage.ListMetricsForVersion(ctx, version.TenantID, version.ID, processContext)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}

	result := &AnalysisResult{}

	conflicts := append(a.metricMetricConflicts(metrics), a.claimClaimConflicts(claims)...)
	conflicts = append(conflicts, a.metricClaimConflicts(metrics, claims)...)
	for _, conflict := range conflicts {
		conflict.TenantID = version.TenantID
		conflict.DocumentVersionID = version.ID
		conflict.ProcessContext = processContext
		created, err := a.qualityStorage.UpsertConflict(ctx, conflict)
		if err != nil {
			return result, err
		}
		result.ConflictsFound++
		if created {
			result.ConflictsNew++
		}
	}

	questions := a.openQuestions(claims, metrics, conflicts)
	for _, question := range questions {
		question.TenantID = version.TenantID
		question.DocumentVersionID = version.ID
		question.ProcessContext = processContext
		created, err := a.qualityStorage.UpsertQuestion(ctx, question)
		if err != nil {
			return result, err
		}
		result.QuestionsFound++
		if created {
			result.QuestionsNew++
		}
	}

	a.logger.Info().
		Str("version_id", version.ID).
		Int("conflicts", result.ConflictsFound).
		Int("new_conflicts", result.ConflictsNew).
		Int("questions", result.QuestionsFound).
		Msg("Quality analysis completed")
	return result, nil
}

// metricMetricConflicts finds same-entity same-metric pairs whose numeric
// values disagree, or whose periods overlap with different values
func (a *Analyzer) metricMetricConflicts(metrics []*models.Metric) []*models.Conflict {
	var conflicts []*models.Conflict

	grouped := map[string][]*models.Metric{}
	for _, m := range metrics {
		if m.ValueNumeric == nil {
			continue
		}
		key := strings.ToLower(m.EntityID + "|" + m.MetricName)
		grouped[key] = append(grouped[key], m)
	}

	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				ma, mb := group[i], group[j]
				if !periodsComparable(ma, mb) {
					continue
				}
				delta := relativeDelta(*ma.ValueNumeric, *mb.ValueNumeric)
				if delta < mediumSeverityDelta {
					continue
				}
				severity := models.ConflictSeverityMedium
				if delta >= highSeverityDelta {
					severity = models.ConflictSeverityHigh
				}
				topic := fmt.Sprintf("%s %s", ma.EntityID, ma.MetricName)
				conflicts = append(conflicts, &models.Conflict{
					ID:           common.NewID(common.PrefixConflict),
					ConflictType: models.ConflictMetricMetric,
					Severity:     severity,
					Topic:        topic,
					Description: fmt.Sprintf("metric %q reported as %v and %v (%.0f%% apart)",
						ma.MetricName, *ma.ValueNumeric, *mb.ValueNumeric, delta*100),
					MetricAID:  ma.ID,
					MetricBID:  mb.ID,
					ContentKey: contentKey("mm", topic, ma.ID, mb.ID),
				})
			}
		}
	}
	return conflicts
}

// claimClaimConflicts finds same-subject same-predicate claims with
// inconsistent objects
func (a *Analyzer) claimClaimConflicts(claims []*models.Claim) []*models.Conflict {
	var conflicts []*models.Conflict

	grouped := map[string][]*models.Claim{}
	for _, c := range claims {
		key := strings.ToLower(subjectName(c) + "|" + c.Predicate)
		grouped[key] = append(grouped[key], c)
	}

	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				ca, cb := group[i], group[j]
				if objectsAgree(ca.Object, cb.Object) {
					continue
				}
				topic := fmt.Sprintf("%s %s", subjectName(ca), ca.Predicate)
				conflicts = append(conflicts, &models.Conflict{
					ID:           common.NewID(common.PrefixConflict),
					ConflictType: models.ConflictClaimClaim,
					Severity:     models.ConflictSeverityMedium,
					Topic:        topic,
					Description: fmt.Sprintf("claims assert inconsistent objects for %q / %q",
						subjectName(ca), ca.Predicate),
					ClaimAID:   ca.ID,
					ClaimBID:   cb.ID,
					ContentKey: contentKey("cc", topic, ca.ID, cb.ID),
				})
			}
		}
	}
	return conflicts
}

// metricClaimConflicts finds claims whose stated numeric object contradicts
// a reported metric's magnitude
func (a *Analyzer) metricClaimConflicts(metrics []*models.Metric, claims []*models.Claim) []*models.Conflict {
	var conflicts []*models.Conflict

	for _, c := range claims {
		claimed, ok := numericObject(c.Object)
		if !ok {
			continue
		}
		metricName, _ := c.Object["metric_name"].(string)
		if metricName == "" {
			continue
		}
		for _, m := range metrics {
			if m.ValueNumeric == nil || !strings.EqualFold(m.MetricName, metricName) {
				continue
			}
			if !strings.EqualFold(m.EntityID, subjectName(c)) && m.EntityID != "" {
				continue
			}
			delta := relativeDelta(claimed, *m.ValueNumeric)
			if delta < highSeverityDelta {
				continue
			}
			topic := fmt.Sprintf("%s %s", subjectName(c), metricName)
			conflicts = append(conflicts, &models.Conflict{
				ID:           common.NewID(common.PrefixConflict),
				ConflictType: models.ConflictMetricClaim,
				Severity:     models.ConflictSeverityHigh,
				Topic:        topic,
				Description: fmt.Sprintf("claim states %v for %q but metric reports %v",
					claimed, metricName, *m.ValueNumeric),
				ClaimAID:   c.ID,
				MetricAID:  m.ID,
				ContentKey: contentKey("mc", topic, c.ID, m.ID),
			})
		}
	}
	return conflicts
}

// openQuestions raises questions motivated by gaps and conflicts in the
// fact set
func (a *Analyzer) openQuestions(claims []*models.Claim, metrics []*models.Metric, conflicts []*models.Conflict) []*models.OpenQuestion {
	var questions []*models.OpenQuestion

	for _, m := range metrics {
		if m.ValueNumeric == nil && m.ValueRaw != "" {
			questions = append(questions, &models.OpenQuestion{
				ID:        common.NewID(common.PrefixQuestion),
				Question:  fmt.Sprintf("Metric %q was stated as %q but could not be parsed numerically - what is the actual value?", m.MetricName, m.ValueRaw),
				Category:  models.QuestionAmbiguous,
				Priority:  models.PriorityMedium,
				MetricIDs: []string{m.ID},
				ContentKey: contentKey("q-unparsed", m.MetricName, m.ID),
			})
		}
		if m.ValueNumeric != nil && m.PeriodStart == nil && m.PeriodEnd == nil && m.AsOf == nil {
			questions = append(questions, &models.OpenQuestion{
				ID:        common.NewID(common.PrefixQuestion),
				Question:  fmt.Sprintf("Metric %q has no time period - which period does it cover?", m.MetricName),
				Category:  models.QuestionTemporal,
				Priority:  models.PriorityMedium,
				MetricIDs: []string{m.ID},
				ContentKey: contentKey("q-period", m.MetricName, m.ID),
			})
		}
		if m.SourceReliability == models.ReliabilityUnknown {
			questions = append(questions, &models.OpenQuestion{
				ID:        common.NewID(common.PrefixQuestion),
				Question:  fmt.Sprintf("Metric %q has unknown source reliability - can it be verified against an audited source?", m.MetricName),
				Category:  models.QuestionVerification,
				Priority:  models.PriorityLow,
				MetricIDs: []string{m.ID},
				ContentKey: contentKey("q-verify", m.MetricName, m.ID),
			})
		}
	}

	for _, c := range claims {
		if c.Certainty == models.CertaintySpeculative {
			questions = append(questions, &models.OpenQuestion{
				ID:       common.NewID(common.PrefixQuestion),
				Question: fmt.Sprintf("Claim %q about %q is speculative - is there corroborating evidence?", c.Predicate, subjectName(c)),
				Category: models.QuestionMissingData,
				Priority: models.PriorityLow,
				ClaimIDs: []string{c.ID},
				ContentKey: contentKey("q-speculative", c.Predicate, c.ID),
			})
		}
	}

	for _, conflict := range conflicts {
		questions = append(questions, &models.OpenQuestion{
			ID:         common.NewID(common.PrefixQuestion),
			Question:   fmt.Sprintf("Which source is correct for %q?", conflict.Topic),
			Context:    conflict.Description,
			Category:   models.QuestionClarification,
			Priority:   models.PriorityHigh,
			ConflictID: conflict.ID,
			ContentKey: contentKey("q-conflict", conflict.ContentKey),
		})
	}

	return questions
}

// periodsComparable reports whether two metrics describe overlapping or
// unspecified periods, making their values comparable
func periodsComparable(a, b *models.Metric) bool {
	if a.PeriodStart == nil || a.PeriodEnd == nil || b.PeriodStart == nil || b.PeriodEnd == nil {
		return true
	}
	return !a.PeriodEnd.Before(*b.PeriodStart) && !b.PeriodEnd.Before(*a.PeriodStart)
}

func relativeDelta(a, b float64) float64 {
	max := math.Max(math.Abs(a), math.Abs(b))
	if max == 0 {
		return 0
	}
	return math.Abs(a-b) / max
}

func subjectName(c *models.Claim) string {
	if c.Subject == nil {
		return ""
	}
	if name, ok := c.Subject["name"].(string); ok {
		return name
	}
	return ""
}

func numericObject(object map[string]interface{}) (float64, bool) {
	if object == nil {
		return 0, false
	}
	switch v := object["value"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func objectsAgree(a, b map[string]interface{}) bool {
	av, aok := a["value"]
	bv, bok := b["value"]
	if aok && bok {
		return fmt.Sprintf("%v", av) == fmt.Sprintf("%v", bv)
	}
	an, aok := a["name"]
	bn, bok := b["name"]
	if aok && bok {
		return strings.EqualFold(fmt.Sprintf("%v", an), fmt.Sprintf("%v", bn))
	}
	// Objects without comparable fields are not called inconsistent
	return true
}

// contentKey builds the deterministic dedup key for a finding
func contentKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:16])
}
