package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// documentTextCap bounds how much document text goes into one prompt
const documentTextCap = 60000

// spanContextLimit bounds how many spans are offered as citation targets
const spanContextLimit = 120

// ExtractionResult summarizes one completed fact extraction
type ExtractionResult struct {
	RunID           string
	ClaimCount      int
	MetricCount     int
	ConstraintCount int
	RiskCount       int
	Warnings        []string
}

// Service runs LLM fact extraction against a version. Runs are recorded as
// ExtractionRun rows; at most one active run exists per
// (version, profile, process_context, level).
type Service struct {
	llm         interfaces.LLMService
	runStorage  interfaces.RunStorage
	factStorage interfaces.FactStorage
	spanStorage interfaces.SpanStorage
	logger      arbor.ILogger
}

// NewService creates a fact extraction service. llm may be nil, in which
// case extraction requests are recorded as skipped runs.
func NewService(
	llm interfaces.LLMService,
	runStorage interfaces.RunStorage,
	factStorage interfaces.FactStorage,
	spanStorage interfaces.SpanStorage,
	logger arbor.ILogger,
) *Service {
	return &Service{
		llm:         llm,
		runStorage:  runStorage,
		factStorage: factStorage,
		spanStorage: spanStorage,
		logger:      logger,
	}
}

// ExtractFacts performs one extraction at the given profile/context/level.
// The run record carries status and counts; ErrConflict surfaces when an
// active run already exists for the same key.
func (s *Service) ExtractFacts(ctx context.Context, version *models.DocumentVersion, profileCode, processContext string, level int) (*ExtractionResult, error) {
	if level < 1 || level > MaxLevel {
		return nil, fmt.Errorf("extraction level must be 1-%d, got %d", MaxLevel, level)
	}
	vocab, err := VocabularyFor(profileCode)
	if err != nil {
		return nil, err
	}

	run := &models.ExtractionRun{
		ID:                common.NewID(common.PrefixRun),
		TenantID:          version.TenantID,
		DocumentVersionID: version.ID,
		Status:            models.RunQueued,
		ExtractorName:     "facts",
		ExtractorVersion:  "1.0.0",
		ProfileCode:       vocab.ProfileCode,
		Level:             level,
		ProcessContext:    processContext,
		SchemaVersion:     SchemaVersion,
		VocabVersion:      VocabVersion,
	}
	if err := s.runStorage.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	if s.llm == nil {
		run.Status = models.RunSkipped
		run.Warnings = append(run.Warnings, "no LLM provider configured")
		now := time.Now()
		run.CompletedAt = &now
		if err := s.runStorage.UpdateRun(ctx, run); err != nil {
			return nil, err
		}
		return &ExtractionResult{RunID: run.ID, Warnings: run.Warnings}, nil
	}

	started := time.Now()
	run.Status = models.RunRunning
	run.StartedAt = &started
	if err := s.runStorage.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	result, runErr := s.execute(ctx, run, version, vocab, processContext, level)

	completed := time.Now()
	run.CompletedAt = &completed
	run.ProcessingTimeMs = int(completed.Sub(started).Milliseconds())
	if runErr != nil {
		run.Status = models.RunFailed
		run.ErrorMessage = runErr.Error()
		if err := s.runStorage.UpdateRun(ctx, run); err != nil {
			s.logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record run failure")
		}
		return nil, runErr
	}

	run.Status = models.RunCompleted
	run.ClaimCount = result.ClaimCount
	run.MetricCount = result.MetricCount
	run.ConstraintCount = result.ConstraintCount
	run.RiskCount = result.RiskCount
	run.Warnings = result.Warnings
	if err := s.runStorage.UpdateRun(ctx, run); err != nil {
		return nil, err
	}
	result.RunID = run.ID
	return result, nil
}

func (s *Service) execute(ctx context.Context, run *models.ExtractionRun, version *models.DocumentVersion, vocab *Vocabulary, processContext string, level int) (*ExtractionResult, error) {
	text := version.ExtractedText
	if text == "" {
		return nil, fmt.Errorf("version %s has no extracted text", version.ID)
	}
	if len(text) > documentTextCap {
		text = text[:documentTextCap]
	}

	spanContext, spanIDs, err := s.buildSpanContext(ctx, version)
	if err != nil {
		return nil, err
	}

	// Level k builds upon level k-1 output when a completed run exists
	priorOutput := ""
	if level > 1 {
		priorOutput, err = s.priorLevelSummary(ctx, version, vocab.ProfileCode, processContext, level-1)
		if err != nil {
			return nil, err
		}
	}

	prompt := buildExtractionPrompt(vocab, level, text, spanContext, priorOutput)
	response, err := s.llm.Complete(ctx, []interfaces.Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("llm extraction failed: %w", err)
	}

	var output extractionOutput
	if err := json.Unmarshal([]byte(stripJSONFences(response)), &output); err != nil {
		// Malformed model output is a warning, not a failure; the run
		// completes with zero facts
		s.logger.Warn().
			Err(err).
			Str("run_id", run.ID).
			Msg("Discarding malformed extraction response")
		return &ExtractionResult{
			Warnings: []string{fmt.Sprintf("malformed extraction response discarded: %v", err)},
		}, nil
	}

	return s.persist(ctx, run, version, &output, spanIDs)
}

func (s *Service) persist(ctx context.Context, run *models.ExtractionRun, version *models.DocumentVersion, output *extractionOutput, knownSpans map[string]bool) (*ExtractionResult, error) {
	result := &ExtractionResult{RunID: run.ID}

	base := func(f extractedFact) models.FactBase {
		return models.FactBase{
			TenantID:             version.TenantID,
			DocumentVersionID:    version.ID,
			ExtractionRunID:      run.ID,
			ProcessContext:       run.ProcessContext,
			SpanRefs:             filterSpanRefs(f.SpanRefs, knownSpans),
			EvidenceQuote:        f.EvidenceQuote,
			Certainty:            parseCertainty(f.Certainty),
			SourceReliability:    parseReliability(f.SourceReliability),
			ExtractionConfidence: f.ExtractionConfidence,
		}
	}

	for _, c := range output.Claims {
		if c.Predicate == "" || c.Subject == nil {
			result.Warnings = append(result.Warnings, "claim missing subject or predicate, dropped")
			continue
		}
		claim := &models.Claim{
			ID:        common.NewID(common.PrefixClaim),
			FactBase:  base(c.extractedFact),
			Subject:   c.Subject,
			Predicate: c.Predicate,
			Object:    c.Object,
			ClaimType: c.ClaimType,
			TimeScope: c.TimeScope,
		}
		if err := s.factStorage.SaveClaim(ctx, claim); err != nil {
			return result, err
		}
		result.ClaimCount++
	}

	for _, m := range output.Metrics {
		if m.MetricName == "" {
			result.Warnings = append(result.Warnings, "metric missing name, dropped")
			continue
		}
		metric := &models.Metric{
			ID:             common.NewID(common.PrefixMetric),
			FactBase:       base(m.extractedFact),
			EntityID:       m.EntityID,
			EntityType:     m.EntityType,
			MetricName:     m.MetricName,
			MetricCategory: m.MetricCategory,
			ValueNumeric:   m.ValueNumeric,
			ValueRaw:       m.ValueRaw,
			Unit:           m.Unit,
			Currency:       m.Currency,
			PeriodStart:    parseDate(m.PeriodStart),
			PeriodEnd:      parseDate(m.PeriodEnd),
			AsOf:           parseDate(m.AsOf),
			PeriodType:     m.PeriodType,
			Method:         m.Method,
			QualityFlags:   m.QualityFlags,
		}
		if err := s.factStorage.SaveMetric(ctx, metric); err != nil {
			return result, err
		}
		result.MetricCount++
	}

	for _, c := range output.Constraints {
		if c.Statement == "" {
			result.Warnings = append(result.Warnings, "constraint missing statement, dropped")
			continue
		}
		constraint := &models.Constraint{
			ID:             common.NewID(common.PrefixConstraint),
			FactBase:       base(c.extractedFact),
			ConstraintType: c.ConstraintType,
			AppliesTo:      c.AppliesTo,
			Statement:      c.Statement,
		}
		if err := s.factStorage.SaveConstraint(ctx, constraint); err != nil {
			return result, err
		}
		result.ConstraintCount++
	}

	for _, r := range output.Risks {
		if run.Level < 2 {
			// Risks only surface at level 2+; a level-1 response carrying
			// them is out of contract
			result.Warnings = append(result.Warnings, "risk emitted at level 1, dropped")
			continue
		}
		if r.Statement == "" {
			result.Warnings = append(result.Warnings, "risk missing statement, dropped")
			continue
		}
		risk := &models.Risk{
			ID:             common.NewID(common.PrefixRisk),
			FactBase:       base(r.extractedFact),
			RiskType:       r.RiskType,
			RiskCategory:   r.RiskCategory,
			Severity:       parseSeverity(r.Severity),
			Statement:      r.Statement,
			Rationale:      r.Rationale,
			RelatedClaims:  r.RelatedClaims,
			RelatedMetrics: r.RelatedMetrics,
		}
		if err := s.factStorage.SaveRisk(ctx, risk); err != nil {
			return result, err
		}
		result.RiskCount++
	}

	return result, nil
}

// AssessCredibility runs the credibility pass and writes the scores onto
// the version in place. The caller persists the version.
func (s *Service) AssessCredibility(ctx context.Context, version *models.DocumentVersion) error {
	if s.llm == nil || version.ExtractedText == "" {
		return nil
	}
	text := version.ExtractedText
	if len(text) > documentTextCap {
		text = text[:documentTextCap]
	}

	response, err := s.llm.Complete(ctx, []interfaces.Message{
		{Role: "system", Content: credibilitySystemPrompt},
		{Role: "user", Content: buildCredibilityPrompt(text)},
	})
	if err != nil {
		return fmt.Errorf("credibility assessment failed: %w", err)
	}

	var output credibilityOutput
	if err := json.Unmarshal([]byte(stripJSONFences(response)), &output); err != nil {
		s.logger.Warn().Err(err).Str("version_id", version.ID).Msg("Discarding malformed credibility response")
		return nil
	}

	version.TruthfulnessScore = &output.TruthfulnessScore
	version.BiasScore = &output.BiasScore
	version.CredibilityAssessment = map[string]interface{}{
		"reasoning": output.Reasoning,
		"flags":     output.Flags,
	}
	return nil
}

// buildSpanContext renders the span reference list offered to the model and
// the set of valid span IDs for ref filtering
func (s *Service) buildSpanContext(ctx context.Context, version *models.DocumentVersion) (string, map[string]bool, error) {
	spans, err := s.spanStorage.ListSpansForVersion(ctx, version.TenantID, version.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load spans: %w", err)
	}

	known := make(map[string]bool, len(spans))
	var sb strings.Builder
	for i, span := range spans {
		known[span.ID] = true
		if i >= spanContextLimit {
			continue
		}
		excerpt := span.TextContent
		if len(excerpt) > 160 {
			excerpt = excerpt[:160]
		}
		fmt.Fprintf(&sb, "%s: %s\n", span.ID, strings.ReplaceAll(excerpt, "\n", " "))
	}
	return sb.String(), known, nil
}

// priorLevelSummary serializes the facts of the latest completed run at the
// previous level for build-upon prompting
func (s *Service) priorLevelSummary(ctx context.Context, version *models.DocumentVersion, profile, processContext string, level int) (string, error) {
	prior, err := s.runStorage.LatestCompletedFactRun(ctx, version.TenantID, version.ID, profile, processContext, level)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return "", nil
		}
		return "", err
	}

	claims, err := s.factStorage.ListClaimsForVersion(ctx, version.TenantID, version.ID, processContext)
	if err != nil {
		return "", err
	}
	metrics, err := s.factStorage.ListMetricsForVersion(ctx, version.TenantID, version.ID, processContext)
	if err != nil {
		return "", err
	}

	summary := map[string]interface{}{}
	var priorClaims []map[string]interface{}
	for _, c := range claims {
		if c.ExtractionRunID != prior.ID {
			continue
		}
		priorClaims = append(priorClaims, map[string]interface{}{
			"subject": c.Subject, "predicate": c.Predicate, "object": c.Object,
		})
	}
	var priorMetrics []map[string]interface{}
	for _, m := range metrics {
		if m.ExtractionRunID != prior.ID {
			continue
		}
		priorMetrics = append(priorMetrics, map[string]interface{}{
			"metric_name": m.MetricName, "value_raw": m.ValueRaw, "unit": m.Unit,
		})
	}
	summary["claims"] = priorClaims
	summary["metrics"] = priorMetrics

	data, err := json.Marshal(summary)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func filterSpanRefs(refs []string, known map[string]bool) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if known[ref] {
			out = append(out, ref)
		}
	}
	return out
}

// stripJSONFences removes a markdown code fence when the model wraps its
// JSON despite instructions
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func parseCertainty(s string) models.Certainty {
	switch models.Certainty(s) {
	case models.CertaintyDefinite, models.CertaintyProbable, models.CertaintyPossible, models.CertaintySpeculative:
		return models.Certainty(s)
	default:
		return models.CertaintyProbable
	}
}

func parseReliability(s string) models.SourceReliability {
	switch models.SourceReliability(s) {
	case models.ReliabilityAudited, models.ReliabilityOfficial, models.ReliabilityInternal, models.ReliabilityThirdParty:
		return models.SourceReliability(s)
	default:
		return models.ReliabilityUnknown
	}
}

func parseSeverity(s string) models.RiskSeverity {
	switch models.RiskSeverity(s) {
	case models.RiskCritical, models.RiskHigh, models.RiskMedium, models.RiskLow, models.RiskInformational:
		return models.RiskSeverity(s)
	default:
		return models.RiskMedium
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	return nil
}
