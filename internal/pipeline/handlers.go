package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/queue"
)

// RegisterHandlers binds the pipeline job types onto the dispatcher. Each
// registration lists its allowed parameter names; dispatch filters payloads
// down to them.
func (o *Orchestrator) RegisterHandlers(d *queue.Dispatcher) {
	d.Register(models.JobTypeProcessVersion, []string{
		"version_id", "profile_code", "process_context", "extraction_level",
		"skip_extraction", "skip_spans", "skip_embeddings", "skip_facts",
		"skip_quality", "reprocess",
	}, o.handleProcessVersion)

	d.Register(models.JobTypeDocumentExtract, []string{
		"version_id",
	}, o.stageOnlyHandler(Options{SkipSpans: true, SkipEmbeddings: true, SkipFacts: true, SkipQuality: true}))

	d.Register(models.JobTypeDocumentEmbed, []string{
		"version_id",
	}, o.stageOnlyHandler(Options{SkipExtraction: true, SkipFacts: true, SkipQuality: true}))

	d.Register(models.JobTypeBatchExtract, []string{
		"version_id",
	}, o.stageOnlyHandler(Options{SkipSpans: true, SkipEmbeddings: true, SkipFacts: true, SkipQuality: true}))

	d.Register(models.JobTypeBatchEmbed, []string{
		"version_id",
	}, o.stageOnlyHandler(Options{SkipExtraction: true, SkipFacts: true, SkipQuality: true}))

	d.Register(models.JobTypeFactExtract, []string{
		"version_id", "profile_code", "process_context", "extraction_level",
	}, o.stageOnlyHandler(Options{SkipExtraction: true, SkipSpans: true, SkipEmbeddings: true, SkipQuality: true}))

	d.Register(models.JobTypeMultilevelExtract, []string{
		"version_id", "profile_code", "process_context", "level", "compute_missing_levels",
	}, o.handleMultilevelExtract)

	d.Register(models.JobTypeUpgradeLevel, []string{
		"version_id", "profile_code", "process_context", "target_level",
	}, o.handleUpgradeLevel)

	d.Register(models.JobTypeQualityCheck, []string{
		"version_id", "process_context",
	}, o.stageOnlyHandler(Options{SkipExtraction: true, SkipSpans: true, SkipEmbeddings: true, SkipFacts: true}))
}

func (o *Orchestrator) handleProcessVersion(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
	versionID, ok := payload["version_id"].(string)
	if !ok || versionID == "" {
		return nil, fmt.Errorf("version_id is required")
	}

	opts := Options{
		ProfileCode:    stringParam(payload, "profile_code"),
		ProcessContext: stringParam(payload, "process_context"),
		Level:          intParam(payload, "extraction_level"),
		SkipExtraction: boolParam(payload, "skip_extraction"),
		SkipSpans:      boolParam(payload, "skip_spans"),
		SkipEmbeddings: boolParam(payload, "skip_embeddings"),
		SkipFacts:      boolParam(payload, "skip_facts"),
		SkipQuality:    boolParam(payload, "skip_quality"),
		Reprocess:      boolParam(payload, "reprocess"),
	}

	report(5, "Starting version processing")
	result, err := o.processWithProgress(ctx, job.TenantID, versionID, opts, report)
	if err != nil {
		return nil, err
	}
	return resultMap(result), nil
}

// stageOnlyHandler builds a handler that runs the pipeline with fixed skip
// flags, reading version/profile fields from the payload
func (o *Orchestrator) stageOnlyHandler(base Options) queue.Handler {
	return func(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
		versionID, ok := payload["version_id"].(string)
		if !ok || versionID == "" {
			return nil, fmt.Errorf("version_id is required")
		}
		opts := base
		opts.ProfileCode = stringParam(payload, "profile_code")
		opts.ProcessContext = stringParam(payload, "process_context")
		if level := intParam(payload, "extraction_level"); level > 0 {
			opts.Level = level
		}
		result, err := o.processWithProgress(ctx, job.TenantID, versionID, opts, report)
		if err != nil {
			return nil, err
		}
		return resultMap(result), nil
	}
}

func (o *Orchestrator) handleMultilevelExtract(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
	versionID, ok := payload["version_id"].(string)
	if !ok || versionID == "" {
		return nil, fmt.Errorf("version_id is required")
	}
	level := intParam(payload, "level")
	if level == 0 {
		level = 1
	}

	startLevel := level
	if boolParam(payload, "compute_missing_levels") {
		startLevel = 1
	}

	opts := Options{
		ProfileCode:    stringParam(payload, "profile_code"),
		ProcessContext: stringParam(payload, "process_context"),
		SkipExtraction: true, SkipSpans: true, SkipEmbeddings: true, SkipQuality: true,
	}

	var lastRun string
	for l := startLevel; l <= level; l++ {
		opts.Level = l
		report((l-startLevel+1)*100/(level-startLevel+1), fmt.Sprintf("Extracting level %d", l))
		result, err := o.ProcessVersion(ctx, job.TenantID, versionID, opts)
		if err != nil {
			return nil, err
		}
		lastRun = result.FactRunID
	}
	return map[string]interface{}{"run_id": lastRun, "level": level}, nil
}

func (o *Orchestrator) handleUpgradeLevel(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
	payload["level"] = payload["target_level"]
	payload["compute_missing_levels"] = true
	return o.handleMultilevelExtract(ctx, job, payload, report)
}

// processWithProgress runs the pipeline, reporting coarse stage progress
func (o *Orchestrator) processWithProgress(ctx context.Context, tenantID, versionID string, opts Options, report queue.ProgressFunc) (*Result, error) {
	report(10, "Processing version")
	result, err := o.ProcessVersion(ctx, tenantID, versionID, opts)
	if err != nil {
		return nil, err
	}
	report(100, "Version processing complete")
	return result, nil
}

func resultMap(result *Result) map[string]interface{} {
	return map[string]interface{}{
		"version_id":   result.VersionID,
		"final_status": string(result.FinalStatus),
		"span_count":   result.SpanCount,
		"chunk_count":  result.ChunkCount,
		"fact_run_id":  result.FactRunID,
		"conflicts":    result.Conflicts,
		"questions":    result.Questions,
	}
}

func stringParam(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}

func boolParam(payload map[string]interface{}, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

func intParam(payload map[string]interface{}, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
