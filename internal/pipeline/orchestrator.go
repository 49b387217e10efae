// Package pipeline drives the per-version processing state machine:
//
//	UPLOADED → EXTRACTED → SPANS_BUILT → EMBEDDED → FACTS_EXTRACTED → QUALITY_CHECKED
//
// Each stage reads its predecessor's outputs, writes its own, and only then
// advances ProcessingStatus. Re-entry is idempotent: spans upsert by hash,
// embeddings check for existing rows, facts key off their run record and
// quality recomputes from the current fact set. Any stage failure moves the
// version to FAILED with the predecessor state intact.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/extraction"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/services/embeddings"
	"github.com/ternarybob/indicium/internal/services/facts"
	"github.com/ternarybob/indicium/internal/services/quality"
	"github.com/ternarybob/indicium/internal/spans"
)

// Options control one pipeline run
type Options struct {
	ProfileCode    string
	ProcessContext string
	Level          int

	SkipExtraction bool
	SkipSpans      bool
	SkipEmbeddings bool
	SkipFacts      bool
	SkipQuality    bool

	// Reprocess purges derived state for the stages being run first
	Reprocess bool
}

// Result summarizes one pipeline run
type Result struct {
	VersionID   string                 `json:"version_id"`
	FinalStatus models.ProcessingStatus `json:"final_status"`
	SpanCount   int                    `json:"span_count"`
	ChunkCount  int                    `json:"chunk_count"`
	FactRunID   string                 `json:"fact_run_id,omitempty"`
	Conflicts   int                    `json:"conflicts"`
	Questions   int                    `json:"questions"`
}

// Orchestrator wires the stage services into the state machine
type Orchestrator struct {
	documentStorage  interfaces.DocumentStorage
	versionStorage   interfaces.VersionStorage
	spanStorage      interfaces.SpanStorage
	embeddingStorage interfaces.EmbeddingStorage
	runStorage       interfaces.RunStorage
	blobStore        interfaces.BlobStore

	extractors  *extraction.Registry
	spanService *spans.Service
	embedder    *embeddings.SpanEmbeddingService
	factService *facts.Service
	analyzer    *quality.Analyzer

	workDir string
	logger  arbor.ILogger
}

// NewOrchestrator creates the pipeline orchestrator
func NewOrchestrator(
	documentStorage interfaces.DocumentStorage,
	versionStorage interfaces.VersionStorage,
	spanStorage interfaces.SpanStorage,
	embeddingStorage interfaces.EmbeddingStorage,
	runStorage interfaces.RunStorage,
	blobStore interfaces.BlobStore,
	extractors *extraction.Registry,
	spanService *spans.Service,
	embedder *embeddings.SpanEmbeddingService,
	factService *facts.Service,
	analyzer *quality.Analyzer,
	workDir string,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		documentStorage:  documentStorage,
		versionStorage:   versionStorage,
		spanStorage:      spanStorage,
		embeddingStorage: embeddingStorage,
		runStorage:       runStorage,
		blobStore:        blobStore,
		extractors:       extractors,
		spanService:      spanService,
		embedder:         embedder,
		factService:      factService,
		analyzer:         analyzer,
		workDir:          workDir,
		logger:           logger,
	}
}

// ProcessVersion runs the pipeline for one version
func (o *Orchestrator) ProcessVersion(ctx context.Context, tenantID, versionID string, opts Options) (*Result, error) {
	version, err := o.versionStorage.GetVersion(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}
	doc, err := o.documentStorage.GetDocument(ctx, tenantID, version.DocumentID)
	if err != nil {
		return nil, err
	}
	if opts.ProfileCode == "" {
		opts.ProfileCode = doc.ProfileCode
	}
	if opts.Level == 0 {
		opts.Level = 1
	}

	result := &Result{VersionID: version.ID}

	if opts.Reprocess {
		if err := o.purgeDerivedState(ctx, version, opts); err != nil {
			return nil, err
		}
	}

	var artifact *models.ExtractionArtifact

	// Stage: extract
	if !opts.SkipExtraction || version.ExtractedText == "" {
		artifact, err = o.stageExtract(ctx, doc, version)
		if err != nil {
			return result, o.fail(ctx, version, err)
		}
	} else {
		artifact = &models.ExtractionArtifact{
			Text:     version.ExtractedText,
			Metadata: version.Metadata,
		}
	}

	// Stage: spans
	if !opts.SkipSpans {
		count, err := o.stageSpans(ctx, doc, version, artifact)
		if err != nil {
			return result, o.fail(ctx, version, err)
		}
		result.SpanCount = count
	}

	// Stage: embeddings
	if !opts.SkipEmbeddings {
		count, err := o.stageEmbed(ctx, version, opts.Reprocess)
		if err != nil {
			return result, o.fail(ctx, version, err)
		}
		result.ChunkCount = count
	}

	// Stage: facts
	if !opts.SkipFacts {
		runID, err := o.stageFacts(ctx, version, opts)
		if err != nil {
			return result, o.fail(ctx, version, err)
		}
		result.FactRunID = runID
	}

	// Stage: quality
	if !opts.SkipQuality {
		analysis, err := o.stageQuality(ctx, version, opts.ProcessContext)
		if err != nil {
			return result, o.fail(ctx, version, err)
		}
		result.Conflicts = analysis.ConflictsFound
		result.Questions = analysis.QuestionsFound
	}

	version.ExtractionStatus = models.ExtractionCompleted
	if err := o.versionStorage.UpdateVersion(ctx, version); err != nil {
		return result, err
	}
	result.FinalStatus = version.ProcessingStatus
	return result, nil
}

// advance moves ProcessingStatus forward; skipped stages never move it
// backward and re-runs of earlier stages leave a later status alone
func (o *Orchestrator) advance(ctx context.Context, version *models.DocumentVersion, next models.ProcessingStatus) error {
	if !version.ProcessingStatus.CanAdvanceTo(next) {
		return nil
	}
	version.ProcessingStatus = next
	return o.versionStorage.UpdateVersion(ctx, version)
}

// fail records the stage error and moves the version to FAILED. The
// predecessor stage's outputs are already committed and stay intact.
func (o *Orchestrator) fail(ctx context.Context, version *models.DocumentVersion, stageErr error) error {
	version.ProcessingStatus = models.ProcessingFailed
	version.ExtractionStatus = models.ExtractionFailed
	version.ExtractionError = stageErr.Error()
	if err := o.versionStorage.UpdateVersion(ctx, version); err != nil {
		o.logger.Error().Err(err).Str("version_id", version.ID).Msg("Failed to record pipeline failure")
	}
	o.logger.Error().
		Err(stageErr).
		Str("version_id", version.ID).
		Msg("Pipeline failed")
	return stageErr
}

func (o *Orchestrator) stageExtract(ctx context.Context, doc *models.Document, version *models.DocumentVersion) (*models.ExtractionArtifact, error) {
	data, err := o.blobStore.Get(ctx, version.StorageURI)
	if err != nil {
		return nil, fmt.Errorf("failed to load version bytes: %w", err)
	}

	run := &models.ExtractionRun{
		ID:                common.NewID(common.PrefixRun),
		TenantID:          version.TenantID,
		DocumentVersionID: version.ID,
		Status:            models.RunRunning,
		ExtractorName:     "content",
		ExtractorVersion:  "1.0.0",
	}
	started := time.Now()
	run.StartedAt = &started
	if err := o.runStorage.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	workDir := filepath.Join(o.workDir, doc.ID, version.ID)
	artifact, err := o.extractors.Extract(ctx, data, doc.OriginalFilename, doc.ContentType, workDir)

	completed := time.Now()
	run.CompletedAt = &completed
	run.ProcessingTimeMs = int(completed.Sub(started).Milliseconds())
	if err != nil {
		run.Status = models.RunFailed
		run.ErrorMessage = err.Error()
		o.runStorage.UpdateRun(ctx, run)
		return nil, err
	}

	run.Status = models.RunCompleted
	run.ExtractorName = artifact.ExtractorName
	run.ExtractorVersion = artifact.ExtractorVersion
	run.HasText = artifact.Text != ""
	run.HasTables = len(artifact.Tables) > 0
	run.HasImages = len(artifact.Images) > 0
	run.CharCount = artifact.CharCount
	run.WordCount = artifact.WordCount
	run.PageCount = artifact.PageCount
	run.TableCount = len(artifact.Tables)
	run.ImageCount = len(artifact.Images)
	run.Warnings = artifact.Warnings
	run.ArtifactPath = workDir
	if err := o.runStorage.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	now := time.Now()
	version.ExtractedText = artifact.Text
	version.ExtractedAt = &now
	version.PageCount = artifact.PageCount
	if version.Metadata == nil {
		version.Metadata = map[string]interface{}{}
	}
	for k, v := range artifact.Metadata {
		version.Metadata[k] = v
	}
	if err := o.advance(ctx, version, models.ProcessingExtracted); err != nil {
		return nil, err
	}
	return artifact, nil
}

func (o *Orchestrator) stageSpans(ctx context.Context, doc *models.Document, version *models.DocumentVersion, artifact *models.ExtractionArtifact) (int, error) {
	stored, _, err := o.spanService.BuildSpans(ctx, version, doc.ContentType, artifact)
	if err != nil {
		return 0, err
	}
	if err := o.advance(ctx, version, models.ProcessingSpansBuilt); err != nil {
		return 0, err
	}
	return len(stored), nil
}

func (o *Orchestrator) stageEmbed(ctx context.Context, version *models.DocumentVersion, reprocess bool) (int, error) {
	chunks, err := o.embedder.EmbedSpansForVersion(ctx, version, reprocess)
	if err != nil {
		return 0, err
	}
	if err := o.advance(ctx, version, models.ProcessingEmbedded); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (o *Orchestrator) stageFacts(ctx context.Context, version *models.DocumentVersion, opts Options) (string, error) {
	result, err := o.factService.ExtractFacts(ctx, version, opts.ProfileCode, opts.ProcessContext, opts.Level)
	if err != nil {
		return "", err
	}
	if err := o.factService.AssessCredibility(ctx, version); err != nil {
		o.logger.Warn().Err(err).Str("version_id", version.ID).Msg("Credibility assessment failed")
	}
	if err := o.advance(ctx, version, models.ProcessingFactsExtracted); err != nil {
		return "", err
	}
	return result.RunID, nil
}

func (o *Orchestrator) stageQuality(ctx context.Context, version *models.DocumentVersion, processContext string) (*quality.AnalysisResult, error) {
	analysis, err := o.analyzer.Analyze(ctx, version, processContext)
	if err != nil {
		return nil, err
	}
	if err := o.advance(ctx, version, models.ProcessingQualityChecked); err != nil {
		return nil, err
	}
	return analysis, nil
}

// purgeDerivedState deletes the derived rows for stages about to re-run
func (o *Orchestrator) purgeDerivedState(ctx context.Context, version *models.DocumentVersion, opts Options) error {
	if !opts.SkipEmbeddings {
		if _, err := o.embeddingStorage.DeleteChunksForVersion(ctx, version.TenantID, version.ID); err != nil {
			return err
		}
	}
	if !opts.SkipSpans {
		if _, err := o.spanStorage.DeleteSpansForVersion(ctx, version.TenantID, version.ID); err != nil {
			return err
		}
	}
	// Reset the status cursor to the earliest stage being re-run
	version.ProcessingStatus = models.ProcessingUploaded
	return o.versionStorage.UpdateVersion(ctx, version)
}

// RetryVersion resets a failed (or stuck) version to PENDING so a worker
// picks it up again
func (o *Orchestrator) RetryVersion(ctx context.Context, tenantID, versionID string) error {
	version, err := o.versionStorage.GetVersion(ctx, tenantID, versionID)
	if err != nil {
		return err
	}
	if version.ExtractionStatus == models.ExtractionCompleted {
		return fmt.Errorf("version already completed: %w", interfaces.ErrConflict)
	}
	version.ExtractionStatus = models.ExtractionPending
	version.ProcessingStatus = models.ProcessingUploaded
	version.ExtractionError = ""
	return o.versionStorage.UpdateVersion(ctx, version)
}
