// Package app wires configuration, storage, services, handlers and workers
// into one dependency container.
package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indicium/internal/auth"
	"github.com/ternarybob/indicium/internal/blob"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/extraction"
	"github.com/ternarybob/indicium/internal/handlers"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/ternarybob/indicium/internal/pipeline"
	"github.com/ternarybob/indicium/internal/queue"
	"github.com/ternarybob/indicium/internal/services/audit"
	"github.com/ternarybob/indicium/internal/services/deletion"
	"github.com/ternarybob/indicium/internal/services/documents"
	"github.com/ternarybob/indicium/internal/services/embeddings"
	"github.com/ternarybob/indicium/internal/services/evidence"
	"github.com/ternarybob/indicium/internal/services/facts"
	"github.com/ternarybob/indicium/internal/services/llm"
	"github.com/ternarybob/indicium/internal/services/projects"
	"github.com/ternarybob/indicium/internal/services/quality"
	"github.com/ternarybob/indicium/internal/services/search"
	"github.com/ternarybob/indicium/internal/services/tenants"
	"github.com/ternarybob/indicium/internal/spans"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
	"github.com/ternarybob/indicium/internal/vectorindex"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *badgerstore.Manager
	BlobStore      *blob.LocalStore
	VectorIndex    *vectorindex.ChromemIndex

	Authenticator *auth.Authenticator
	Auditor       *audit.Recorder

	LLMService      interfaces.LLMService
	EmbeddingClient *embeddings.OpenAIClient

	DocumentService *documents.Service
	ProjectService  *projects.Service
	EvidenceService *evidence.Service
	TenantService   *tenants.Service
	SearchService   *search.Service
	FactService     *facts.Service
	Analyzer        *quality.Analyzer
	DeletionEngine  *deletion.Engine

	Dispatcher   *queue.Dispatcher
	JobService   *queue.Service
	WorkerPool   *queue.WorkerPool
	Orchestrator *pipeline.Orchestrator

	// HTTP handlers
	DocumentHandler   *handlers.DocumentHandler
	ProjectHandler    *handlers.ProjectHandler
	SearchHandler     *handlers.SearchHandler
	EvidenceHandler   *handlers.EvidenceHandler
	ExtractionHandler *handlers.ExtractionHandler
	JobHandler        *handlers.JobHandler
	TenantHandler     *handlers.TenantHandler
	StatusHandler     *handlers.StatusHandler
}

// New builds the full application graph
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: config, Logger: logger}

	storageManager, err := badgerstore.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}
	a.StorageManager = storageManager

	blobStore, err := blob.NewLocalStore(config.Storage.Root, config.Storage.SignKey, logger)
	if err != nil {
		return nil, err
	}
	a.BlobStore = blobStore

	vectorIndex, err := vectorindex.NewChromemIndex(config.Search.VectorIndexPath, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Vector index unavailable - search degrades to brute-force scan")
		vectorIndex = nil
	}
	a.VectorIndex = vectorIndex

	// vectorIndexIface keeps the nil-interface pitfall out of consumers
	var vectorIndexIface interfaces.VectorIndex
	if vectorIndex != nil {
		vectorIndexIface = vectorIndex
	}

	a.Authenticator = auth.NewAuthenticator(storageManager.TenantStorage(), logger)
	a.Auditor = audit.NewRecorder(storageManager.AuditStorage(), logger)

	llmService, err := llm.NewService(&config.LLM, logger)
	if err != nil {
		return nil, err
	}
	a.LLMService = llmService

	a.EmbeddingClient = embeddings.NewOpenAIClient(&config.Embeddings, logger)

	extractors := extraction.NewRegistry(&config.Extraction, nil, logger)
	spanService := spans.NewService(storageManager.SpanStorage(), logger)
	spanEmbedder := embeddings.NewSpanEmbeddingService(
		a.EmbeddingClient,
		storageManager.SpanStorage(),
		storageManager.EmbeddingStorage(),
		vectorIndexIface,
		logger,
	)

	a.FactService = facts.NewService(
		llmService,
		storageManager.RunStorage(),
		storageManager.FactStorage(),
		storageManager.SpanStorage(),
		logger,
	)
	a.Analyzer = quality.NewAnalyzer(storageManager.FactStorage(), storageManager.QualityStorage(), logger)

	a.DocumentService = documents.NewService(
		storageManager.DocumentStorage(),
		storageManager.VersionStorage(),
		blobStore,
		config.Ingestion.MaxFileSizeMB,
		logger,
	)
	a.ProjectService = projects.NewService(
		storageManager.ProjectStorage(),
		storageManager.DocumentStorage(),
		storageManager.VersionStorage(),
		logger,
	)
	a.EvidenceService = evidence.NewService(
		storageManager.SpanStorage(),
		storageManager.FactStorage(),
		storageManager.ProjectStorage(),
		storageManager.VersionStorage(),
		storageManager.DocumentStorage(),
		logger,
	)
	a.TenantService = tenants.NewService(storageManager.TenantStorage(), logger)
	a.SearchService = search.NewService(
		&config.Search,
		a.EmbeddingClient,
		vectorIndexIface,
		storageManager.DocumentStorage(),
		storageManager.VersionStorage(),
		storageManager.SpanStorage(),
		storageManager.EmbeddingStorage(),
		storageManager.ProjectStorage(),
		logger,
	)
	a.DeletionEngine = deletion.NewEngine(
		storageManager.DocumentStorage(),
		storageManager.VersionStorage(),
		storageManager.SpanStorage(),
		storageManager.EmbeddingStorage(),
		storageManager.FactStorage(),
		storageManager.RunStorage(),
		storageManager.QualityStorage(),
		storageManager.ProjectStorage(),
		storageManager.DeletionStorage(),
		blobStore,
		vectorIndexIface,
		logger,
	)

	a.Orchestrator = pipeline.NewOrchestrator(
		storageManager.DocumentStorage(),
		storageManager.VersionStorage(),
		storageManager.SpanStorage(),
		storageManager.EmbeddingStorage(),
		storageManager.RunStorage(),
		blobStore,
		extractors,
		spanService,
		spanEmbedder,
		a.FactService,
		a.Analyzer,
		config.Extraction.WorkDir,
		logger,
	)

	a.Dispatcher = queue.NewDispatcher(logger)
	a.Orchestrator.RegisterHandlers(a.Dispatcher)

	a.JobService = queue.NewService(
		storageManager.JobStorage(),
		storageManager.QueueStorage(),
		a.Dispatcher,
		&config.Queue,
		logger,
	)
	a.registerAuxiliaryHandlers()

	a.WorkerPool = queue.NewWorkerPool(a.JobService, logger)

	// HTTP handlers
	a.DocumentHandler = handlers.NewDocumentHandler(a.DocumentService, a.DeletionEngine, a.Orchestrator, a.JobService, a.Auditor, logger)
	a.ProjectHandler = handlers.NewProjectHandler(a.ProjectService, logger)
	a.SearchHandler = handlers.NewSearchHandler(a.SearchService, logger)
	a.EvidenceHandler = handlers.NewEvidenceHandler(a.EvidenceService, logger)
	a.ExtractionHandler = handlers.NewExtractionHandler(
		storageManager.RunStorage(),
		storageManager.FactStorage(),
		storageManager.QualityStorage(),
		storageManager.VersionStorage(),
		storageManager.TenantStorage(),
		a.JobService,
		logger,
	)
	a.JobHandler = handlers.NewJobHandler(a.JobService, logger)
	a.TenantHandler = handlers.NewTenantHandler(a.TenantService, a.Auditor, logger)
	a.StatusHandler = handlers.NewStatusHandler(storageManager.VersionStorage(), vectorIndexIface, logger)

	// Bootstrap API keys from configuration
	if len(config.Tenants.APIKeys) > 0 {
		if err := a.TenantService.BootstrapKeys(context.Background(), config.Tenants.APIKeys); err != nil {
			return nil, fmt.Errorf("failed to bootstrap API keys: %w", err)
		}
	}

	return a, nil
}

// registerAuxiliaryHandlers binds the job types that live outside the
// version pipeline: deletion execution, ingestion and maintenance
func (a *App) registerAuxiliaryHandlers() {
	a.Dispatcher.Register(models.JobTypeDocumentDelete, []string{"document_id"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
			documentID, _ := payload["document_id"].(string)
			if documentID == "" {
				return nil, fmt.Errorf("document_id is required")
			}
			report(10, "Executing deletion tasks")
			if err := a.DeletionEngine.ExecutePending(ctx, job.TenantID, documentID); err != nil {
				return nil, err
			}
			return map[string]interface{}{"document_id": documentID, "status": "deleted"}, nil
		})

	a.Dispatcher.Register(models.JobTypeDocumentIngest, []string{"file_data", "filename", "content_type"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
			encoded, _ := payload["file_data"].(string)
			filename, _ := payload["filename"].(string)
			contentType, _ := payload["content_type"].(string)
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("file_data must be base64: %w", err)
			}
			principal := models.Principal{TenantID: job.TenantID, ActorID: "job:" + job.ID}
			result, err := a.DocumentService.Upload(ctx, principal, &documents.UploadInput{
				Filename:    filename,
				ContentType: contentType,
				Data:        data,
				SourceType:  models.SourceAPI,
			})
			if err != nil {
				return nil, err
			}
			if !result.Duplicate {
				a.enqueueProcessing(ctx, job.TenantID, result.Version.ID)
			}
			return map[string]interface{}{"document_id": result.Document.ID, "version_id": result.Version.ID, "duplicate": result.Duplicate}, nil
		})

	a.Dispatcher.Register(models.JobTypeBulkURLIngest, []string{"urls"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
			raw, _ := payload["urls"].([]interface{})
			if len(raw) == 0 {
				return nil, fmt.Errorf("urls is required")
			}
			timeout, err := time.ParseDuration(a.Config.Ingestion.URLDownloadTimeout)
			if err != nil {
				timeout = 60 * time.Second
			}
			principal := models.Principal{TenantID: job.TenantID, ActorID: "job:" + job.ID}

			ingested := 0
			var failures []string
			for i, item := range raw {
				url, _ := item.(string)
				report((i+1)*100/len(raw), fmt.Sprintf("Ingesting %d/%d", i+1, len(raw)))
				result, err := a.DocumentService.IngestFromURL(ctx, principal, url, "", timeout)
				if err != nil {
					failures = append(failures, fmt.Sprintf("%s: %v", url, err))
					continue
				}
				if !result.Duplicate {
					a.enqueueProcessing(ctx, job.TenantID, result.Version.ID)
				}
				ingested++
			}
			return map[string]interface{}{"ingested": ingested, "failures": failures}, nil
		})

	a.Dispatcher.Register(models.JobTypeBulkFolderIngest, []string{"folder_path", "recursive"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
			folderPath, _ := payload["folder_path"].(string)
			if folderPath == "" {
				return nil, fmt.Errorf("folder_path is required")
			}
			recursive, _ := payload["recursive"].(bool)
			principal := models.Principal{TenantID: job.TenantID, ActorID: "job:" + job.ID}

			supported := map[string]bool{}
			for _, ext := range a.Config.Ingestion.SupportedExtensions {
				supported[ext] = true
			}

			ingested := 0
			var failures []string
			err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					if !recursive && path != folderPath {
						return filepath.SkipDir
					}
					return nil
				}
				if !supported[filepath.Ext(path)] {
					return nil
				}
				data, err := os.ReadFile(path)
				if err != nil {
					failures = append(failures, fmt.Sprintf("%s: %v", path, err))
					return nil
				}
				result, uerr := a.DocumentService.Upload(ctx, principal, &documents.UploadInput{
					Filename:    filepath.Base(path),
					ContentType: contentTypeForExt(filepath.Ext(path)),
					Data:        data,
					SourceType:  models.SourceBatchImport,
				})
				if uerr != nil {
					failures = append(failures, fmt.Sprintf("%s: %v", path, uerr))
					return nil
				}
				if !result.Duplicate {
					a.enqueueProcessing(ctx, job.TenantID, result.Version.ID)
				}
				ingested++
				return nil
			})
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"ingested": ingested, "failures": failures}, nil
		})

	a.Dispatcher.Register(models.JobTypeDocumentProcessFull, []string{"file_data", "filename", "content_type", "profile_code"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
			encoded, _ := payload["file_data"].(string)
			filename, _ := payload["filename"].(string)
			contentType, _ := payload["content_type"].(string)
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("file_data must be base64: %w", err)
			}
			principal := models.Principal{TenantID: job.TenantID, ActorID: "job:" + job.ID}
			result, err := a.DocumentService.Upload(ctx, principal, &documents.UploadInput{
				Filename:    filename,
				ContentType: contentType,
				Data:        data,
				SourceType:  models.SourceAPI,
				ProfileCode: stringOr(payload, "profile_code", ""),
			})
			if err != nil {
				return nil, err
			}
			report(30, "Uploaded, running pipeline")
			pipelineResult, err := a.Orchestrator.ProcessVersion(ctx, job.TenantID, result.Version.ID, pipeline.Options{})
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"document_id":  result.Document.ID,
				"version_id":   result.Version.ID,
				"final_status": string(pipelineResult.FinalStatus),
			}, nil
		})

	a.Dispatcher.Register(models.JobTypeCleanup, []string{},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report queue.ProgressFunc) (map[string]interface{}, error) {
			count, err := a.JobService.CleanupOldJobs(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"removed": count}, nil
		})
}

func (a *App) enqueueProcessing(ctx context.Context, tenantID, versionID string) {
	if _, err := a.JobService.Enqueue(ctx, tenantID, models.JobTypeProcessVersion, map[string]interface{}{
		"version_id": versionID,
	}, 0, 3); err != nil {
		a.Logger.Error().Err(err).Str("version_id", versionID).Msg("Failed to enqueue processing")
	}
}

// Close shuts down the application components
func (a *App) Close() error {
	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
	}
	if a.StorageManager != nil {
		return a.StorageManager.Close()
	}
	return nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

func stringOr(payload map[string]interface{}, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
