package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /livez", s.app.StatusHandler.LivenessHandler)
	mux.HandleFunc("GET /readyz", s.app.StatusHandler.ReadinessHandler)
	mux.HandleFunc("GET /health", s.app.StatusHandler.HealthHandler)

	// Documents
	mux.HandleFunc("POST /api/documents", s.app.DocumentHandler.UploadHandler)
	mux.HandleFunc("GET /api/documents", s.app.DocumentHandler.ListHandler)
	mux.HandleFunc("POST /api/documents/presign", s.app.DocumentHandler.PresignHandler)
	mux.HandleFunc("POST /api/documents/versions/{version_id}/confirm", s.app.DocumentHandler.ConfirmHandler)
	mux.HandleFunc("GET /api/documents/{id}", s.app.DocumentHandler.GetHandler)
	mux.HandleFunc("GET /api/documents/{id}/versions", s.app.DocumentHandler.VersionsHandler)
	mux.HandleFunc("POST /api/documents/{id}/versions", s.app.DocumentHandler.UploadVersionHandler)
	mux.HandleFunc("GET /api/documents/{id}/download", s.app.DocumentHandler.DownloadHandler)
	mux.HandleFunc("DELETE /api/documents/{id}", s.app.DocumentHandler.DeleteHandler)
	mux.HandleFunc("GET /api/documents/{id}/status", s.app.DocumentHandler.StatusHandler)
	mux.HandleFunc("POST /api/documents/{id}/retry", s.app.DocumentHandler.RetryHandler)
	mux.HandleFunc("GET /api/documents/{id}/deletion", s.app.DocumentHandler.DeletionStatusHandler)

	// Projects and folders
	mux.HandleFunc("POST /api/projects", s.app.ProjectHandler.CreateHandler)
	mux.HandleFunc("GET /api/projects", s.app.ProjectHandler.ListHandler)
	mux.HandleFunc("GET /api/projects/{id}", s.app.ProjectHandler.GetHandler)
	mux.HandleFunc("PUT /api/projects/{id}", s.app.ProjectHandler.UpdateHandler)
	mux.HandleFunc("DELETE /api/projects/{id}", s.app.ProjectHandler.DeleteHandler)
	mux.HandleFunc("GET /api/projects/{id}/documents", s.app.ProjectHandler.DocumentsHandler)
	mux.HandleFunc("POST /api/projects/{id}/documents", s.app.ProjectHandler.AttachHandler)
	mux.HandleFunc("DELETE /api/projects/{id}/documents/{document_id}", s.app.ProjectHandler.DetachHandler)
	mux.HandleFunc("PUT /api/projects/{id}/documents/{document_id}/folder", s.app.ProjectHandler.MoveDocumentHandler)
	mux.HandleFunc("POST /api/projects/{id}/folders", s.app.ProjectHandler.CreateFolderHandler)
	mux.HandleFunc("GET /api/projects/{id}/folders", s.app.ProjectHandler.ListFoldersHandler)
	mux.HandleFunc("DELETE /api/folders/{folder_id}", s.app.ProjectHandler.DeleteFolderHandler)

	// Search
	mux.HandleFunc("POST /api/search", s.app.SearchHandler.SearchHandler)
	mux.HandleFunc("POST /api/search/projects/{project_id}", s.app.SearchHandler.ProjectSearchHandler)

	// Evidence
	mux.HandleFunc("POST /api/spans", s.app.EvidenceHandler.CreateSpanHandler)
	mux.HandleFunc("POST /api/claims", s.app.EvidenceHandler.CreateClaimHandler)
	mux.HandleFunc("POST /api/metrics", s.app.EvidenceHandler.CreateMetricHandler)
	mux.HandleFunc("GET /api/spans", s.app.EvidenceHandler.ListSpansHandler)
	mux.HandleFunc("GET /api/spans/{id}", s.app.EvidenceHandler.GetSpanHandler)
	mux.HandleFunc("DELETE /api/spans/{id}", s.app.EvidenceHandler.DeleteSpanHandler)
	mux.HandleFunc("GET /api/claims/{id}", s.app.EvidenceHandler.GetClaimHandler)
	mux.HandleFunc("PUT /api/claims/{id}", s.app.EvidenceHandler.UpdateClaimHandler)
	mux.HandleFunc("DELETE /api/claims/{id}", s.app.EvidenceHandler.DeleteClaimHandler)
	mux.HandleFunc("GET /api/metrics/{id}", s.app.EvidenceHandler.GetMetricHandler)
	mux.HandleFunc("PUT /api/metrics/{id}", s.app.EvidenceHandler.UpdateMetricHandler)
	mux.HandleFunc("DELETE /api/metrics/{id}", s.app.EvidenceHandler.DeleteMetricHandler)
	mux.HandleFunc("POST /api/packs", s.app.EvidenceHandler.CreatePackHandler)
	mux.HandleFunc("GET /api/packs", s.app.EvidenceHandler.ListPacksHandler)
	mux.HandleFunc("GET /api/packs/{id}", s.app.EvidenceHandler.GetPackHandler)
	mux.HandleFunc("PUT /api/packs/{id}", s.app.EvidenceHandler.UpdatePackHandler)
	mux.HandleFunc("DELETE /api/packs/{id}", s.app.EvidenceHandler.DeletePackHandler)
	mux.HandleFunc("GET /api/packs/{id}/export", s.app.EvidenceHandler.ExportPackHandler)

	// Extraction
	mux.HandleFunc("GET /api/extraction/profiles", s.app.ExtractionHandler.ProfilesHandler)
	mux.HandleFunc("GET /api/extraction/settings", s.app.ExtractionHandler.SettingsHandler)
	mux.HandleFunc("PUT /api/extraction/settings", s.app.ExtractionHandler.UpdateSettingsHandler)
	mux.HandleFunc("POST /api/extraction/trigger", s.app.ExtractionHandler.TriggerHandler)
	mux.HandleFunc("GET /api/extraction/versions/{version_id}/runs", s.app.ExtractionHandler.RunsHandler)
	mux.HandleFunc("GET /api/extraction/runs/{id}", s.app.ExtractionHandler.RunHandler)
	mux.HandleFunc("GET /api/extraction/versions/{version_id}/facts", s.app.ExtractionHandler.FactsHandler)
	mux.HandleFunc("GET /api/extraction/versions/{version_id}/quality", s.app.ExtractionHandler.QualityHandler)

	// Jobs
	mux.HandleFunc("POST /api/jobs", s.app.JobHandler.EnqueueHandler)
	mux.HandleFunc("GET /api/jobs", s.app.JobHandler.ListHandler)
	mux.HandleFunc("GET /api/jobs/{id}", s.app.JobHandler.GetHandler)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.app.JobHandler.CancelHandler)
	mux.HandleFunc("POST /api/jobs/{id}/retry", s.app.JobHandler.RetryHandler)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.app.JobHandler.DeleteHandler)
	mux.HandleFunc("POST /api/jobs/run-sync", s.app.JobHandler.RunSyncHandler)
	mux.HandleFunc("POST /api/jobs/process-next", s.app.JobHandler.ProcessNextHandler)
	mux.HandleFunc("POST /api/jobs/cleanup", s.app.JobHandler.CleanupHandler)
	mux.HandleFunc("POST /api/jobs/requeue-stale", s.app.JobHandler.RequeueStaleHandler)

	// Tenants
	mux.HandleFunc("POST /api/tenants", s.app.TenantHandler.CreateHandler)
	mux.HandleFunc("GET /api/tenants", s.app.TenantHandler.ListHandler)
	mux.HandleFunc("GET /api/tenants/{id}", s.app.TenantHandler.GetHandler)
	mux.HandleFunc("PUT /api/tenants/{id}", s.app.TenantHandler.UpdateHandler)
	mux.HandleFunc("POST /api/tenants/{id}/keys", s.app.TenantHandler.IssueKeyHandler)
	mux.HandleFunc("GET /api/tenants/{id}/keys", s.app.TenantHandler.ListKeysHandler)
	mux.HandleFunc("DELETE /api/tenants/{id}/keys/{key_id}", s.app.TenantHandler.RevokeKeyHandler)

	return mux
}
