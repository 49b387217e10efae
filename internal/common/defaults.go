package common

// DefaultConfig returns the baseline configuration before file and env overrides
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:             8080,
			Host:             "0.0.0.0",
			CORSOrigins:      []string{"*"},
			CORSAllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowHeaders: []string{"Content-Type", "X-API-Key", "Authorization"},
		},
		Storage: StorageConfig{
			Badger:  BadgerConfig{Path: "./data/badger"},
			Backend: "local",
			Root:    "./data/files",
			SignKey: "",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4,
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			QueueName:         "indicium",
			JobTimeout:        "30m",
			ResultTTL:         "168h",
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  100,
		},
		LLM: LLMConfig{
			Provider: "claude",
			Claude: ClaudeConfig{
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 8192,
				Timeout:   "4m",
			},
			Gemini: GeminiConfig{
				Model:     "gemini-2.0-flash",
				MaxTokens: 8192,
				Timeout:   "4m",
			},
		},
		Extraction: ExtractionConfig{
			LovePDFBaseURL: "https://api.ilovepdf.com/v1",
			WorkDir:        "./data/extracted",
			ExtractImages:  false,
			ChunkSize:      1000,
			ChunkOverlap:   100,
		},
		Search: SearchConfig{
			SimilarityThreshold: 0.7,
			SemanticWeight:      0.7,
			KeywordWeight:       0.3,
			MetadataWeight:      0.3,
			VectorIndexPath:     "./data/vectors",
		},
		Ingestion: IngestionConfig{
			MaxFileSizeMB: 100,
			SupportedExtensions: []string{
				".pdf", ".txt", ".md", ".csv", ".xlsx", ".xls",
				".png", ".jpg", ".jpeg", ".gif", ".webp", ".tiff", ".bmp",
			},
			URLDownloadTimeout: "60s",
			BulkBatchSize:      25,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
	}
}
