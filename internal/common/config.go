package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Queue       QueueConfig      `toml:"queue"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	LLM         LLMConfig        `toml:"llm"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Search      SearchConfig     `toml:"search"`
	Ingestion   IngestionConfig  `toml:"ingestion"`
	Tenants     TenantsConfig    `toml:"tenants"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port             int      `toml:"port"`
	Host             string   `toml:"host"`
	CORSOrigins      []string `toml:"cors_origins"`
	CORSAllowMethods []string `toml:"cors_allow_methods"`
	CORSAllowHeaders []string `toml:"cors_allow_headers"`
}

type StorageConfig struct {
	Badger  BadgerConfig `toml:"badger"`
	Backend string       `toml:"backend"`           // "local" (s3-compatible backends plug in behind the blob interface)
	Root    string       `toml:"file_storage_root"` // local-mode root directory
	SignKey string       `toml:"sign_key"`          // HMAC key for presigned download URLs
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s"
	Concurrency       int    `toml:"concurrency"`        // concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m"
	MaxReceive        int    `toml:"max_receive"`        // redeliveries before dead-letter
	QueueName         string `toml:"queue_name"`         // queue name prefix
	JobTimeout        string `toml:"job_timeout"`        // per-run handler timeout
	ResultTTL         string `toml:"result_ttl"`         // terminal job retention before cleanup
}

type EmbeddingsConfig struct {
	APIKey     string `toml:"openai_api_key"`
	BaseURL    string `toml:"base_url"` // override for tests / proxies
	Model      string `toml:"openai_embedding_model"`
	Dimensions int    `toml:"openai_embedding_dimensions"`
	BatchSize  int    `toml:"batch_size"`
}

type LLMConfig struct {
	Provider string       `toml:"provider"` // "claude" or "gemini"
	Claude   ClaudeConfig `toml:"claude"`
	Gemini   GeminiConfig `toml:"gemini"`
}

type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

type ExtractionConfig struct {
	LovePDFPublicKey string `toml:"lovepdf_public_key"`
	LovePDFSecretKey string `toml:"lovepdf_secret_key"`
	LovePDFBaseURL   string `toml:"lovepdf_base_url"`
	WorkDir          string `toml:"work_dir"`       // embedded-image working directory
	ExtractImages    bool   `toml:"extract_images"` // pull embedded images out of PDFs
	ChunkSize        int    `toml:"chunk_size"`
	ChunkOverlap     int    `toml:"chunk_overlap"`
}

type SearchConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	SemanticWeight      float64 `toml:"semantic_weight"`
	KeywordWeight       float64 `toml:"keyword_weight"`
	MetadataWeight      float64 `toml:"metadata_weight"`
	VectorIndexPath     string  `toml:"vector_index_path"` // empty disables the chromem index
}

type IngestionConfig struct {
	MaxFileSizeMB       int      `toml:"max_file_size_mb"`
	SupportedExtensions []string `toml:"supported_extensions"`
	URLDownloadTimeout  string   `toml:"url_download_timeout"`
	BulkBatchSize       int      `toml:"bulk_ingestion_batch_size"`
}

type TenantsConfig struct {
	// Bootstrap API keys accepted at startup, formatted "slug:plaintext-key".
	// Each entry resolves to the tenant with that slug.
	APIKeys []string `toml:"api_keys"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// LoadConfig loads configuration from a TOML file with environment overrides.
// A missing file is not an error; defaults plus environment apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies INDICIUM_* environment variables over file values
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INDICIUM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INDICIUM_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("INDICIUM_DATABASE_PATH"); v != "" {
		cfg.Storage.Badger.Path = v
	}
	if v := os.Getenv("INDICIUM_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("INDICIUM_FILE_STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embeddings.APIKey = v
	}
	if v := os.Getenv("INDICIUM_EMBEDDING_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("INDICIUM_EMBEDDING_DIMENSIONS"); v != "" {
		if dims, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.Dimensions = dims
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("LOVEPDF_PUBLIC_KEY"); v != "" {
		cfg.Extraction.LovePDFPublicKey = v
	}
	if v := os.Getenv("LOVEPDF_SECRET_KEY"); v != "" {
		cfg.Extraction.LovePDFSecretKey = v
	}
	if v := os.Getenv("INDICIUM_API_KEYS"); v != "" {
		cfg.Tenants.APIKeys = strings.Split(v, ",")
	}
	if v := os.Getenv("INDICIUM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration invariants that would otherwise surface late
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.Backend != "local" {
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue concurrency must be positive")
	}
	for _, d := range []struct {
		name, value string
	}{
		{"queue.poll_interval", c.Queue.PollInterval},
		{"queue.visibility_timeout", c.Queue.VisibilityTimeout},
		{"queue.job_timeout", c.Queue.JobTimeout},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", d.name, d.value)
		}
	}
	return nil
}

// PollIntervalDuration returns the parsed queue poll interval
func (c *QueueConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// VisibilityTimeoutDuration returns the parsed message visibility timeout
func (c *QueueConfig) VisibilityTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.VisibilityTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// JobTimeoutDuration returns the parsed per-run job timeout
func (c *QueueConfig) JobTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.JobTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ResultTTLDuration returns how long terminal jobs are kept before cleanup
func (c *QueueConfig) ResultTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.ResultTTL)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}
