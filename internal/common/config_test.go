package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 1536, cfg.Embeddings.Dimensions)
	assert.Equal(t, 0.7, cfg.Search.SimilarityThreshold)
	assert.Equal(t, 0.7, cfg.Search.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.3, cfg.Search.MetadataWeight)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicium.toml")
	content := `
environment = "production"

[server]
port = 9090

[embeddings]
openai_embedding_dimensions = 768

[queue]
concurrency = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 768, cfg.Embeddings.Dimensions)
	assert.Equal(t, 8, cfg.Queue.Concurrency)
	// Untouched sections keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("INDICIUM_SERVER_PORT", "7070")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("INDICIUM_API_KEYS", "acme:key-one,globex:key-two")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)
	assert.Equal(t, []string{"acme:key-one", "globex:key-two"}, cfg.Tenants.APIKeys)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Queue.PollInterval = "not-a-duration"
	assert.Error(t, cfg.Validate())

	assert.NoError(t, DefaultConfig().Validate())
}

func TestQueueDurations(t *testing.T) {
	cfg := &QueueConfig{PollInterval: "2s", VisibilityTimeout: "3m", JobTimeout: "10m", ResultTTL: "24h"}
	assert.Equal(t, "2s", cfg.PollIntervalDuration().String())
	assert.Equal(t, "3m0s", cfg.VisibilityTimeoutDuration().String())
	assert.Equal(t, "10m0s", cfg.JobTimeoutDuration().String())
	assert.Equal(t, "24h0m0s", cfg.ResultTTLDuration().String())
}

func TestNewIDPrefix(t *testing.T) {
	id := NewID(PrefixDocument)
	assert.Contains(t, id, "doc_")
	assert.NotEqual(t, id, NewID(PrefixDocument))
}
