package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
)

const testDims = 8

func embeddingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOpenAIClient(&common.EmbeddingsConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "text-embedding-3-small",
		Dimensions: testDims,
		BatchSize:  3,
	}, common.GetLogger())
	return server, client
}

func okEmbeddings(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingResponse{}
		resp.Usage.TotalTokens = int64(len(req.Input) * 7)
		for i := range req.Input {
			vector := make([]float32, testDims)
			vector[0] = float32(i + 1)
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vector})
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestEmbedTextsAlignment(t *testing.T) {
	_, client := embeddingServer(t, okEmbeddings(t))

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	vectors, err := client.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for _, v := range vectors {
		assert.Len(t, v, testDims)
	}
}

func TestEmbedTextsZeroVectorsForEmpty(t *testing.T) {
	_, client := embeddingServer(t, okEmbeddings(t))

	texts := []string{"alpha", "", "gamma", "   ", "epsilon"}
	vectors, err := client.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	zero := make([]float32, testDims)
	assert.Equal(t, zero, vectors[1])
	assert.Equal(t, zero, vectors[3])
	assert.NotEqual(t, zero, vectors[0])
	assert.NotEqual(t, zero, vectors[4])
}

func TestEmbedTextsAllEmpty(t *testing.T) {
	called := atomic.Bool{}
	_, client := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	})

	vectors, err := client.EmbedTexts(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.False(t, called.Load(), "no API call for all-empty input")
}

func TestEmbedTextsRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	_, client := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		okEmbeddings(t)(w, r)
	})

	vectors, err := client.EmbedTexts(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestEmbedTextsFatalOnClientError(t *testing.T) {
	var attempts atomic.Int32
	_, client := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad input"}`))
	})

	_, err := client.EmbedTexts(context.Background(), []string{"alpha"})
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load(), "client errors are not retried")
}

func TestEmbedTextsTokenAccounting(t *testing.T) {
	_, client := embeddingServer(t, okEmbeddings(t))

	_, err := client.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(14), client.TokensUsed())
}

func TestEmbedTextsBatching(t *testing.T) {
	var calls atomic.Int32
	_, client := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		okEmbeddings(t)(w, r)
	})

	// Batch size 3, 7 inputs → 3 calls
	texts := []string{"a", "b", "c", "d", "e", "f", "g"}
	vectors, err := client.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 7)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", cleanText("  a \n b\t\tc "))
	assert.Equal(t, "", cleanText("   "))

	long := make([]byte, maxTextChars+500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, cleanText(string(long)), maxTextChars)
}

func TestBackoffDelayBounds(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		delay := backoffDelay(attempt)
		assert.LessOrEqual(t, delay, maxDelay)
		assert.Greater(t, int64(delay), int64(0))
	}
	// First attempt stays near the base delay
	assert.GreaterOrEqual(t, backoffDelay(0), baseDelay)
}
