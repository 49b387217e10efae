// Package embeddings contains the vendor embedding client and the span
// embedding service.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"golang.org/x/time/rate"
)

// Retry policy for the embeddings API
const (
	maxRetries = 5
	baseDelay  = 1 * time.Second
	maxDelay   = 60 * time.Second

	// Default batch size per API call
	defaultBatchSize = 100

	// Character cap approximating the vendor token limit (~8k tokens)
	maxTextChars = 32000
)

// ErrRateLimited marks a rate-limit failure that survived all retries
var ErrRateLimited = errors.New("embedding rate limit exceeded")

// OpenAIClient generates embeddings over the vendor HTTP API with batching,
// bounded exponential backoff and token accounting. Requests within a batch
// preserve input order; empty inputs map to zero vectors at their index.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	batchSize  int

	client     *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
	tokensUsed atomic.Int64
}

// NewOpenAIClient creates an embedding client from configuration
func NewOpenAIClient(cfg *common.EmbeddingsConfig, logger arbor.ILogger) *OpenAIClient {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		client:     &http.Client{Timeout: 60 * time.Second},
		// Soft client-side ceiling so a busy worker backs off before the
		// vendor does
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		logger:  logger,
	}
}

// Dimensions returns the configured vector dimensionality
func (c *OpenAIClient) Dimensions() int { return c.dimensions }

// TokensUsed returns the total tokens consumed by this client instance
func (c *OpenAIClient) TokensUsed() int64 { return c.tokensUsed.Load() }

// EmbedText embeds a single text
func (c *OpenAIClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a list of texts. The result is index-aligned with the
// input: len(out) == len(texts), and empty inputs yield zero vectors.
func (c *OpenAIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = cleanText(t)
	}

	nonEmptyIdx := make([]int, 0, len(cleaned))
	nonEmpty := make([]string, 0, len(cleaned))
	for i, t := range cleaned {
		if t != "" {
			nonEmptyIdx = append(nonEmptyIdx, i)
			nonEmpty = append(nonEmpty, t)
		}
	}

	result := make([][]float32, len(texts))
	for i := range result {
		result[i] = make([]float32, c.dimensions)
	}
	if len(nonEmpty) == 0 {
		return result, nil
	}

	// Batches run sequentially; order within each batch is preserved
	var embedded [][]float32
	for start := 0; start < len(nonEmpty); start += c.batchSize {
		end := start + c.batchSize
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}
		batch, err := c.embedBatchWithRetry(ctx, nonEmpty[start:end])
		if err != nil {
			return nil, err
		}
		embedded = append(embedded, batch...)
	}

	for i, idx := range nonEmptyIdx {
		result[idx] = embedded[i]
	}
	return result, nil
}

func (c *OpenAIClient) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, retryAfter, err := c.callAPI(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}
		if attempt == maxRetries {
			break
		}

		delay := backoffDelay(attempt)
		if retryAfter > 0 {
			// Vendor-provided retry-after overrides the computed delay
			delay = retryAfter
		}

		c.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", maxRetries+1).
			Dur("delay", delay).
			Msg("Embedding request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if strings.Contains(lastErr.Error(), "status 429") {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, maxRetries+1, lastErr)
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxRetries+1, lastErr)
}

// retryableError wraps rate-limit and transient transport failures
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) callAPI(ctx context.Context, batch []string) ([][]float32, time.Duration, error) {
	if c.apiKey == "" {
		return nil, 0, fmt.Errorf("embedding API key not configured")
	}

	body, err := json.Marshal(embeddingRequest{
		Model:      c.model,
		Input:      batch,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		// Connection and timeout errors follow the same retry policy
		return nil, 0, &retryableError{fmt.Errorf("embedding request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		return nil, retryAfter, &retryableError{fmt.Errorf("embedding API returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) != len(batch) {
		return nil, 0, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(parsed.Data), len(batch))
	}

	c.tokensUsed.Add(parsed.Usage.TotalTokens)

	vectors := make([][]float32, len(batch))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, 0, fmt.Errorf("embedding API returned out-of-range index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, 0, nil
}

// backoffDelay computes min(base * 2^attempt * (1 + U[0,0.25]), max)
func backoffDelay(attempt int) time.Duration {
	delay := float64(baseDelay) * float64(int64(1)<<attempt)
	delay *= 1 + rand.Float64()*0.25
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(header, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

// cleanText collapses whitespace and truncates to the character cap
func cleanText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxTextChars {
		text = text[:maxTextChars]
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
