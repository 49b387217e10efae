package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService implements interfaces.LLMService using the Gemini API
type GeminiService struct {
	client    *genai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewGeminiService creates a Gemini LLM service
func NewGeminiService(cfg *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 4 * time.Minute
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiService{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (s *GeminiService) ProviderName() string { return "gemini" }

// Complete sends the conversation and returns the model text. Gemini takes
// a single prompt, so prior turns are folded into one transcript.
func (s *GeminiService) Complete(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var systemText string
	var parts []string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			parts = append(parts, "Assistant: "+msg.Content)
		default:
			parts = append(parts, msg.Content)
		}
	}
	prompt := strings.Join(parts, "\n\n")

	config := &genai.GenerateContentConfig{}
	if s.maxTokens > 0 {
		config.MaxOutputTokens = int32(s.maxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemText}},
		}
	}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	text := resp.Text()
	s.logger.Debug().
		Str("model", s.model).
		Dur("duration", time.Since(start)).
		Int("response_chars", len(text)).
		Msg("Gemini completion finished")
	return text, nil
}
