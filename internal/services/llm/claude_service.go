// Package llm provides the chat-completion providers behind the narrow
// LLMService interface. Claude is the default; Gemini is the alternate.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
)

// ClaudeService implements interfaces.LLMService using the Anthropic API
type ClaudeService struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewClaudeService creates a Claude LLM service
func NewClaudeService(cfg *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 4 * time.Minute
	}

	return &ClaudeService{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (s *ClaudeService) ProviderName() string { return "claude" }

// Complete sends the conversation and returns the assistant text
func (s *ClaudeService) Complete(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessages(messages)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	start := time.Now()
	message, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude completion failed: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	s.logger.Debug().
		Str("model", s.model).
		Dur("duration", time.Since(start)).
		Int("response_chars", len(text)).
		Msg("Claude completion finished")
	return text, nil
}

// convertMessages maps interface messages to Claude params, extracting the
// first system message for the System parameter
func convertMessages(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUser := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUser = true
			break
		}
	}
	if !hasUser {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	var systemText string
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return converted, systemText, nil
}
