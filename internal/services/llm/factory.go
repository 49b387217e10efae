package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
)

// NewService builds the configured LLM provider. Returns (nil, nil) when no
// provider has credentials: fact extraction is then skipped, not failed.
func NewService(cfg *common.LLMConfig, logger arbor.ILogger) (interfaces.LLMService, error) {
	switch cfg.Provider {
	case "claude", "":
		if cfg.Claude.APIKey == "" {
			if cfg.Gemini.APIKey != "" {
				logger.Info().Msg("Claude not configured, falling back to Gemini provider")
				return NewGeminiService(&cfg.Gemini, logger)
			}
			logger.Warn().Msg("No LLM provider configured - fact extraction disabled")
			return nil, nil
		}
		return NewClaudeService(&cfg.Claude, logger)
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			logger.Warn().Msg("No LLM provider configured - fact extraction disabled")
			return nil, nil
		}
		return NewGeminiService(&cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}
