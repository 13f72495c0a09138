package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/ports"
)

// New selects the reasoning provider. Without an API key it returns a nil
// reasoner so that the enrichment stage reports the service as unavailable.
func New(ctx context.Context, cfg config.ReasonerConfig, logger *slog.Logger) (ports.Reasoner, error) {
	if cfg.APIKey == "" {
		logger.Warn("reasoner api key missing, enrichment disabled", "provider", cfg.Provider)
		return nil, nil
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai", "deepseek":
		return NewChatGPTClient(cfg)
	case "anthropic":
		return NewAnthropicClient(cfg)
	case "gemini":
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown reasoner provider %q", cfg.Provider)
	}
}
