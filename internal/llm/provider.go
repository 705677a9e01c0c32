package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Provider names accepted by New.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// ProviderConfig carries the connection settings for every provider; only
// the fields for the selected one are read.
type ProviderConfig struct {
	Provider        string
	OllamaURL       string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GoogleAPIKey    string
	HTTPClient      *http.Client
}

// New builds a Generator for model on the configured provider.
func New(ctx context.Context, cfg ProviderConfig, model string) (Generator, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		c, err := NewOllamaClient(cfg.OllamaURL, model, cfg.HTTPClient)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %s", cfg.Provider)
		}
		return NewClaudeClient(cfg.AnthropicAPIKey, model), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for provider %s", cfg.Provider)
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model), nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.GoogleAPIKey, model)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewStage builds the Generator for one pipeline stage, wrapped with retries,
// latency stats and metrics.
func NewStage(ctx context.Context, cfg ProviderConfig, model, stage string, stats *LLMStats, log *slog.Logger) (*Instrumented, error) {
	g, err := New(ctx, cfg, model)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", stage, err)
	}
	return NewInstrumented(g, stage, stats, log), nil
}
