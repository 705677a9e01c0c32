package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Text generation
	LLMProvider     string
	OllamaURL       string
	RankModel       string
	RefineModel     string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GoogleAPIKey    string

	// Ranking
	TopN           int
	PerDocumentCap int
	FallbackPolicy string
	RankTimeout    time.Duration

	// Extraction and refinement
	WindowLines          int
	MaxWorkers           int
	RefineTimeout        time.Duration
	UnitTimeout          time.Duration
	RefineMaxInputTokens int

	// Documents
	LibraryDir           string
	OutlineDir           string
	OutlineFromSource    bool
	PDFFallbackPdftotext bool

	// Jobs
	MaxQueueSize    int
	MaxRequestBytes int64
	JobTTL          time.Duration

	LLMStatsWindow time.Duration
	LogLevel       string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("SECTIONRANK_API_KEY"),

		LLMProvider:     strings.ToLower(envOr("LLM_PROVIDER", "ollama")),
		OllamaURL:       envOr("OLLAMA_URL", "http://localhost:11434"),
		RankModel:       envOr("RANK_MODEL", "qwen3:0.6b"),
		RefineModel:     envOr("REFINE_MODEL", "qwen3:0.6b"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),

		TopN:           envInt("TOP_N", 5),
		PerDocumentCap: envInt("PER_DOCUMENT_CAP", 2),
		FallbackPolicy: envOr("FALLBACK_POLICY", "level-first"),
		RankTimeout:    envDuration("RANK_TIMEOUT", 90*time.Second),

		WindowLines:          envInt("WINDOW_LINES", 20),
		MaxWorkers:           envInt("MAX_WORKERS", 8),
		RefineTimeout:        envDuration("REFINE_TIMEOUT", 60*time.Second),
		UnitTimeout:          envDuration("UNIT_TIMEOUT", 3*time.Minute),
		RefineMaxInputTokens: envInt("REFINE_MAX_INPUT_TOKENS", 512),

		LibraryDir:           envOr("LIBRARY_DIR", "./library"),
		OutlineDir:           envOr("OUTLINE_DIR", "./library/outlines"),
		OutlineFromSource:    envBool("OUTLINE_FROM_SOURCE", true),
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		MaxQueueSize:    envInt("MAX_QUEUE_SIZE", 20),
		MaxRequestBytes: envInt64("MAX_REQUEST_BYTES", 1<<20),
		JobTTL:          envDuration("JOB_TTL", 1*time.Hour),

		LLMStatsWindow: envDuration("LLM_STATS_WINDOW", 1*time.Hour),
		LogLevel:       envOr("LOG_LEVEL", "info"),
	}

	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	if cfg.PerDocumentCap <= 0 {
		cfg.PerDocumentCap = 2
	}
	if cfg.RankTimeout <= 0 {
		cfg.RankTimeout = 90 * time.Second
	}
	if cfg.WindowLines <= 0 {
		cfg.WindowLines = 20
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.RefineTimeout <= 0 {
		cfg.RefineTimeout = 60 * time.Second
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 3 * time.Minute
	}
	if cfg.RefineMaxInputTokens <= 0 {
		cfg.RefineMaxInputTokens = 512
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 20
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = 1 << 20
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LLMStatsWindow <= 0 {
		cfg.LLMStatsWindow = 1 * time.Hour
	}

	return cfg
}

// Validate checks the settings every entry point needs.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "ollama":
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required for provider ollama")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for provider openai")
		}
	case "gemini":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for provider gemini")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not one of ollama, anthropic, openai, gemini", c.LLMProvider)
	}
	switch c.FallbackPolicy {
	case "level-first", "document-order":
	default:
		return fmt.Errorf("FALLBACK_POLICY %q is not one of level-first, document-order", c.FallbackPolicy)
	}
	if c.UnitTimeout < c.RefineTimeout {
		return fmt.Errorf("UNIT_TIMEOUT (%s) must not be shorter than REFINE_TIMEOUT (%s)", c.UnitTimeout, c.RefineTimeout)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("SECTIONRANK_API_KEY is required")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
