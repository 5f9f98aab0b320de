package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"FinanceFlow/internal/domain"
)

// Completer sends one system/user exchange and returns the raw JSON text
// produced by the model.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Config selects and configures the completion provider.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	// Logger receives per-call debug lines (model, latency, token usage).
	Logger *slog.Logger
}

// NewCompleter builds the provider-specific completer. A missing API key
// returns domain.ErrNotConfigured.
func NewCompleter(cfg Config) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm api key: %w", domain.ErrNotConfigured)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return newOpenAICompleter(cfg), nil
	case "anthropic":
		return newAnthropicCompleter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
