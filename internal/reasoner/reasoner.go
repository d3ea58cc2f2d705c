package reasoner

import (
	"context"
	"errors"
	"fmt"

	"synapse/internal/config"
)

type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

var (
	ErrUpstream      = errors.New("upstream_error")
	ErrEmptyResponse = errors.New("empty_response")
)

// New builds the configured completer. It returns nil, nil when no provider
// is configured so callers can fall back to rule-based agents.
func New(ctx context.Context, cfg config.ReasonerConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ReasonerNone, "":
		return nil, nil
	case config.ReasonerGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		g, err := NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ReasonerOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return NewOpenAI(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown reasoner provider %q", cfg.Provider)
	}
}
