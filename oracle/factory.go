package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config selects and configures an oracle backend.
type Config struct {
	Provider          string // "openai" (any compatible host), "anthropic" or "bedrock"
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BedrockRegion     string
}

// New builds the configured oracle wrapped with the timeout and rate-limit decorators.
func New(ctx context.Context, cfg Config) (Oracle, error) {
	var base Oracle
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		base = NewOpenAIOracle(OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})

	case "anthropic":
		base = NewAnthropicOracle(AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})

	case "bedrock":
		if cfg.BedrockRegion == "" {
			return nil, fmt.Errorf("bedrock_region is required for bedrock oracle")
		}
		b, err := NewBedrockOracle(ctx, cfg.BedrockRegion, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bedrock oracle: %w", err)
		}
		base = b

	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}

	return NewRateLimited(WithTimeout(base, cfg.Timeout), cfg.RequestsPerSecond, cfg.Burst), nil
}
