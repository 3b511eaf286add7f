package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured for the anthropic provider.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicConfig configures the Anthropic Messages API backend.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// AnthropicOracle implements Oracle with the Anthropic Messages API.
type AnthropicOracle struct {
	config AnthropicConfig
	once   sync.Once
	client *anthropic.Client
}

// NewAnthropicOracle creates an Anthropic-backed oracle.
func NewAnthropicOracle(cfg AnthropicConfig) *AnthropicOracle {
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &AnthropicOracle{config: cfg}
}

func (o *AnthropicOracle) init() {
	o.once.Do(func() {
		opts := []option.RequestOption{
			option.WithAPIKey(o.config.APIKey),
			option.WithMaxRetries(0),
		}
		if o.config.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(o.config.BaseURL))
		}
		client := anthropic.NewClient(opts...)
		o.client = &client
	})
}

// Complete sends the conversation to the Messages API. System turns are folded into the
// request's system prompt.
func (o *AnthropicOracle) Complete(ctx context.Context, messages []Message) (string, error) {
	if o.config.APIKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrAuth)
	}
	o.init()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(o.config.Model),
		MaxTokens: int64(o.config.MaxTokens),
	}
	var system []string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	message, err := o.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		b.WriteString(block.Text)
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", fmt.Errorf("%w: empty response content", ErrUnavailable)
	}
	return content, nil
}
