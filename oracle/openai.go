package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is the OpenAI-compatible chat completions host used when none is configured.
const DefaultBaseURL = "https://api.blackbox.ai/"

// DefaultOpenAIModel is the model requested from the default host.
const DefaultOpenAIModel = "blackboxai/openai/gpt-4"

// OpenAIConfig configures an OpenAI-compatible chat completions backend.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// OpenAIOracle implements Oracle against any OpenAI-compatible chat completions API.
// The SDK client is created on first use.
type OpenAIOracle struct {
	config OpenAIConfig
	once   sync.Once
	client *openai.Client
}

// NewOpenAIOracle creates an OpenAI-compatible oracle.
func NewOpenAIOracle(cfg OpenAIConfig) *OpenAIOracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return &OpenAIOracle{config: cfg}
}

func (o *OpenAIOracle) init() {
	o.once.Do(func() {
		opts := []option.RequestOption{
			option.WithAPIKey(o.config.APIKey),
			option.WithBaseURL(o.config.BaseURL),
			option.WithMaxRetries(0),
		}
		if o.config.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(o.config.HTTPClient))
		}
		client := openai.NewClient(opts...)
		o.client = &client
	})
}

// Complete sends the conversation as a chat completion request.
func (o *OpenAIOracle) Complete(ctx context.Context, messages []Message) (string, error) {
	if o.config.APIKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrAuth)
	}
	o.init()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.config.Model),
		Messages: toOpenAIMessages(messages),
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty response content", ErrUnavailable)
	}
	return content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
