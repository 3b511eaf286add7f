package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

// DefaultBedrockModel is used when no model is configured for the bedrock provider.
const DefaultBedrockModel = "anthropic.claude-3-5-haiku-20241022-v1:0"

// BedrockInvoker is the subset of the Bedrock runtime client used by BedrockOracle.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockOracle implements Oracle using Anthropic models hosted on AWS Bedrock.
type BedrockOracle struct {
	client    BedrockInvoker
	modelID   string
	maxTokens int
}

// NewBedrockOracle loads the default AWS credential chain for region.
func NewBedrockOracle(ctx context.Context, region, modelID string, maxTokens int) (*BedrockOracle, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewBedrockOracleWithClient(bedrockruntime.NewFromConfig(cfg), modelID, maxTokens), nil
}

// NewBedrockOracleWithClient wraps an existing invoker.
func NewBedrockOracleWithClient(client BedrockInvoker, modelID string, maxTokens int) *BedrockOracle {
	if modelID == "" {
		modelID = DefaultBedrockModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &BedrockOracle{client: client, modelID: modelID, maxTokens: maxTokens}
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content    []bedrockContent `json:"content"`
	StopReason string           `json:"stop_reason"`
}

// Complete invokes the model with an Anthropic messages payload.
func (o *BedrockOracle) Complete(ctx context.Context, messages []Message) (string, error) {
	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        o.maxTokens,
	}
	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := string(RoleUser)
		if m.Role == RoleAssistant {
			role = string(RoleAssistant)
		}
		req.Messages = append(req.Messages, bedrockMessage{
			Role:    role,
			Content: []bedrockContent{{Type: "text", Text: m.Content}},
		})
	}
	req.System = strings.Join(system, "\n\n")

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := o.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(o.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		if isBedrockAuthError(err) {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %v", ErrUnavailable, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: no content in response", ErrUnavailable)
	}
	text := strings.TrimSpace(resp.Content[0].Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response content", ErrUnavailable)
	}
	return text, nil
}

func isBedrockAuthError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return true
		}
	}
	return false
}
