package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

// DefaultAnthropicModel is used when no model is configured for the Anthropic oracle.
const DefaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_20250514)

// AnthropicMessager is the slice of the Anthropic client the oracle uses.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicOracle answers consolidation prompts through the Messages API.
type AnthropicOracle struct {
	messages AnthropicMessager
	model    string
	retry    RetryPolicy
}

// NewAnthropicOracle builds an oracle for apiKey. An empty model selects DefaultAnthropicModel.
func NewAnthropicOracle(apiKey, model string, retry RetryPolicy) (*AnthropicOracle, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing ANTHROPIC_API_KEY")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicOracleWith(&c.Messages, model, retry), nil
}

// NewAnthropicOracleWith wraps an existing messages client.
func NewAnthropicOracleWith(messages AnthropicMessager, model string, retry RetryPolicy) *AnthropicOracle {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicOracle{messages: messages, model: model, retry: retry}
}

func (a *AnthropicOracle) Complete(ctx context.Context, req orgchart.OracleRequest) (string, error) {
	if a.messages == nil {
		return "", errors.New("AnthropicOracle: client is nil")
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   req.MaxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(0),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := CallWithRetry(ctx, a.retry, func(ctx context.Context) (*anthropic.Message, error) {
		return a.messages.New(ctx, params)
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic response has no text content")
	}
	return sb.String(), nil
}
