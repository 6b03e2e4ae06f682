package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/orgchart-consolidator/orgchart"
)

// DefaultOpenAIModel is used when no model is configured for the OpenAI oracle.
const DefaultOpenAIModel = "gpt-5-mini"

// ResponsesAPI is the slice of the OpenAI client the oracle uses.
type ResponsesAPI interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

var consolidationSchema = GenerateSchema[orgchart.ConsolidationResult]("parent_id")

// OpenAIOracle answers consolidation prompts through the Responses API with a strict JSON
// schema, so the model cannot return anything but a ConsolidationResult.
type OpenAIOracle struct {
	responses ResponsesAPI
	model     string
	retry     RetryPolicy
}

// NewOpenAIOracle builds an oracle for apiKey. An empty model selects DefaultOpenAIModel.
func NewOpenAIOracle(apiKey, model string, retry RetryPolicy) (*OpenAIOracle, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIOracleWith(&client.Responses, model, retry), nil
}

// NewOpenAIOracleWith wraps an existing responses client.
func NewOpenAIOracleWith(api ResponsesAPI, model string, retry RetryPolicy) *OpenAIOracle {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIOracle{responses: api, model: model, retry: retry}
}

func (o *OpenAIOracle) Complete(ctx context.Context, req orgchart.OracleRequest) (string, error) {
	if o.responses == nil {
		return "", errors.New("OpenAIOracle: client is nil")
	}
	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(req.MaxTokens),
		Instructions:    openai.String(req.System),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "ConsolidationResult",
					Schema:      consolidationSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Consolidated org-chart entities JSON"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := CallWithRetry(ctx, o.retry, func(ctx context.Context) (*responses.Response, error) {
		return o.responses.New(ctx, params)
	})
	if err != nil {
		return "", err
	}
	return resp.OutputText(), nil
}
