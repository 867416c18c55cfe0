package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/medscribe/notequeue/internal/domain"
)

// OpenAIGenerator produces diagnoses via the OpenAI chat completions API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator builds a generator. Extra request options (base URL,
// HTTP client) are mainly for tests.
func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	// Retries are disabled: a failed entry is recovered by regeneration,
	// and the dispatcher's timeout must bound the whole call.
	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	return &OpenAIGenerator{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, params GenerateParams, text string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(params)),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai chat completion: %v", domain.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.ErrEmptyResult
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", domain.ErrEmptyResult
	}
	return out, nil
}

var _ Generator = (*OpenAIGenerator)(nil)
