package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAICompleter calls the OpenAI chat completions API, or any compatible endpoint
// when a base URL is given.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates an OpenAICompleter.
func NewOpenAICompleter(apiKey, model, baseURL string) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAICompleter{client: &client, model: model}
}

// Complete sends the prompt with temperature zero.
func (o *OpenAICompleter) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, &Error{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: "openai", Err: errors.New("no choices returned")}
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Latency:    time.Since(start),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}
