package llm

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// GeminiCompleter calls the Gemini API through the Google GenAI SDK.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a GeminiCompleter using the Gemini API backend.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete sends the prompt with temperature zero.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)}
	if prompt.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: prompt.System}}}
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}

	c := &Completion{Text: resp.Text(), Latency: time.Since(start)}
	if len(resp.Candidates) > 0 {
		c.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		c.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return c, nil
}
