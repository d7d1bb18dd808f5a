package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const factoryLogPrefix = "llm:factory"

// Options selects and configures a provider.
type Options struct {
	Provider      string
	ModelID       string
	Region        string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	// AWSConfig is used by the bedrock provider; it carries the shared retry and
	// timeout settings.
	AWSConfig aws.Config
	// LogActivity logs prompts, responses and usage for every call.
	LogActivity bool
}

// New builds the Completer for opts.Provider.
func New(ctx context.Context, opts Options) (Completer, error) {
	var c Completer
	switch opts.Provider {
	case "", "bedrock":
		client := bedrockruntime.NewFromConfig(opts.AWSConfig, func(o *bedrockruntime.Options) {
			if opts.Region != "" {
				o.Region = opts.Region
			}
		})
		c = NewBedrockCompleter(client, opts.ModelID)
	case "openai":
		c = NewOpenAICompleter(opts.OpenAIAPIKey, opts.ModelID, opts.OpenAIBaseURL)
	case "gemini":
		g, err := NewGeminiCompleter(ctx, opts.GeminiAPIKey, opts.ModelID)
		if err != nil {
			return nil, err
		}
		c = g
	default:
		return nil, fmt.Errorf("%s - unknown provider %q", factoryLogPrefix, opts.Provider)
	}

	slog.Info(fmt.Sprintf("%s - Using %s completer with model %s", factoryLogPrefix, opts.Provider, opts.ModelID))
	if opts.LogActivity {
		return WithActivityLog(c), nil
	}
	return c, nil
}
