package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const bedrockLogPrefix = "llm:bedrock"

// ConverseAPI is the subset of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockCompleter calls the Bedrock Converse API. The model id may be a foundation
// model id or an inference profile id/ARN.
type BedrockCompleter struct {
	client  ConverseAPI
	modelID string
}

// NewBedrockCompleter creates a BedrockCompleter.
func NewBedrockCompleter(client ConverseAPI, modelID string) *BedrockCompleter {
	return &BedrockCompleter{client: client, modelID: modelID}
}

// Complete sends the prompt with temperature zero.
func (b *BedrockCompleter) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt.User}},
		}},
		InferenceConfig: &types.InferenceConfiguration{Temperature: aws.Float32(0)},
	}
	if prompt.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: prompt.System}}
	}

	start := time.Now()
	out, err := b.client.Converse(ctx, input)
	if err != nil {
		return nil, &Error{Provider: "bedrock", Err: err}
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, &Error{Provider: "bedrock", Err: fmt.Errorf("%s - unexpected output type %T", bedrockLogPrefix, out.Output)}
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}

	c := &Completion{
		Text:       sb.String(),
		StopReason: string(out.StopReason),
		Latency:    time.Since(start),
	}
	if out.Usage != nil {
		c.Usage = Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	if out.Metrics != nil && out.Metrics.LatencyMs != nil {
		c.Latency = time.Duration(aws.ToInt64(out.Metrics.LatencyMs)) * time.Millisecond
	}
	return c, nil
}
