package llmport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseStreamAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockStreamingClient extends BedrockClient with the ConverseStream call
// the voice session bridge uses for low-latency token-by-token generation.
type BedrockStreamingClient struct {
	*BedrockClient
	streamAPI bedrockConverseStreamAPI
}

// NewBedrockStreamingClient wraps a Bedrock runtime client that supports
// both Converse and ConverseStream.
func NewBedrockStreamingClient(api interface {
	bedrockConverseAPI
	bedrockConverseStreamAPI
}, modelID string) *BedrockStreamingClient {
	return &BedrockStreamingClient{
		BedrockClient: NewBedrockClient(api, modelID),
		streamAPI:     api,
	}
}

var _ StreamingClient = (*BedrockStreamingClient)(nil)

func (b *BedrockStreamingClient) CompleteStream(ctx context.Context, req LLMRequest) (<-chan StreamChunk, error) {
	model := req.Model
	if model == "" {
		model = b.modelID
	}

	var systemBlocks []brtypes.SystemContentBlock
	for _, s := range req.System {
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: s})
	}
	messages, err := toBedrockMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  &model,
		System:   systemBlocks,
		Messages: messages,
	}
	if len(req.Tools) > 0 {
		toolConfig, err := toBedrockToolConfig(req.Tools)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = toolConfig
	}

	out, err := b.streamAPI.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("llmport: bedrock converse stream failed: %w", Retryable(err))
	}

	ch := make(chan StreamChunk, 8)
	go func() {
		defer close(ch)
		stream := out.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			switch e := event.(type) {
			case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
				if textDelta, ok := e.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok {
					ch <- StreamChunk{TextDelta: textDelta.Value}
				}
			case *brtypes.ConverseStreamOutputMemberMetadata:
				if e.Value.Usage != nil {
					usage := TokenUsage{
						InputTokens:  int(derefInt32(e.Value.Usage.InputTokens)),
						OutputTokens: int(derefInt32(e.Value.Usage.OutputTokens)),
						TotalTokens:  int(derefInt32(e.Value.Usage.TotalTokens)),
					}
					ch <- StreamChunk{Usage: &usage}
				}
			case *brtypes.ConverseStreamOutputMemberMessageStop:
				ch <- StreamChunk{Done: true}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- StreamChunk{Err: err}
		}
	}()

	return ch, nil
}
