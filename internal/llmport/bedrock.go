package llmport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"
)

// bedrockConverseAPI narrows the generated Bedrock runtime client to the
// single call this package needs, so tests can substitute a fake.
type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements Client against Amazon Bedrock's Converse API,
// including tool-use blocks for the booking tools.
type BedrockClient struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockClient wraps a Bedrock runtime client. It panics on a nil api,
// matching the teacher's constructor discipline for required collaborators.
func NewBedrockClient(api bedrockConverseAPI, modelID string) *BedrockClient {
	if api == nil {
		panic("llmport: bedrock api cannot be nil")
	}
	return &BedrockClient{api: api, modelID: modelID}
}

var _ Client = (*BedrockClient)(nil)

func (b *BedrockClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
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
		return LLMResponse{}, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: &model,
		System:  systemBlocks,
		Messages: messages,
	}

	if req.MaxTokens > 0 || req.Temperature > 0 || req.TopP > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if req.MaxTokens > 0 {
			mt := int32(req.MaxTokens)
			cfg.MaxTokens = &mt
		}
		if req.Temperature > 0 {
			t := float32(req.Temperature)
			cfg.Temperature = &t
		}
		if req.TopP > 0 {
			tp := float32(req.TopP)
			cfg.TopP = &tp
		}
		input.InferenceConfig = cfg
	}

	if len(req.Tools) > 0 {
		toolConfig, err := toBedrockToolConfig(req.Tools)
		if err != nil {
			return LLMResponse{}, err
		}
		input.ToolConfig = toolConfig
	}

	out, err := b.api.Converse(ctx, input)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("llmport: bedrock converse failed: %w", Retryable(err))
	}

	text, toolCalls, err := bedrockExtractOutput(out)
	if err != nil {
		return LLMResponse{}, err
	}

	resp := LLMResponse{
		Text:       text,
		ToolCalls:  toolCalls,
		StopReason: string(out.StopReason),
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int(derefInt32(out.Usage.InputTokens)),
			OutputTokens: int(derefInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(derefInt32(out.Usage.TotalTokens)),
		}
	}
	return resp, nil
}

func derefInt32(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

func toBedrockMessages(msgs []ChatMessage) ([]brtypes.Message, error) {
	var out []brtypes.Message
	for _, m := range msgs {
		switch m.Role {
		case ChatRoleSystem:
			continue // handled separately via System blocks
		case ChatRoleUser:
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case ChatRoleAssistant:
			blocks := []brtypes.ContentBlock{}
			if m.Content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var input document.Interface
				var parsed map[string]any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &parsed); err != nil {
						return nil, fmt.Errorf("llmport: invalid tool call arguments for %s: %w", tc.Name, err)
					}
				}
				_ = input
				id := tc.ID
				name := tc.Name
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: &id,
						Name:      &name,
						Input:     docFromMap(parsed),
					},
				})
			}
			out = append(out, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
		case ChatRoleTool:
			id := m.ToolCallID
			out = append(out, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolResult{
						Value: brtypes.ToolResultBlock{
							ToolUseId: &id,
							Content: []brtypes.ToolResultContentBlock{
								&brtypes.ToolResultContentBlockMemberText{Value: m.Content},
							},
						},
					},
				},
			})
		}
	}
	return out, nil
}

func toBedrockToolConfig(tools []ToolDeclaration) (*brtypes.ToolConfiguration, error) {
	var specs []brtypes.Tool
	for _, t := range tools {
		name := t.Name
		desc := t.Description
		specs = append(specs, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        &name,
				Description: &desc,
				InputSchema: &brtypes.ToolInputSchemaMemberJson{
					Value: docFromMap(t.Parameters),
				},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: specs}, nil
}

func bedrockExtractOutput(out *bedrockruntime.ConverseOutput) (string, []ToolCall, error) {
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", nil, fmt.Errorf("llmport: unexpected bedrock output type")
	}

	var text string
	var toolCalls []ToolCall
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text += b.Value
		case *brtypes.ContentBlockMemberToolUse:
			argsJSON, err := json.Marshal(mapFromDoc(b.Value.Input))
			if err != nil {
				return "", nil, fmt.Errorf("llmport: failed to encode tool use input: %w", err)
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        derefStr(b.Value.ToolUseId),
				Name:      derefStr(b.Value.Name),
				Arguments: argsJSON,
			})
		}
	}
	return text, toolCalls, nil
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// docFromMap/mapFromDoc adapt between plain Go maps and the smithy document
// type Bedrock's tool-use blocks carry. The SDK's document.NewLazyDocument
// accepts any JSON-marshalable value, so a plain map round-trips cleanly.
func docFromMap(m map[string]any) document.Interface {
	if m == nil {
		m = map[string]any{}
	}
	return document.NewLazyDocument(m)
}

func mapFromDoc(doc document.Interface) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := doc.UnmarshalSmithyDocument(&out); err != nil {
		return map[string]any{}
	}
	return out
}
