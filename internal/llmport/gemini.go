package llmport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client using Google's Gemini API. It is the
// fallback LLM provider when Bedrock is unavailable (spec §2, LLM Port).
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a new Gemini LLM client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llmport: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llmport: failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client, modelID: modelID}, nil
}

var _ Client = (*GeminiClient)(nil)

func (c *GeminiClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		t := float32(req.Temperature)
		model.SetTemperature(t)
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.ResponseFormat == ResponseFormatJSONObject {
		model.ResponseMIMEType = "application/json"
	}

	if len(req.System) > 0 {
		systemText := strings.Join(req.System, "\n\n")
		if strings.TrimSpace(systemText) != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}

	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{geminiTool(req.Tools)}
	}

	cs := model.StartChat()
	if len(req.Messages) > 1 {
		for _, msg := range req.Messages[:len(req.Messages)-1] {
			part, role, ok := geminiHistoryPart(msg)
			if !ok {
				continue
			}
			cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{part}})
		}
	}

	if len(req.Messages) == 0 {
		return LLMResponse{}, errors.New("llmport: gemini requires at least one message")
	}
	last := req.Messages[len(req.Messages)-1]
	lastPart, _, ok := geminiHistoryPart(last)
	if !ok {
		lastPart = genai.Text(last.Content)
	}

	resp, err := cs.SendMessage(ctx, lastPart)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("llmport: gemini completion failed: %w", Retryable(err))
	}

	if len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("llmport: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return LLMResponse{}, errors.New("llmport: gemini returned empty content")
	}

	var textBuilder strings.Builder
	var toolCalls []ToolCall
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			textBuilder.WriteString(string(p))
		case genai.FunctionCall:
			argsJSON, err := json.Marshal(p.Args)
			if err != nil {
				return LLMResponse{}, fmt.Errorf("llmport: failed to encode gemini function call args: %w", err)
			}
			toolCalls = append(toolCalls, ToolCall{Name: p.Name, Arguments: argsJSON})
		}
	}

	result := LLMResponse{
		Text:       strings.TrimSpace(textBuilder.String()),
		ToolCalls:  toolCalls,
		StopReason: string(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}

func geminiHistoryPart(msg ChatMessage) (genai.Part, string, bool) {
	switch msg.Role {
	case ChatRoleSystem:
		return nil, "", false
	case ChatRoleUser:
		return genai.Text(msg.Content), "user", true
	case ChatRoleAssistant:
		return genai.Text(msg.Content), "model", true
	case ChatRoleTool:
		return genai.FunctionResponse{
			Name:     msg.ToolCallID,
			Response: map[string]any{"result": msg.Content},
		}, "function", true
	}
	return nil, "", false
}

func geminiTool(decls []ToolDeclaration) *genai.Tool {
	var fns []*genai.FunctionDeclaration
	for _, d := range decls {
		fns = append(fns, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  geminiSchema(d.Parameters),
		})
	}
	return &genai.Tool{FunctionDeclarations: fns}
}

func geminiSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return &schema
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
