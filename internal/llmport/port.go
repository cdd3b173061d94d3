// Package llmport abstracts chat-completion with an LLM, including tool
// declarations and tool-call responses, so the turn orchestrator and voice
// bridge never depend on a concrete provider SDK directly.
package llmport

import (
	"context"
	"encoding/json"
)

// ChatRole identifies the speaker of one message in a chat history.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleTool      ChatRole = "tool"
)

// ChatMessage is one turn of chat history. ToolCallID is set on a
// ChatRoleTool message to identify which tool call it answers; ToolCalls is
// set on an assistant message that requested tool execution.
type ChatMessage struct {
	Role       ChatRole
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolDeclaration describes one callable tool in the shape the provider
// expects: a name, a human description, and a JSON-schema parameter object.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema, e.g. {"type":"object","properties":{...},"required":[...]}
}

// ToolCall is the model's request to execute a named tool with the given
// arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// TokenUsage reports input/output token counts for a completion.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ResponseFormat constrains the shape of the model's reply.
type ResponseFormat string

const (
	ResponseFormatText       ResponseFormat = ""
	ResponseFormatJSONObject ResponseFormat = "json_object"
)

// LLMRequest is one chat-completion request.
type LLMRequest struct {
	Model          string
	System         []string
	Messages       []ChatMessage
	Tools          []ToolDeclaration
	ResponseFormat ResponseFormat
	MaxTokens      int
	Temperature    float64
	TopP           float64
}

// LLMResponse is the model's reply: either final text, or one or more tool
// calls (in which case Text is typically empty and the caller must execute
// the tools and call Complete again with the results appended).
type LLMResponse struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

// StreamChunk is one incremental piece of a streaming completion, used by
// the voice session bridge.
type StreamChunk struct {
	TextDelta string
	ToolCall  *ToolCall
	Usage     *TokenUsage
	Done      bool
	Err       error
}

// Client is the abstract chat-completion interface. Implementations wrap a
// concrete provider (Bedrock, Gemini, ...).
type Client interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// StreamingClient additionally supports token-by-token streaming, used by
// the voice session bridge for low-latency audio+text generation.
type StreamingClient interface {
	Client
	CompleteStream(ctx context.Context, req LLMRequest) (<-chan StreamChunk, error)
}
