// Package model provides LLM client adapters shared by the nodes package.
package model

import "context"

// ChatModel abstracts an LLM chat provider (OpenAI, Anthropic, Google,
// or a test double) behind one contract: Generate for a single
// request/response round trip, GenerateStreaming when the caller wants
// content as it is produced.
//
// Implementations must respect ctx cancellation and convert
// provider-specific errors into plain Go errors; they are free to retry
// transient provider failures internally before returning.
type ChatModel interface {
	Generate(ctx context.Context, req Request) (Response, error)
	GenerateStreaming(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

// Message is one turn in a conversation passed to a ChatModel.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may choose to call, in JSON Schema
// terms.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Request is a single LLM call's input. Model, Temperature, and MaxTokens
// are optional; a zero value means "use the provider's default".
type Request struct {
	Messages     []Message
	Model        string
	Temperature  float64
	MaxTokens    int
	Tools        []ToolSpec
	SystemPrompt string
}

// ToolCall is a request from the model to invoke a tool by name with the
// given input.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// Response is a completed LLM call's output. TokensUsed is always
// populated (zero for providers that don't report it) since the cost
// tracker attributes against it.
type Response struct {
	Content      string
	Model        string
	TokensUsed   TokenUsage
	FinishReason string
	ToolCalls    []ToolCall
}

// TokenUsage breaks a Response's token accounting into input and output,
// matching what CostTracker.RecordLLMCall expects.
type TokenUsage struct {
	Input  int
	Output int
}

// StreamChunk is one piece of a streaming Response. A chunk with a
// non-nil Err is the last one sent on the channel; the channel is closed
// immediately after.
type StreamChunk struct {
	Content string
	Err     error
}
