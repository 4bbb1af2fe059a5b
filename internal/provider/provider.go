// Package provider defines the unified interface and shared types for LLM
// providers. Each adapter (openai.go, anthropic.go) translates its API's
// streaming responses into the normalized Event sequence, including the
// stateful reassembly of incrementally streamed tool-call JSON.
package provider

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// Content is one block within a message.
type Content struct {
	Type       ContentType
	Text       string
	ToolUseID  string          // tool_use / tool_result
	ToolName   string          // tool_use
	ToolInput  json.RawMessage // tool_use
	ToolResult string          // tool_result
	IsError    bool            // tool_result
}

// Message is one entry in the conversation history sent to the model.
type Message struct {
	Role    Role
	Content []Content
}

// ToolSchema describes a tool offered to the model, in JSON Schema terms.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema properties
}

// ChatRequest is the provider-independent request shape.
type ChatRequest struct {
	Model        string
	Messages     []Message
	Tools        []ToolSchema
	SystemPrompt string
	MaxTokens    int
}

type EventType int

const (
	// EventTextDelta carries an incremental chunk of assistant text.
	EventTextDelta EventType = iota

	// EventToolCallDone carries one fully assembled tool call. The adapter
	// emits it only after all argument JSON fragments have been joined.
	EventToolCallDone

	// EventDone marks the end of the model's turn, with token usage.
	EventDone

	// EventError reports a streaming failure. The channel closes after it.
	EventError
)

// Event is one element of the normalized streaming output.
type Event struct {
	Type EventType

	TextDelta string           // EventTextDelta
	ToolCall  *ToolCallRequest // EventToolCallDone
	Usage     *Usage           // EventDone
	Error     error            // EventError
}

// ToolCallRequest is a tool invocation the model asked for.
type ToolCallRequest struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Usage records token consumption for one API call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the unified LLM interface. Implementations convert the
// ChatRequest into their API's request format and normalize the streaming
// response into Events.
type Provider interface {
	// Chat starts a streaming conversation turn. The returned channel emits
	// Events until EventDone or EventError, then closes. Callers must drain
	// the channel or the adapter's goroutine leaks.
	Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error)

	// Name returns the provider identifier, e.g. "anthropic" or "openai".
	Name() string

	// DefaultModel returns the model used when ChatRequest.Model is empty.
	DefaultModel() string
}
