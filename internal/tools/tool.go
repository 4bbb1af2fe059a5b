// Package tools implements the agent's tool surface: read-only SQL against
// the products database, web search over used-equipment listing sites, and
// URL liveness checks.
package tools

import (
	"context"
	"encoding/json"
)

// ToolResult is the outcome of one tool execution, as text for the model.
type ToolResult struct {
	Content   string
	IsError   bool
	Truncated bool
}

// Tool is one capability offered to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema properties of the tool's input.
	Parameters() map[string]any
	IsReadOnly() bool
	Execute(ctx context.Context, params json.RawMessage) (ToolResult, error)
}
