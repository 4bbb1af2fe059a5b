package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Executor runs tool calls with a per-call timeout and bounds the output
// handed back to the model.
type Executor struct {
	registry       *Registry
	defaultTimeout time.Duration
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:       registry,
		defaultTimeout: 60 * time.Second,
	}
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs a single tool call. Failures come back as error-flagged
// results so the model can read the reason and adjust; only the surrounding
// loop decides whether to keep going.
func (e *Executor) Execute(ctx context.Context, name string, params json.RawMessage) ToolResult {
	tool, ok := e.registry.Get(name)
	if !ok {
		return ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}
	}

	if ctx.Err() != nil {
		return ToolResult{Content: "Interrupted", IsError: true}
	}

	ctx, cancel := context.WithTimeout(ctx, e.defaultTimeout)
	defer cancel()

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("error: %v", err), IsError: true}
	}

	const outputLimit = 16 * 1024
	if len(result.Content) > outputLimit {
		result.Content = truncateHeadTail(result.Content, outputLimit)
		result.Truncated = true
	}
	return result
}

// truncateHeadTail keeps the head (60%) and tail (40%) of a string. Tail
// content carries the totals and errors that matter most.
func truncateHeadTail(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	head := maxLen * 3 / 5
	tail := maxLen * 2 / 5
	omitted := len(s) - head - tail
	return s[:head] + fmt.Sprintf("\n\n[...%d chars omitted...]\n\n", omitted) + s[len(s)-tail:]
}
