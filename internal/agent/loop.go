package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightbot/insightbot/internal/logger"
	"github.com/insightbot/insightbot/internal/provider"
	"github.com/insightbot/insightbot/internal/session"
)

// runTurn executes one full chat turn:
//  1. persist the user message, so a crash mid-turn never loses the question
//  2. run the streaming tool-call loop until the model answers in text
//  3. persist the assistant message
//  4. derive a title from the first user message of the session
//  5. fire history logging asynchronously
func (a *Agent) runTurn(ctx context.Context, input string) error {
	a.io.UserMessage(input)

	if err := a.sessions.SaveMessage(ctx, a.sessionID, session.RoleUser, input, a.msgIndex); err != nil {
		// Transient and retryable; the in-memory transcript still carries the turn.
		logger.L.Warn("user message not persisted", "session", a.sessionID, "error", err)
	}
	a.msgIndex++

	a.transcript = append(a.transcript, provider.Message{
		Role:    provider.RoleUser,
		Content: []provider.Content{{Type: provider.ContentTypeText, Text: input}},
	})

	finalText, err := a.runAgentLoop(ctx)
	if err != nil {
		return err
	}

	if err := a.sessions.SaveMessage(ctx, a.sessionID, session.RoleAssistant, finalText, a.msgIndex); err != nil {
		logger.L.Warn("assistant message not persisted", "session", a.sessionID, "error", err)
	}
	a.msgIndex++

	if !a.titled {
		if err := a.sessions.Rename(ctx, a.sessionID, session.GenerateTitle(input)); err != nil {
			logger.L.Warn("auto-title failed", "session", a.sessionID, "error", err)
		}
		a.titled = true
	}

	a.histLog.Log(input, finalText, a.sessionID)
	return nil
}

// runAgentLoop is the streaming tool-call loop: send the transcript, stream
// text to the UI, execute any tool calls, feed results back, repeat until
// the model answers without tools or the iteration budget runs out. Returns
// the last text the model produced.
func (a *Agent) runAgentLoop(ctx context.Context) (string, error) {
	maxIter := a.config.MaxIterations
	if maxIter <= 0 {
		maxIter = 6
	}

	var finalText string
	for iteration := range maxIter {
		req := &provider.ChatRequest{
			Model:        a.config.Model,
			Messages:     a.transcript,
			Tools:        a.buildToolSchemas(),
			SystemPrompt: a.systemPrompt,
			MaxTokens:    4096,
		}

		events, err := a.provider.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("LLM call failed: %w", err)
		}

		var textContent strings.Builder
		var toolCalls []*provider.ToolCallRequest

		a.io.ThinkingStart()

		for event := range events {
			switch event.Type {
			case provider.EventTextDelta:
				a.io.TextDelta(event.TextDelta)
				textContent.WriteString(event.TextDelta)

			case provider.EventToolCallDone:
				toolCalls = append(toolCalls, event.ToolCall)

			case provider.EventDone:
				if event.Usage != nil {
					a.io.SetTokens(event.Usage.InputTokens + event.Usage.OutputTokens)
				}

			case provider.EventError:
				return "", fmt.Errorf("stream error: %w", event.Error)
			}
		}

		full := textContent.String()
		a.io.TextDone(full)
		if full != "" {
			finalText = full
		}

		a.transcript = append(a.transcript, buildAssistantMessage(full, toolCalls))

		if len(toolCalls) == 0 {
			return finalText, nil
		}

		if iteration == maxIter-1 {
			a.io.SystemMessage(fmt.Sprintf("warning: reached max iterations (%d), stopping", maxIter))
			// Every tool_use in the transcript needs a matching result or the
			// next turn's request is malformed. The pending calls were never
			// executed, so answer them with a cancellation.
			a.transcript = append(a.transcript, provider.Message{
				Role:    provider.RoleUser,
				Content: cancelledToolResults(toolCalls),
			})
			return finalText, nil
		}

		a.transcript = append(a.transcript, provider.Message{
			Role:    provider.RoleUser,
			Content: a.executeToolCalls(ctx, toolCalls),
		})
	}
	return finalText, nil
}

func buildAssistantMessage(text string, toolCalls []*provider.ToolCallRequest) provider.Message {
	var contents []provider.Content
	if text != "" {
		contents = append(contents, provider.Content{
			Type: provider.ContentTypeText,
			Text: text,
		})
	}
	for _, tc := range toolCalls {
		contents = append(contents, provider.Content{
			Type:      provider.ContentTypeToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Name,
			ToolInput: tc.Input,
		})
	}
	return provider.Message{Role: provider.RoleAssistant, Content: contents}
}

func cancelledToolResults(calls []*provider.ToolCallRequest) []provider.Content {
	var results []provider.Content
	for _, call := range calls {
		results = append(results, provider.Content{
			Type:       provider.ContentTypeToolResult,
			ToolUseID:  call.ID,
			ToolResult: "Tool call cancelled: iteration limit reached.",
			IsError:    true,
		})
	}
	return results
}

// executeToolCalls runs each call and returns tool_result content blocks.
func (a *Agent) executeToolCalls(ctx context.Context, calls []*provider.ToolCallRequest) []provider.Content {
	var results []provider.Content
	for _, call := range calls {
		a.io.ToolStart(call.ID, call.Name, string(call.Input))
		result := a.executor.Execute(ctx, call.Name, call.Input)
		a.io.ToolDone(call.ID, call.Name, result.Content, result.IsError)

		results = append(results, provider.Content{
			Type:       provider.ContentTypeToolResult,
			ToolUseID:  call.ID,
			ToolResult: result.Content,
			IsError:    result.IsError,
		})
	}
	return results
}

func (a *Agent) buildToolSchemas() []provider.ToolSchema {
	registryTools := a.executor.Registry().All()
	schemas := make([]provider.ToolSchema, 0, len(registryTools))
	for _, t := range registryTools {
		schemas = append(schemas, provider.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return schemas
}
