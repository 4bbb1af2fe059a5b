package agent

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/insightbot/insightbot/internal/config"
	"github.com/insightbot/insightbot/internal/history"
	"github.com/insightbot/insightbot/internal/provider"
	"github.com/insightbot/insightbot/internal/session"
	"github.com/insightbot/insightbot/internal/tools"
	"github.com/insightbot/insightbot/internal/tui"
)

// scriptedProvider replays pre-built event sequences, one per Chat call,
// and records every request it receives.
type scriptedProvider struct {
	scripts  [][]provider.Event
	requests []*provider.ChatRequest
}

func (p *scriptedProvider) Chat(ctx context.Context, req *provider.ChatRequest) (<-chan provider.Event, error) {
	reqCopy := *req
	reqCopy.Messages = append([]provider.Message(nil), req.Messages...)
	p.requests = append(p.requests, &reqCopy)

	var script []provider.Event
	if len(p.scripts) > 0 {
		script = p.scripts[0]
		p.scripts = p.scripts[1:]
	} else {
		script = textScript("ok")
	}

	ch := make(chan provider.Event, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "scripted-model" }

func textScript(text string) []provider.Event {
	return []provider.Event{
		{Type: provider.EventTextDelta, TextDelta: text},
		{Type: provider.EventDone, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}},
	}
}

func toolScript(id, name, input string) []provider.Event {
	return []provider.Event{
		{Type: provider.EventToolCallDone, ToolCall: &provider.ToolCallRequest{
			ID: id, Name: name, Input: json.RawMessage(input),
		}},
		{Type: provider.EventDone, Usage: &provider.Usage{InputTokens: 20, OutputTokens: 8}},
	}
}

// scriptIO replays queued user inputs and records everything the agent
// renders.
type scriptIO struct {
	inputs []string

	text      strings.Builder
	system    []string
	errs      []string
	toolCalls []string
	tokens    int
}

func (s *scriptIO) ReadInput() (string, error) {
	if len(s.inputs) == 0 {
		return "", io.EOF
	}
	input := s.inputs[0]
	s.inputs = s.inputs[1:]
	return input, nil
}

func (s *scriptIO) UserMessage(string)         {}
func (s *scriptIO) ThinkingStart()             {}
func (s *scriptIO) TextDelta(d string)         { s.text.WriteString(d) }
func (s *scriptIO) TextDone(string)            {}
func (s *scriptIO) SystemMessage(text string)  { s.system = append(s.system, text) }
func (s *scriptIO) Error(msg string)           { s.errs = append(s.errs, msg) }
func (s *scriptIO) SetTokens(n int)            { s.tokens = n }
func (s *scriptIO) ToolStart(_, name, _ string) {
	s.toolCalls = append(s.toolCalls, name)
}
func (s *scriptIO) ToolDone(_, _, _ string, _ bool) {}

var _ tui.IO = (*scriptIO)(nil)

func (s *scriptIO) systemContains(substr string) bool {
	for _, msg := range s.system {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// echoTool answers with whatever text it was given.
type echoTool struct{}

func (echoTool) Name() string                { return "echo" }
func (echoTool) Description() string         { return "Echoes the given text." }
func (echoTool) Parameters() map[string]any  { return map[string]any{"text": map[string]any{"type": "string"}} }
func (echoTool) IsReadOnly() bool            { return true }
func (echoTool) Execute(_ context.Context, params json.RawMessage) (tools.ToolResult, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return tools.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return tools.ToolResult{Content: "echo: " + args.Text}, nil
}

func newTestAgent(t *testing.T, p provider.Provider, ui tui.IO, maxIter int) (*Agent, *session.Store, *history.Store) {
	t.Helper()
	dir := t.TempDir()

	sessions, err := session.Open(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	histStore, err := history.Open(filepath.Join(dir, "history.db"), nil)
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { histStore.Close() })

	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	cfg := &config.Config{
		User:          "fady",
		Model:         "test-model",
		MaxIterations: maxIter,
	}

	return New(p, tools.NewExecutor(registry), cfg, ui, sessions, histStore, "test system prompt"), sessions, histStore
}

func TestRunOncePersistsFullTurn(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Event{textScript("Hi there, how can I help?")}}
	ui := &scriptIO{}
	a, sessions, histStore := newTestAgent(t, p, ui, 0)

	ctx := context.Background()
	if err := a.RunOnce(ctx, "Hello"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	list, err := sessions.ListSessions(ctx, "fady", 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
	if list[0].Title != "Hello" {
		t.Errorf("auto-title = %q, want %q", list[0].Title, "Hello")
	}
	if list[0].MessageCount != 2 {
		t.Errorf("message_count = %d, want 2", list[0].MessageCount)
	}

	msgs, err := sessions.LoadMessages(ctx, list[0].ID)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != session.RoleUser || msgs[0].Content != "Hello" {
		t.Errorf("message 0 = %s/%q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != session.RoleAssistant || msgs[1].Content != "Hi there, how can I help?" {
		t.Errorf("message 1 = %s/%q", msgs[1].Role, msgs[1].Content)
	}

	// RunOnce waits for the async history write before returning.
	records, err := histStore.Search(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(records))
	}
	if records[0].UserQuery != "Hello" {
		t.Errorf("history query = %q, want %q", records[0].UserQuery, "Hello")
	}
	if records[0].Source != history.SourceDatabase {
		t.Errorf("history source = %q, want %q", records[0].Source, history.SourceDatabase)
	}

	if ui.tokens != 15 {
		t.Errorf("tokens = %d, want 15", ui.tokens)
	}
}

func TestToolCallLoopFeedsResultsBack(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Event{
		toolScript("call_1", "echo", `{"text":"hi"}`),
		textScript("The echo said hi."),
	}}
	ui := &scriptIO{}
	a, sessions, _ := newTestAgent(t, p, ui, 0)

	ctx := context.Background()
	if err := a.RunOnce(ctx, "Use the echo tool"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(p.requests) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(p.requests))
	}
	if len(ui.toolCalls) != 1 || ui.toolCalls[0] != "echo" {
		t.Errorf("tool calls = %v, want [echo]", ui.toolCalls)
	}

	// Second request carries: user prompt, assistant tool_use, tool_result.
	second := p.requests[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second))
	}
	if second[1].Role != provider.RoleAssistant || second[1].Content[0].Type != provider.ContentTypeToolUse {
		t.Errorf("second message should be the assistant tool_use, got %+v", second[1])
	}
	resultBlock := second[2].Content[0]
	if resultBlock.Type != provider.ContentTypeToolResult || resultBlock.ToolUseID != "call_1" {
		t.Errorf("tool result block = %+v", resultBlock)
	}
	if resultBlock.ToolResult != "echo: hi" {
		t.Errorf("tool result = %q, want %q", resultBlock.ToolResult, "echo: hi")
	}

	// Final text is what gets persisted as the assistant message.
	list, _ := sessions.ListSessions(ctx, "fady", 0)
	msgs, _ := sessions.LoadMessages(ctx, list[0].ID)
	if msgs[1].Content != "The echo said hi." {
		t.Errorf("assistant message = %q", msgs[1].Content)
	}
}

func TestMaxIterationsStopsTheLoop(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Event{
		toolScript("call_1", "echo", `{"text":"a"}`),
		toolScript("call_2", "echo", `{"text":"b"}`),
	}}
	ui := &scriptIO{}
	a, _, _ := newTestAgent(t, p, ui, 2)

	if err := a.RunOnce(context.Background(), "loop forever"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(p.requests) != 2 {
		t.Errorf("expected 2 provider calls, got %d", len(p.requests))
	}
	if !ui.systemContains("max iterations") {
		t.Errorf("expected max iterations warning, system messages: %v", ui.system)
	}
	// Only the first tool call runs; the budget check fires before execution.
	if len(ui.toolCalls) != 1 {
		t.Errorf("tool executions = %d, want 1", len(ui.toolCalls))
	}
}

func TestIterationCapClosesPendingToolCalls(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Event{
		toolScript("call_1", "echo", `{"text":"a"}`),
		toolScript("call_2", "echo", `{"text":"b"}`),
	}}
	ui := &scriptIO{}
	a, _, _ := newTestAgent(t, p, ui, 2)

	if err := a.RunOnce(context.Background(), "loop forever"); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// The unexecuted call_2 must still get a tool_result, or the next
	// request on this transcript is malformed.
	last := a.transcript[len(a.transcript)-1]
	if last.Role != provider.RoleUser {
		t.Fatalf("last transcript role = %s, want user", last.Role)
	}
	if len(last.Content) != 1 || last.Content[0].Type != provider.ContentTypeToolResult {
		t.Fatalf("last transcript content = %+v, want one tool_result", last.Content)
	}
	if last.Content[0].ToolUseID != "call_2" || !last.Content[0].IsError {
		t.Errorf("tool_result = %+v, want an error result for call_2", last.Content[0])
	}
	if !strings.Contains(last.Content[0].ToolResult, "cancelled") {
		t.Errorf("tool_result text = %q", last.Content[0].ToolResult)
	}
}

func TestDeleteReachesArchivedSession(t *testing.T) {
	p := &scriptedProvider{}
	ui := &scriptIO{}
	a, sessions, _ := newTestAgent(t, p, ui, 0)
	ctx := context.Background()

	victim := sessions.CreateSession(ctx, "fady", "Archived, then deleted")
	if !sessions.Archive(ctx, victim, "fady") {
		t.Fatal("Archive failed")
	}

	ui.inputs = []string{"/delete " + victim[:8], "/quit"}
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ui.systemContains("Session deleted") {
		t.Fatalf("archived session not resolved, system messages: %v, errors: %v", ui.system, ui.errs)
	}
	if _, found, err := sessions.Get(ctx, victim); err != nil || found {
		t.Errorf("session still present (found=%v, err=%v)", found, err)
	}
}

func TestSlashCommandsNeverReachTheModel(t *testing.T) {
	p := &scriptedProvider{}
	ui := &scriptIO{inputs: []string{"/help", "/sessions", "/quit"}}
	a, _, _ := newTestAgent(t, p, ui, 0)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.requests) != 0 {
		t.Errorf("provider called %d times for slash commands", len(p.requests))
	}
	if !ui.systemContains("/resume <id>") {
		t.Errorf("help output missing, system messages: %v", ui.system)
	}
	if !ui.systemContains("Bye.") {
		t.Errorf("quit message missing")
	}
}

func TestResumeRestoresTranscript(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Event{textScript("It was Keysight.")}}
	ui := &scriptIO{}
	a, sessions, _ := newTestAgent(t, p, ui, 0)
	ctx := context.Background()

	// A prior conversation on disk.
	prior := sessions.CreateSession(ctx, "fady", "Old quotes chat")
	if err := sessions.SaveMessage(ctx, prior, session.RoleUser, "Which brand was cheapest?", 0); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := sessions.SaveMessage(ctx, prior, session.RoleAssistant, "Keysight, at $980.", 1); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	ui.inputs = []string{"/resume " + prior[:8], "Remind me which brand that was", "/quit"}
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !ui.systemContains("Resumed") {
		t.Fatalf("resume confirmation missing, system messages: %v", ui.system)
	}

	// The model call includes the restored history plus the new question.
	if len(p.requests) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(p.requests))
	}
	msgs := p.requests[0].Messages
	if len(msgs) != 3 {
		t.Fatalf("request has %d messages, want 3", len(msgs))
	}
	if msgs[0].Content[0].Text != "Which brand was cheapest?" {
		t.Errorf("restored message 0 = %q", msgs[0].Content[0].Text)
	}

	// New messages continue the index sequence.
	stored, err := sessions.LoadMessages(ctx, prior)
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(stored))
	}
	if stored[3].Content != "It was Keysight." {
		t.Errorf("message 3 = %q", stored[3].Content)
	}
}

func TestDeleteCommandRemovesSession(t *testing.T) {
	p := &scriptedProvider{}
	ui := &scriptIO{}
	a, sessions, _ := newTestAgent(t, p, ui, 0)
	ctx := context.Background()

	victim := sessions.CreateSession(ctx, "fady", "To be deleted")
	ui.inputs = []string{"/delete " + victim[:8], "/quit"}

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ui.systemContains("Session deleted") {
		t.Fatalf("delete confirmation missing, system messages: %v", ui.system)
	}
	if _, found, err := sessions.Get(ctx, victim); err != nil || found {
		t.Errorf("session still present (found=%v, err=%v)", found, err)
	}
}

func TestStreamErrorSurfacesWithoutCrashing(t *testing.T) {
	p := &scriptedProvider{scripts: [][]provider.Event{
		{{Type: provider.EventError, Error: io.ErrUnexpectedEOF}},
	}}
	ui := &scriptIO{inputs: []string{"hello", "/quit"}}
	a, _, _ := newTestAgent(t, p, ui, 0)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ui.errs) != 1 || !strings.Contains(ui.errs[0], "stream error") {
		t.Errorf("expected a stream error, got %v", ui.errs)
	}
}
