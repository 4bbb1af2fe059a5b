// Package tui provides the terminal frontends: a plain stdin/stdout REPL
// and a bubbletea full-screen interface. The agent talks to either through
// the IO interface.
package tui

// IO is the surface the agent renders through. Implementations must be safe
// to call from the agent goroutine.
type IO interface {
	// ReadInput blocks until the user submits a line. Returns io.EOF when
	// the input source closes.
	ReadInput() (string, error)

	UserMessage(text string)
	ThinkingStart()
	TextDelta(delta string)
	TextDone(fullText string)
	ToolStart(id, name, params string)
	ToolDone(id, name, result string, isErr bool)
	SystemMessage(text string)
	Error(msg string)
	SetTokens(n int)
}
