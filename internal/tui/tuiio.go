package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TuiIO bridges the agent goroutine and the bubbletea program. Output calls
// become program.Send messages; ReadInput blocks on the channel the model
// writes user input to.
type TuiIO struct {
	program *tea.Program
	inputCh chan inputResult
}

var _ IO = (*TuiIO)(nil)

func (t *TuiIO) ReadInput() (string, error) {
	t.program.Send(readInputMsg{})
	res := <-t.inputCh
	return res.text, res.err
}

func (t *TuiIO) UserMessage(text string) {
	t.program.Send(userMsg{text: text})
}

func (t *TuiIO) ThinkingStart() {
	t.program.Send(thinkingStartMsg{})
}

func (t *TuiIO) TextDelta(delta string) {
	t.program.Send(textDeltaMsg{delta: delta})
}

func (t *TuiIO) TextDone(fullText string) {
	t.program.Send(textDoneMsg{fullText: fullText})
}

func (t *TuiIO) ToolStart(id, name, params string) {
	t.program.Send(toolStartMsg{id: id, name: name, params: params})
}

func (t *TuiIO) ToolDone(id, name, result string, isErr bool) {
	t.program.Send(toolDoneMsg{id: id, name: name, result: result, isErr: isErr})
}

func (t *TuiIO) SystemMessage(text string) {
	t.program.Send(systemMsg{text: text})
}

func (t *TuiIO) Error(msg string) {
	t.program.Send(errorMsg{text: msg})
}

func (t *TuiIO) SetTokens(n int) {
	t.program.Send(tokensMsg{n: n})
}
