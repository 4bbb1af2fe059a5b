package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// RunTUI starts the full-screen interface and runs agentFn in its own
// goroutine with a TuiIO wired to the program. It returns when both the
// program and the agent have finished.
func RunTUI(agentFn func(io IO) error) error {
	inputCh := make(chan inputResult, 1)
	model := NewModel(inputCh)
	program := tea.NewProgram(model, tea.WithAltScreen())

	agentIO := &TuiIO{program: program, inputCh: inputCh}

	var wg sync.WaitGroup
	var agentErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		agentErr = agentFn(agentIO)
		program.Send(agentDoneMsg{err: agentErr})
	}()

	if _, err := program.Run(); err != nil {
		return err
	}

	wg.Wait()
	return agentErr
}
