package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// ---------- messages sent from the agent goroutine via program.Send() ----------

type readInputMsg struct{}

type inputResult struct {
	text string
	err  error
}

type userMsg struct{ text string }
type thinkingStartMsg struct{}
type textDeltaMsg struct{ delta string }
type textDoneMsg struct{ fullText string }
type toolStartMsg struct{ id, name, params string }
type toolDoneMsg struct {
	id, name, result string
	isErr            bool
}
type systemMsg struct{ text string }
type errorMsg struct{ text string }
type tokensMsg struct{ n int }
type agentDoneMsg struct{ err error }

// ---------- spinner activity kinds ----------

type spinnerKind int

const (
	spinnerNone     spinnerKind = iota
	spinnerThinking             // model is thinking
	spinnerTool                 // tool is executing
)

type toolCallState struct {
	name   string
	params string
}

// ---------- styles ----------

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	toolBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("7")).
			PaddingLeft(1)

	toolNameStyle = lipgloss.NewStyle().
			Bold(true)

	toolParamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	toolSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2"))

	toolErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

const statusBarHeight = 1
const inputHeight = 1

// Model is the bubbletea model managing the full TUI state.
type Model struct {
	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model
	width     int
	height    int

	content     strings.Builder // accumulated output
	streaming   bool            // text deltas are arriving
	streamStart int             // byte offset where the current stream began
	inputMode   bool            // waiting for user input
	spinnerKind spinnerKind

	currentTool *toolCallState // in-flight tool call (nil when idle)

	inputCh chan inputResult // sends user input back to ReadInput()

	quitting bool

	// status bar
	tokens   int
	toolName string
}

func NewModel(inputCh chan inputResult) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 4096

	vp := viewport.New(80, 24)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		viewport:  vp,
		textinput: ti,
		spinner:   sp,
		inputCh:   inputCh,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - statusBarHeight - inputHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
		m.textinput.Width = m.width - 4
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.spinnerKind != spinnerNone {
			m.viewport.SetContent(m.renderContent())
			m.viewport.GotoBottom()
		}
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.inputMode {
				m.inputCh <- inputResult{err: fmt.Errorf("interrupted")}
				m.inputMode = false
				m.textinput.Blur()
			}
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.inputMode {
				text := strings.TrimSpace(m.textinput.Value())
				m.textinput.SetValue("")
				m.inputCh <- inputResult{text: text}
				m.inputMode = false
				m.textinput.Blur()
			}
			return m, nil
		}

		if m.inputMode {
			var cmd tea.Cmd
			m.textinput, cmd = m.textinput.Update(msg)
			cmds = append(cmds, cmd)
		}

	// ---------- custom messages from the agent goroutine ----------

	case readInputMsg:
		m.inputMode = true
		m.textinput.Focus()
		cmds = append(cmds, textinput.Blink)

	case userMsg:
		m.appendLine(userStyle.Render("You: " + msg.text))

	case thinkingStartMsg:
		m.spinnerKind = spinnerThinking
		m.streaming = false

	case textDeltaMsg:
		if m.spinnerKind == spinnerThinking {
			m.spinnerKind = spinnerNone
		}
		if !m.streaming {
			// Record where this response starts so TextDone can replace it.
			m.streamStart = m.content.Len()
			m.streaming = true
		}
		m.content.WriteString(msg.delta)

	case textDoneMsg:
		m.spinnerKind = spinnerNone
		if m.streaming {
			m.replaceStreamWithMarkdown(msg.fullText)
		}
		m.streaming = false

	case toolStartMsg:
		m.toolName = msg.name
		m.spinnerKind = spinnerTool
		m.currentTool = &toolCallState{
			name:   msg.name,
			params: formatToolParams(msg.params),
		}

	case toolDoneMsg:
		if m.currentTool != nil {
			m.appendLine(m.renderToolDone(m.currentTool, msg.result, msg.isErr))
		}
		m.toolName = ""
		m.spinnerKind = spinnerNone
		m.currentTool = nil

	case systemMsg:
		m.appendLine(systemStyle.Render(msg.text))

	case errorMsg:
		m.appendLine(errorStyle.Render("Error: " + msg.text))

	case tokensMsg:
		m.tokens = msg.n

	case agentDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	status := fmt.Sprintf(" tokens: %d", m.tokens)
	if m.toolName != "" {
		status += fmt.Sprintf(" | tool: %s", m.toolName)
	}
	bar := statusBarStyle.Width(m.width).Render(status)

	var input string
	if m.inputMode {
		input = m.textinput.View()
	}

	return m.viewport.View() + "\n" + bar + "\n" + input
}

// ---------- tool call rendering ----------

func (m *Model) renderToolRunning(tc *toolCallState) string {
	name := toolNameStyle.Render(tc.name)
	params := toolParamStyle.Render(tc.params)
	status := m.spinner.View() + " running..."
	return toolBorderStyle.Render(name + "\n" + params + "\n" + status)
}

func (m *Model) renderToolDone(tc *toolCallState, result string, isErr bool) string {
	name := toolNameStyle.Render(tc.name)
	params := toolParamStyle.Render(tc.params)
	var status string
	if isErr {
		status = toolErrorStyle.Render("✗ " + truncateStr(result, 200))
	} else {
		summary := truncateStr(strings.ReplaceAll(result, "\n", " "), 120)
		status = toolSuccessStyle.Render("✓ " + summary)
	}
	return toolBorderStyle.Render(name + "\n" + params + "\n" + status)
}

// renderContent returns the viewport content plus any dynamic elements
// (spinner, in-flight tool block) not persisted in the content builder.
func (m *Model) renderContent() string {
	base := m.content.String()
	switch m.spinnerKind {
	case spinnerThinking:
		return base + "\n" + m.spinner.View() + " Thinking..."
	case spinnerTool:
		if m.currentTool != nil {
			return base + "\n" + m.renderToolRunning(m.currentTool)
		}
		return base + "\n" + m.spinner.View() + " " + m.toolName + "..."
	default:
		return base
	}
}

// replaceStreamWithMarkdown replaces the raw streamed text (from streamStart
// onward) with glamour-rendered markdown.
func (m *Model) replaceStreamWithMarkdown(fullText string) {
	width := m.width
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		m.ensureTrailingNewline()
		return
	}

	rendered, err := r.Render(fullText)
	if err != nil {
		m.ensureTrailingNewline()
		return
	}

	before := m.content.String()[:m.streamStart]
	m.content.Reset()
	m.content.WriteString(before)
	m.content.WriteString(strings.TrimRight(rendered, "\n"))
	m.content.WriteString("\n")
}

func (m *Model) ensureTrailingNewline() {
	s := m.content.String()
	if len(s) > 0 && s[len(s)-1] != '\n' {
		m.content.WriteString("\n")
	}
}

func (m *Model) appendLine(text string) {
	m.content.WriteString(text)
	m.content.WriteString("\n")
}

// formatToolParams extracts a compact display string from raw JSON params.
func formatToolParams(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
