// Package agent orchestrates the interactive loop between the user, the
// LLM, and the tools, and persists every turn: the user message before the
// model call, the assistant message after, and a history log entry once the
// turn completes.
package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/insightbot/insightbot/internal/config"
	"github.com/insightbot/insightbot/internal/history"
	"github.com/insightbot/insightbot/internal/provider"
	"github.com/insightbot/insightbot/internal/session"
	"github.com/insightbot/insightbot/internal/tools"
	"github.com/insightbot/insightbot/internal/tui"
)

// Agent runs chat turns against one active session.
type Agent struct {
	provider     provider.Provider
	executor     *tools.Executor
	config       *config.Config
	io           tui.IO
	sessions     *session.Store
	histStore    *history.Store
	histLog      *history.AsyncLogger
	systemPrompt string

	sessionID  string
	owner      string
	transcript []provider.Message
	msgIndex   int  // next persisted message index
	titled     bool // session already has a derived title
}

// New creates an Agent. The system prompt should come from BuildSystemPrompt
// so it carries the live products schema.
func New(p provider.Provider, exec *tools.Executor, cfg *config.Config, ui tui.IO,
	sessions *session.Store, histStore *history.Store, systemPrompt string) *Agent {
	return &Agent{
		provider:     p,
		executor:     exec,
		config:       cfg,
		io:           ui,
		sessions:     sessions,
		histStore:    histStore,
		histLog:      history.NewAsyncLogger(histStore),
		systemPrompt: systemPrompt,
		owner:        cfg.User,
	}
}

// Run starts the interactive REPL loop on a fresh session.
func (a *Agent) Run(ctx context.Context) error {
	a.startNewSession(ctx)
	defer a.histLog.Close()

	for {
		input, err := a.io.ReadInput()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if input == "" {
			continue
		}

		// Slash commands never reach the model.
		if strings.HasPrefix(input, "/") {
			handled, shouldQuit := a.handleSlashCommand(ctx, input)
			if shouldQuit {
				return nil
			}
			if handled {
				continue
			}
		}

		if err := a.runTurn(ctx, input); err != nil {
			if ctx.Err() != nil {
				a.io.SystemMessage("\nInterrupted.")
				return ctx.Err()
			}
			a.io.Error(err.Error())
		}
	}
}

// RunOnce executes a single prompt on a fresh session and exits.
func (a *Agent) RunOnce(ctx context.Context, prompt string) error {
	a.startNewSession(ctx)
	defer a.histLog.Close()
	return a.runTurn(ctx, prompt)
}

func (a *Agent) startNewSession(ctx context.Context) {
	a.sessionID = a.sessions.CreateSession(ctx, a.owner, "")
	a.transcript = nil
	a.msgIndex = 0
	a.titled = false
}

// handleSlashCommand processes built-in commands. Returns (handled, quit).
func (a *Agent) handleSlashCommand(ctx context.Context, input string) (bool, bool) {
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/quit", "/exit", "/q":
		a.io.SystemMessage("Bye.")
		return true, true
	case "/help":
		return a.handleHelp(), false
	case "/new":
		a.startNewSession(ctx)
		a.io.SystemMessage("Started a new session: " + shortID(a.sessionID))
		return true, false
	case "/sessions":
		return a.handleSessions(ctx), false
	case "/resume":
		return a.handleResume(ctx, arg), false
	case "/rename":
		return a.handleRename(ctx, arg), false
	case "/archive":
		return a.handleArchive(ctx, arg), false
	case "/delete":
		return a.handleDelete(ctx, arg), false
	case "/export":
		return a.handleExport(ctx, arg), false
	case "/history":
		return a.handleHistory(ctx, arg), false
	case "/stats":
		return a.handleStats(ctx), false
	case "/clear":
		return a.handleClear(ctx, arg), false
	default:
		return false, false
	}
}

func (a *Agent) handleHelp() bool {
	help := `Available commands:
  /help              Show this help message
  /new               Start a new session
  /sessions          List your sessions
  /resume <id>       Resume a session (short ID prefix works)
  /rename <title>    Rename the current session
  /archive [id]      Archive a session (default: current)
  /delete <id>       Delete a session and its messages
  /export [id]       Export a session transcript as JSON
  /history [n]       Show recent search history
  /stats             Show session and search statistics
  /clear [days]      Clear search history (optionally keep the last N days)
  /quit              Exit`
	a.io.SystemMessage(help)
	return true
}

func (a *Agent) handleSessions(ctx context.Context) bool {
	sessions, err := a.sessions.ListSessions(ctx, a.owner, 20)
	if err != nil {
		a.io.Error("Failed to list sessions: " + err.Error())
		return true
	}
	if len(sessions) == 0 {
		a.io.SystemMessage("No sessions yet.")
		return true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		marker := " "
		if s.ID == a.sessionID {
			marker = "*"
		}
		fmt.Fprintf(&sb, " %s %s  %s  %d msgs  %s\n",
			marker, shortID(s.ID), s.LastUpdated.Local().Format("2006-01-02 15:04"),
			s.MessageCount, truncate(s.Title, 40))
	}
	sb.WriteString("Use /resume <id> to switch.")
	a.io.SystemMessage(sb.String())
	return true
}

func (a *Agent) handleResume(ctx context.Context, idPrefix string) bool {
	if idPrefix == "" {
		a.io.SystemMessage("Usage: /resume <session-id-prefix>")
		return true
	}

	sess, ok := a.resolveSession(ctx, idPrefix)
	if !ok {
		return true
	}

	msgs, err := a.sessions.LoadMessages(ctx, sess.ID)
	if err != nil {
		a.io.Error("Failed to load session: " + err.Error())
		return true
	}

	a.sessionID = sess.ID
	a.transcript = nil
	for _, m := range msgs {
		role := provider.RoleUser
		if m.Role == session.RoleAssistant {
			role = provider.RoleAssistant
		}
		a.transcript = append(a.transcript, provider.Message{
			Role:    role,
			Content: []provider.Content{{Type: provider.ContentTypeText, Text: m.Content}},
		})
	}
	a.msgIndex = len(msgs)
	a.titled = len(msgs) > 0
	a.io.SystemMessage(fmt.Sprintf("Resumed %q (%d messages)", sess.Title, len(msgs)))
	return true
}

func (a *Agent) handleRename(ctx context.Context, title string) bool {
	if title == "" {
		a.io.SystemMessage("Usage: /rename <new title>")
		return true
	}
	if err := a.sessions.Rename(ctx, a.sessionID, title); err != nil {
		a.io.Error("Rename failed: " + err.Error())
		return true
	}
	a.titled = true
	a.io.SystemMessage("Session renamed.")
	return true
}

func (a *Agent) handleArchive(ctx context.Context, idPrefix string) bool {
	id := a.sessionID
	if idPrefix != "" {
		sess, ok := a.resolveSession(ctx, idPrefix)
		if !ok {
			return true
		}
		id = sess.ID
	}
	if !a.sessions.Archive(ctx, id, a.owner) {
		a.io.Error("Archive failed (not found or not yours).")
		return true
	}
	a.io.SystemMessage("Session archived: " + shortID(id))
	if id == a.sessionID {
		a.startNewSession(ctx)
	}
	return true
}

func (a *Agent) handleDelete(ctx context.Context, idPrefix string) bool {
	if idPrefix == "" {
		a.io.SystemMessage("Usage: /delete <session-id-prefix>")
		return true
	}
	sess, ok := a.resolveSession(ctx, idPrefix)
	if !ok {
		return true
	}
	if !a.sessions.Delete(ctx, sess.ID, a.owner) {
		a.io.Error("Delete failed (not found or not yours).")
		return true
	}
	a.io.SystemMessage("Session deleted: " + shortID(sess.ID))
	if sess.ID == a.sessionID {
		a.startNewSession(ctx)
	}
	return true
}

func (a *Agent) handleExport(ctx context.Context, idPrefix string) bool {
	id := a.sessionID
	if idPrefix != "" {
		sess, ok := a.resolveSession(ctx, idPrefix)
		if !ok {
			return true
		}
		id = sess.ID
	}
	data, err := a.sessions.Export(ctx, id)
	if err != nil {
		a.io.Error("Export failed: " + err.Error())
		return true
	}
	if data == nil {
		a.io.SystemMessage("Nothing to export: session has no messages.")
		return true
	}
	a.io.SystemMessage(string(data))
	return true
}

func (a *Agent) handleHistory(ctx context.Context, arg string) bool {
	limit := 10
	if arg != "" {
		if _, err := fmt.Sscanf(arg, "%d", &limit); err != nil || limit <= 0 {
			a.io.SystemMessage("Usage: /history [count]")
			return true
		}
	}
	records, err := a.histStore.Search(ctx, history.Filter{Limit: limit})
	if err != nil {
		a.io.Error("Failed to load history: " + err.Error())
		return true
	}
	if len(records) == 0 {
		a.io.SystemMessage("No search history.")
		return true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent searches (%d):\n", len(records))
	for _, r := range records {
		product := strings.TrimSpace(r.ProductBrand + " " + r.ProductModel)
		if product == "" {
			product = "-"
		}
		fmt.Fprintf(&sb, "  #%d  %s  [%s]  %s  (%s)\n",
			r.RecordID, r.Timestamp.Local().Format("01-02 15:04"),
			r.Source, truncate(r.UserQuery, 50), product)
	}
	a.io.SystemMessage(sb.String())
	return true
}

func (a *Agent) handleStats(ctx context.Context) bool {
	sessStats, err := a.sessions.Statistics(ctx, a.owner)
	if err != nil {
		a.io.Error("Failed to read session statistics: " + err.Error())
		return true
	}
	histStats, err := a.histStore.Statistics(ctx)
	if err != nil {
		a.io.Error("Failed to read history statistics: " + err.Error())
		return true
	}
	a.io.SystemMessage(fmt.Sprintf(`Statistics:
  Sessions:            %d (%d active this week)
  Messages:            %d
  Searches logged:     %d (%d this week)
  Unique brands:       %d
  Searches with prices: %d`,
		sessStats.TotalSessions, sessStats.RecentSessions, sessStats.TotalMessages,
		histStats.TotalSearches, histStats.RecentSearches,
		histStats.UniqueBrands, histStats.SearchesWithPrices))
	return true
}

func (a *Agent) handleClear(ctx context.Context, arg string) bool {
	daysToKeep := -1
	if arg != "" {
		if _, err := fmt.Sscanf(arg, "%d", &daysToKeep); err != nil || daysToKeep < 0 {
			a.io.SystemMessage("Usage: /clear [days-to-keep]")
			return true
		}
	}
	if !a.histStore.Clear(ctx, daysToKeep) {
		a.io.Error("Clear failed.")
		return true
	}
	if daysToKeep < 0 {
		a.io.SystemMessage("Search history cleared.")
	} else {
		a.io.SystemMessage(fmt.Sprintf("Search history older than %d days cleared.", daysToKeep))
	}
	return true
}

// resolveSession matches an id prefix against all of the owner's sessions,
// archived ones included, so /delete and /export still reach them.
func (a *Agent) resolveSession(ctx context.Context, idPrefix string) (session.Session, bool) {
	sessions, err := a.sessions.AllSessions(ctx, a.owner)
	if err != nil {
		a.io.Error("Failed to list sessions: " + err.Error())
		return session.Session{}, false
	}
	var matches []session.Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, idPrefix) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		a.io.Error(fmt.Sprintf("No session matches prefix %q", idPrefix))
		return session.Session{}, false
	case 1:
		return matches[0], true
	default:
		a.io.SystemMessage(fmt.Sprintf("Prefix %q is ambiguous (%d matches); provide more characters.",
			idPrefix, len(matches)))
		return session.Session{}, false
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
