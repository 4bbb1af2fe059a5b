package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/insightbot/insightbot/internal/agent"
	"github.com/insightbot/insightbot/internal/config"
	"github.com/insightbot/insightbot/internal/history"
	"github.com/insightbot/insightbot/internal/insight"
	"github.com/insightbot/insightbot/internal/logger"
	"github.com/insightbot/insightbot/internal/provider"
	"github.com/insightbot/insightbot/internal/session"
	"github.com/insightbot/insightbot/internal/tools"
	"github.com/insightbot/insightbot/internal/tui"
)

var (
	cfgFile      string
	modelFlag    string
	providerFlag string
	maxIterFlag  int
	userFlag     string
	useTUI       bool

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd := &cobra.Command{
		Use:   "insightbot",
		Short: "Chat assistant for used test equipment pricing",
		Long: "insightbot is an interactive chat assistant that answers pricing questions\n" +
			"from a local quotes database and the web, and keeps a searchable history\n" +
			"of every interaction with extracted product insights.",
		// Running insightbot with no subcommand starts chat mode.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !cmd.Root().PersistentFlags().Changed("tui") && term.IsTerminal(int(os.Stdout.Fd())) {
				useTUI = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/insightbot/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override model")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "override session owner")
	rootCmd.PersistentFlags().IntVar(&maxIterFlag, "max-iterations", 0, "max agent loop iterations per turn")
	rootCmd.PersistentFlags().BoolVar(&useTUI, "tui", false, "use full-screen TUI mode (default: auto-detect terminal)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if userFlag != "" {
		cfg.User = userFlag
	}
	if maxIterFlag > 0 {
		cfg.MaxIterations = maxIterFlag
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg
}

// buildProvider creates a Provider instance based on configuration.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider
	pc := cfg.GetProviderConfig(name)

	if pc.APIKey == "" {
		return nil, fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - config file: providers.%s.api_key\n"+
				"  - environment: OPENAI_API_KEY / ANTHROPIC_API_KEY",
			name, name,
		)
	}

	model := cfg.Model
	if model == "" {
		model = pc.Model
	}

	if name == "anthropic" {
		return provider.NewAnthropicProvider(pc.APIKey, model), nil
	}
	// Every other provider speaks the OpenAI-compatible API.
	return provider.NewOpenAIProvider(name, pc.APIKey, pc.BaseURL, model), nil
}

// app bundles everything a chat entry point needs, with a single cleanup.
type app struct {
	agent    *agent.Agent
	sessions *session.Store
	history  *history.Store
	sqlTool  *tools.SQLQueryTool
}

func (a *app) close() {
	if a.sqlTool != nil {
		a.sqlTool.Close()
	}
	a.history.Close()
	a.sessions.Close()
}

// buildApp wires the provider, stores, tools and agent together.
func buildApp(ctx context.Context, cfg *config.Config, ui tui.IO) (*app, error) {
	p, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = p.DefaultModel()
	}

	sessions, err := session.Open(cfg.Databases.SessionsPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	extractor := insight.NewLLMExtractor(p, cfg.Model)
	histStore, err := history.Open(cfg.Databases.HistoryPath, extractor)
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("open history store: %w", err)
	}

	var sqlTool *tools.SQLQueryTool
	if cfg.Databases.ProductsPath != "" {
		sqlTool, err = tools.NewSQLQueryTool(cfg.Databases.ProductsPath)
		if err != nil {
			// The agent still works web-only.
			logger.L.Warn("products database unavailable", "path", cfg.Databases.ProductsPath, "error", err)
			sqlTool = nil
		}
	}

	registry := tools.DefaultRegistry(sqlTool, cfg.Web.SearchAPIKey, cfg.Web.SearchDomains)
	executor := tools.NewExecutor(registry)
	systemPrompt := agent.BuildSystemPrompt(ctx, sqlTool)

	a := agent.New(p, executor, cfg, ui, sessions, histStore, systemPrompt)
	return &app{agent: a, sessions: sessions, history: histStore, sqlTool: sqlTool}, nil
}
