package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/insightbot/insightbot/internal/tui"
)

// runChat starts the interactive chat (REPL) mode.
func runChat() error {
	cfg := initConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if useTUI {
		return tui.RunTUI(func(ui tui.IO) error {
			a, err := buildApp(ctx, cfg, ui)
			if err != nil {
				return err
			}
			defer a.close()
			return a.agent.Run(ctx)
		})
	}

	ui := tui.NewPlainIO()
	a, err := buildApp(ctx, cfg, ui)
	if err != nil {
		return err
	}
	defer a.close()
	return a.agent.Run(ctx)
}
