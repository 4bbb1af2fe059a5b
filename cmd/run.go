package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/insightbot/insightbot/internal/tui"
)

func newRunCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single prompt non-interactively",
		Example: `  insightbot run -P "What companies are in the database?"
  insightbot run --prompt "Current price of a Keysight DMM6500"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			return runOnce(prompt)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the prompt to execute")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

// runOnce executes a single prompt on a fresh session and exits.
func runOnce(prompt string) error {
	cfg := initConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ui := tui.NewPlainIO()
	a, err := buildApp(ctx, cfg, ui)
	if err != nil {
		return err
	}
	defer a.close()
	return a.agent.RunOnce(ctx, prompt)
}
