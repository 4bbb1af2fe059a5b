package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightbot/insightbot/internal/config"
	"github.com/insightbot/insightbot/internal/session"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsExportCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			store, err := openSessions(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			sessions, err := store.ListSessions(ctx, cfg.User, limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions.")
				return nil
			}
			for _, s := range sessions {
				title := s.Title
				if len(title) > 40 {
					title = title[:40] + "..."
				}
				fmt.Printf("%s  %s  %3d msgs  %s\n",
					s.ID[:8], s.LastUpdated.Local().Format("2006-01-02 15:04"),
					s.MessageCount, title)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max sessions to list")
	return cmd
}

func newSessionsExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session transcript as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			store, err := openSessions(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			id, err := resolveSessionID(ctx, store, cfg.User, args[0])
			if err != nil {
				return err
			}

			data, err := store.Export(ctx, id)
			if err != nil {
				return err
			}
			if data == nil {
				return fmt.Errorf("session %s has no messages", id[:8])
			}

			if output == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and all its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := initConfig()
			store, err := openSessions(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			id, err := resolveSessionID(ctx, store, cfg.User, args[0])
			if err != nil {
				return err
			}
			if !store.Delete(ctx, id, cfg.User) {
				return fmt.Errorf("delete failed: session %s not found or not yours", id[:8])
			}
			fmt.Printf("Deleted session %s\n", id[:8])
			return nil
		},
	}
}

func openSessions(cfg *config.Config) (*session.Store, error) {
	store, err := session.Open(cfg.Databases.SessionsPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

// resolveSessionID matches an id prefix against all of the owner's
// sessions, archived ones included.
func resolveSessionID(ctx context.Context, store *session.Store, owner, idPrefix string) (string, error) {
	sessions, err := store.AllSessions(ctx, owner)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, idPrefix) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no session matches prefix %q", idPrefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("prefix %q is ambiguous (%d matches)", idPrefix, len(matches))
	}
}
