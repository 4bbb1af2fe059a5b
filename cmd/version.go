package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("insightbot %s\n", appVersion)
			if appCommit != "" && appCommit != "none" {
				fmt.Printf("  commit: %s\n", appCommit)
			}
			if appDate != "" && appDate != "unknown" {
				fmt.Printf("  built:  %s\n", appDate)
			}
		},
	}
}
