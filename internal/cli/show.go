package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ibex-sync/internal/app"
)

var (
	showRuns  bool
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored companies or recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Runs:  showRuns,
			Limit: showLimit,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showRuns, "runs", false, "Show recent sync runs instead of companies")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of sync runs to display")
}
