package cli

import (
	"github.com/spf13/cobra"

	"ibex-sync/internal/app"
)

var serveSeed bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP sync API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), app.ServeOptions{Seed: serveSeed})
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Preload the bundled sample batch before serving")
}
