package cli

import (
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the bundled sample batch into the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Seed(cmd.Context())
	},
}
