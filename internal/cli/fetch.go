package cli

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch prices once, update persisted state, and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().FetchOnce(cmd.Context())
	},
}
