package cli

import (
	"github.com/spf13/cobra"

	"spot-price-panel/internal/app"
)

var renderPNGPath string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the cached snapshot as a PNG panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Render(cmd.Context(), app.RenderOptions{PNGPath: renderPNGPath})
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderPNGPath, "png", "", "Path to write the PNG panel (defaults to config)")
}
