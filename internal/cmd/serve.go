package cmd

import (
	"github.com/spf13/cobra"

	"candy.skin/yggdrasil/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts HTTP handler for the authentication and session server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer(di.ModuleYggdrasil, di.ModuleApi)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
