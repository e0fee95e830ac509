package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keygate",
	Short: "keygate is the authentication gate for the portfolio SSH keys page",
	Long: `keygate serves the login, session, and rate-limiting API that protects
the SSH keys page of the portfolio site. Configuration comes from KEYGATE_*
environment variables; see the server command flags for overrides.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
