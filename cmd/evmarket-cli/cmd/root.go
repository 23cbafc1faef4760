package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evmarket-cli",
	Short: "EV marketplace chat service CLI",
	Long: `evmarket-cli is the maintenance tool for the EV marketplace chat service.

Available commands:
  migrate    Create or update the chat tables
  token      Mint a bearer token for local testing
  topics     Explore the in-process bus topics
  version    Print the CLI version

Use "evmarket-cli [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
