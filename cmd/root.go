package cmd

import (
	"fmt"
	"os"

	"Soundcheck/config"
	"Soundcheck/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "soundcheck",
	Short: "Soundcheck is a collaborative music feedback service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(config.Load())
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
