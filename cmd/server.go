package cmd

import (
	"Soundcheck/config"
	"Soundcheck/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动Soundcheck服务器",
	Long:  `启动HTTP API 与 WebSocket 实时推送服务`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(config.Load())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
