package cmd

import (
	"fmt"

	"Soundcheck/config"
	"Soundcheck/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		fmt.Printf("数据库: %s:%s/%s\n", cfg.DBHost, cfg.DBPort, cfg.DBName)

		gdb, err := db.Connect(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		if err := db.AutoMigrate(gdb); err != nil {
			return err
		}
		fmt.Printf("已迁移 %d 个模型\n", len(db.Models))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
