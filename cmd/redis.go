package cmd

import (
	"context"
	"fmt"
	"time"

	"Soundcheck/config"
	"Soundcheck/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接，并向事件中继频道发布一条探测消息。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if !cfg.RedisEnabled() {
			return fmt.Errorf("REDIS_HOST is not set; realtime events run without a relay")
		}
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		receivers, err := client.Publish(ctx, cfg.RelayChannel, `{"probe":true}`).Result()
		if err != nil {
			return fmt.Errorf("publish probe: %w", err)
		}
		fmt.Printf("中继频道 %s 当前订阅实例数: %d\n", cfg.RelayChannel, receivers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
