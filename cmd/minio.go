package cmd

import (
	"context"
	"fmt"
	"time"

	"Soundcheck/config"
	"Soundcheck/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioInit   bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶检查",
	Long:  `检查MinIO连接，并统计存储桶中音频文件的数量和大小。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if minioInit {
			if err := store.EnsureBucket(ctx); err != nil {
				return err
			}
			fmt.Println("存储桶已就绪")
		} else if err := store.Ping(ctx); err != nil {
			return err
		}

		stats, err := store.Stats(ctx, minioPrefix)
		if err != nil {
			return err
		}
		fmt.Printf("前缀: %s\n", minioPrefix)
		fmt.Printf("对象数量: %d\n", stats.TotalObjects)
		fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf("最近修改: %s\n", stats.LastModified.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.AudioPrefix, "按前缀统计文件")
	minioCmd.Flags().BoolVar(&minioInit, "init", false, "创建存储桶并设置公开读策略")

	minioCmd.Example = `  # 统计所有音频
  soundcheck minio

  # 统计某个项目
  soundcheck minio -p "tracks/<projectId>/"`
}
