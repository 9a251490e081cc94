package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Soundcheck/cache"
	"Soundcheck/config"
	"Soundcheck/core/access"
	"Soundcheck/core/auth"
	"Soundcheck/core/feedback"
	"Soundcheck/core/projects"
	"Soundcheck/core/realtime"
	"Soundcheck/core/tracks"
	"Soundcheck/db"
	"Soundcheck/logger"
	"Soundcheck/repository"
	"Soundcheck/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Wire 基于 gdb 和 files 组装仓储与服务并返回处理器。hub 需已在运行，rdb 可为 nil
func Wire(cfg *config.Config, gdb *gorm.DB, files tracks.FileStore, hub *realtime.Hub, rdb *redis.Client) *APIHandler {
	userRepo := repository.NewGormUserRepository(gdb)
	projectRepo := repository.NewGormProjectRepository(gdb)
	if rdb != nil {
		projectRepo = cache.NewMemberCache(projectRepo, rdb)
	}
	trackRepo := repository.NewGormTrackRepository(gdb)
	feedbackRepo := repository.NewGormFeedbackRepository(gdb)

	guard := access.NewGuard(projectRepo, trackRepo)

	return NewAPIHandler(cfg, Services{
		Users:    userRepo,
		Tokens:   auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Guard:    guard,
		Projects: projects.NewService(projectRepo, userRepo, guard),
		Tracks: tracks.NewService(trackRepo, feedbackRepo, projectRepo, userRepo, guard, files, hub, tracks.Limits{
			MaxBytes:       cfg.MaxUploadBytes,
			AllowedFormats: cfg.AllowedAudioFormat,
		}),
		Feedback: feedback.NewService(feedbackRepo, userRepo, guard, hub),
		Hub:      hub,
		Health:   map[string]HealthCheck{},
	})
}

// AddHealthCheck 为 /healthz 注册依赖检查
func (h *APIHandler) AddHealthCheck(name string, check HealthCheck) {
	h.health[name] = check
}

// Start 初始化并启动 HTTP 服务，收到 SIGINT/SIGTERM 后退出
func Start(cfg *config.Config) error {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 连接数据库
	gdb, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	// 初始化 MinIO
	files, err := storage.NewMinioStore(cfg)
	if err != nil {
		return err
	}
	if err := files.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to prepare bucket: %w", err)
	}

	hub := realtime.NewHub(realtime.NewRoomRegistry(), 0)
	go hub.Run()
	defer hub.Stop()

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		if rdb, err = db.ConnectRedis(ctx, cfg); err != nil {
			return err
		}
		defer rdb.Close()

		relay := realtime.NewRelay(rdb, cfg.RelayChannel, hub.DeliverRemote)
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("failed to start event relay: %w", err)
		}
		hub.SetRelay(relay)
		logger.Info("event relay started",
			logger.String("topic", cfg.RelayChannel),
			logger.String("origin", relay.Origin()))
	} else {
		logger.Warn("REDIS_HOST not set, realtime events stay on this instance")
	}

	h := Wire(cfg, gdb, files, hub, rdb)
	h.AddHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	h.AddHealthCheck("storage", files.Ping)
	if rdb != nil {
		h.AddHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// 设置服务器超时
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     h.Router(),
		ReadTimeout: 2 * time.Minute,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
