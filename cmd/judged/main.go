package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"judgebox/internal/config"
	"judgebox/internal/judge/catalogue"
	"judgebox/internal/judge/executor"
	"judgebox/internal/judge/queue"
	"judgebox/internal/judge/service"
	"judgebox/internal/server"
	"judgebox/internal/server/ratelimit"
	"judgebox/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.Logger.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	cat := catalogue.Default()
	if cfg.CataloguePath != "" {
		cat, err = catalogue.LoadFile(cfg.CataloguePath)
		if err != nil {
			logger.Fatal(context.Background(), "load language catalogue failed", zap.Error(err))
		}
	}

	exec, err := executor.New(string(cfg.Mode), executor.Config{
		TempDir:        cfg.TempDir,
		SandboxImage:   cfg.SandboxImage,
		MaxTimeSec:     cfg.Limits.MaxTimeLimitSec,
		MaxMemoryMB:    cfg.Limits.MaxMemoryMB,
		MaxStdoutBytes: cfg.Limits.MaxStdoutBytes,
		MaxStderrBytes: cfg.Limits.MaxStderrBytes,
		MaxOutputMB:    cfg.Limits.MaxOutputFileMB,
	}, cat)
	if err != nil {
		logger.Fatal(context.Background(), "init executor failed", zap.Error(err))
	}

	var store ratelimit.Store
	if cfg.RateLimit.RedisAddr != "" {
		redisStore, err := ratelimit.NewRedisStore(context.Background(), cfg.RateLimit.RedisAddr)
		if err != nil {
			logger.Fatal(context.Background(), "init redis rate-limit store failed", zap.Error(err))
		}
		defer func() {
			_ = redisStore.Close()
		}()
		store = redisStore
	} else {
		store = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(store, cfg.RateLimit.Window, cfg.RateLimit.Max)

	q := queue.New(cfg.MaxConcurrent, cfg.MaxWaiting)
	svc := service.New(cat, exec, q, cfg.Limits)

	stop := make(chan struct{})
	httpServer := server.New(cfg, svc, limiter, stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge server started",
			zap.String("addr", httpServer.Addr),
			zap.String("mode", string(cfg.Mode)),
			zap.Int("max_concurrent", cfg.MaxConcurrent),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}
	close(stop)

	ctx, cancelTimeout := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancelTimeout()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if err := q.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "queue shutdown failed", zap.Error(err))
	}
}
