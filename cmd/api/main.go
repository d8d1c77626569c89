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

	"dish-recommender/internal/api"
	"dish-recommender/internal/core/ai/completion"
	"dish-recommender/internal/core/cache"
	"dish-recommender/internal/core/extract"
	"dish-recommender/internal/core/image"
	"dish-recommender/internal/core/metrics"
	"dish-recommender/internal/core/nutrition"
	"dish-recommender/internal/core/recommend"
	"dish-recommender/internal/core/retry"
	"dish-recommender/internal/infrastructure/config"
	"dish-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(common.LoggerOptions{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogDir,
		Service: cfg.App.Name,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("completion_model", cfg.Completion.Model),
		zap.String("completion_key", common.MaskSecret(cfg.Completion.APIKey)),
		zap.String("nutrition_key", common.MaskSecret(cfg.Nutrition.APIKey)),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("image_enabled", cfg.Image.Enabled),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, quit); err != nil {
		common.LogError("Server terminated", zap.Error(err))
		common.Sync()
		os.Exit(1)
	}
	common.LogInfo("Server exited")
}

// newStore 建立會話快取，測試時可替換
var newStore = cache.New

// run 組裝服務並運行到收到停止信號；回傳前一定會關閉快取
func run(cfg *config.Config, stop <-chan os.Signal) error {
	// 會話快取，程式結束時丟棄
	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := newStore(initCtx, cfg)
	cancelInit()
	if err != nil {
		return fmt.Errorf("failed to initialize nutrition cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			common.LogWarn("Failed to close nutrition cache", zap.Error(err))
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	enricher := nutrition.NewEnricher(
		nutrition.NewClient(cfg.Nutrition),
		store,
		retry.Policy{MaxRetries: cfg.Nutrition.MaxRetries, InitialDelay: cfg.Nutrition.BaseBackoff},
		m,
	)

	var images image.Finder
	if cfg.Image.Enabled {
		images = image.NewService(cfg.Image)
	}

	orchestrator := recommend.New(
		completion.NewClient(cfg.Completion),
		extract.NewPatternExtractor(),
		enricher,
		images,
		m,
		recommend.Options{
			MaxAttempts:       cfg.Extraction.MaxAttempts,
			RetryDelay:        cfg.Extraction.RetryDelay,
			Workers:           cfg.Recommend.Workers,
			SubmissionTimeout: cfg.Recommend.SubmissionTimeout,
		},
	)

	router, err := api.SetupRouter(cfg, api.Dependencies{
		Recommender: orchestrator,
		Store:       store,
		Metrics:     m,
		InProgress:  orchestrator.InProgress,
	})
	if err != nil {
		return fmt.Errorf("failed to setup router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	serveErr := make(chan error, 1)
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 等待中斷信號
	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	// 等待進行中的提交結束再丟棄快取
	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		common.LogWarn("Submission still running at shutdown")
	}
	return nil
}
