package api

import (
	"fmt"
	"time"

	"dish-recommender/internal/api/handlers/dishes"
	"dish-recommender/internal/api/handlers/health"
	"dish-recommender/internal/api/middleware"
	"dish-recommender/internal/core/cache"
	"dish-recommender/internal/core/metrics"
	"dish-recommender/internal/infrastructure/config"
	"dish-recommender/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies 路由需要的服務
type Dependencies struct {
	Recommender dishes.Recommender
	Store       cache.Store
	Metrics     *metrics.Metrics
	InProgress  func() bool
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Recommender == nil {
		return nil, fmt.Errorf("recommender is required")
	}

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg.App.Version, deps.Store, deps.InProgress)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	dishHandler := dishes.NewHandler(deps.Recommender)

	// API 路由組
	api := router.Group("/api/v1")
	{
		api.GET("/dishes", dishHandler.HandleState)
		api.GET("/dishes/stream", dishHandler.HandleStream)

		submit := []gin.HandlerFunc{middleware.BodySizeLimit(cfg.Server.MaxBodyBytes)}
		if cfg.RateLimit.Enabled {
			submit = append(submit, middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
		}
		submit = append(submit, middleware.NewDeduplicator(cfg.DedupWindow).Middleware(), dishHandler.HandleSubmit)
		api.POST("/dishes", submit...)
	}

	common.LogInfo("Router setup completed",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled && deps.Metrics != nil),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}
