// Package http provides the HTTP transport layer for the asset service.
package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charforge/asset-service/internal/metrics"
	"github.com/charforge/asset-service/internal/middleware"
)

// RouterConfig holds router configuration options.
type RouterConfig struct {
	RateLimit      int
	RateWindow     time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// DefaultRouterConfig returns the default router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimit:      100,
		RateWindow:     time.Minute,
		RequestTimeout: 60 * time.Second,
	}
}

// NewRouter creates and configures the Gin router for the asset service.
func NewRouter(handler *Handler, genHandler *GenerationHandler, healthHandler *HealthHandler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	configureGlobalMiddleware(router, &cfg)
	registerInfrastructureRoutes(router, healthHandler)
	registerAPIRoutes(router, handler, genHandler, &cfg)

	return router
}

// configureGlobalMiddleware sets up middleware applied to all routes.
func configureGlobalMiddleware(router *gin.Engine, cfg *RouterConfig) {
	// CORS configuration
	allowedOrigins := cfg.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	corsConfig := cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Accept-Language", "Authorization", "accept", "Cache-Control", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
	router.Use(cors.New(corsConfig))

	// Core middleware stack
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		metrics.PrometheusMiddleware(),
		middleware.Compression(),
		middleware.RequestLogger(),
		middleware.ErrorHandler(),
	)

	// Global rate limiting
	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
		router.Use(limiter.RateLimit())
	}
}

// registerInfrastructureRoutes registers health and metrics routes.
func registerInfrastructureRoutes(router *gin.Engine, healthHandler *HealthHandler) {
	healthHandler.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerAPIRoutes registers the business routes under /api.
func registerAPIRoutes(router *gin.Engine, handler *Handler, genHandler *GenerationHandler, cfg *RouterConfig) {
	api := router.Group("/api")
	if cfg.RequestTimeout > 0 {
		api.Use(middleware.TimeoutWithDuration(cfg.RequestTimeout))
	}

	if handler != nil {
		api.POST("/assets/resolve", handler.ResolveAssets)
		if handler.assets != nil {
			api.POST("/assets", handler.CreateAsset)
			api.GET("/assets", handler.ListAssets)
			api.GET("/assets/:id", handler.GetAsset)
		}
	}

	if genHandler != nil {
		api.POST("/generations", genHandler.SubmitGeneration)
		api.GET("/generations/:id", genHandler.GetGeneration)
		api.DELETE("/generations/:id", genHandler.CancelGeneration)
	}
}
