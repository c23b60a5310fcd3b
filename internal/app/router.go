package app

import (
	"context"

	"github.com/charforge/asset-service/config"
	"github.com/charforge/asset-service/internal/http"
)

// RouterComponents holds router-related components.
type RouterComponents struct {
	Handler           *http.Handler
	GenerationHandler *http.GenerationHandler
	HealthHandler     *http.HealthHandler
	Config            http.RouterConfig
}

// InitializeRouter initializes HTTP handlers and router configuration.
func InitializeRouter(services *ServiceComponents, db *DatabaseComponents, cfg config.Config) *RouterComponents {
	var assets http.AssetStore
	if db != nil {
		assets = db.Assets
	}
	handler := http.NewHandler(services.Coordinator, assets)

	var genHandler *http.GenerationHandler
	if services.Tracker != nil {
		genHandler = http.NewGenerationHandler(services.Tracker)
	}

	healthHandler := http.NewHealthHandler()
	if db != nil {
		healthHandler.RegisterChecker("mongodb", http.HealthCheckerFunc(func(ctx context.Context) error {
			return db.DB.HealthCheck(ctx)
		}))
		healthHandler.RegisterCircuitBreaker("asset_cache", db.CacheCircuitBreaker)
		healthHandler.RegisterCircuitBreaker("generations", db.JobsCircuitBreaker)
	}

	routerCfg := http.RouterConfig{
		RateLimit:      cfg.Server.RateLimit,
		RateWindow:     cfg.Server.RateWindow,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}

	return &RouterComponents{
		Handler:           handler,
		GenerationHandler: genHandler,
		HealthHandler:     healthHandler,
		Config:            routerCfg,
	}
}
