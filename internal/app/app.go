package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/config"
	"github.com/charforge/asset-service/internal/analyzer"
	"github.com/charforge/asset-service/internal/http"
)

// App holds the wired application and the background components it owns.
type App struct {
	Router   *gin.Engine
	services *ServiceComponents
	db       *DatabaseComponents
}

// InitializeApp creates and wires all application dependencies.
// This is the main orchestration function that initializes all components.
func InitializeApp(ctx context.Context, cfg config.Config) (*App, error) {
	return initializeApp(ctx, cfg, nil)
}

// InitializeAppWithAnalyzer wires the application with a caller-provided
// analyzer instead of the configured Gemini client. Used by tests.
func InitializeAppWithAnalyzer(ctx context.Context, cfg config.Config, a analyzer.Analyzer) (*App, error) {
	return initializeApp(ctx, cfg, a)
}

func initializeApp(ctx context.Context, cfg config.Config, a analyzer.Analyzer) (*App, error) {
	// Initialize logger first (needed by other components)
	InitializeLogger()

	// Initialize database components (persistent cache backend, job store, assets)
	dbComponents := InitializeDatabase(cfg.Database)

	// Initialize the resolution and generation pipeline
	serviceComponents, err := InitializeServices(ctx, cfg, dbComponents, a)
	if err != nil {
		if dbComponents != nil {
			_ = dbComponents.DB.Close(ctx)
		}
		return nil, err
	}

	// Initialize router components (handlers and configuration)
	routerComponents := InitializeRouter(serviceComponents, dbComponents, cfg)

	router := http.NewRouter(
		routerComponents.Handler,
		routerComponents.GenerationHandler,
		routerComponents.HealthHandler,
		routerComponents.Config,
	)

	return &App{
		Router:   router,
		services: serviceComponents,
		db:       dbComponents,
	}, nil
}

// Shutdown stops the background components and closes the database.
func (a *App) Shutdown(ctx context.Context) {
	a.services.Stop()
	if a.db != nil {
		if err := a.db.DB.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("MongoDB close failed")
		}
	}
}
