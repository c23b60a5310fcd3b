// Package main is the entry point for the asset-service application.
//
// @title           Asset Service API
// @version         1.0.0
// @description     API for batch asset metadata resolution with TTL caching and
//
//	asynchronous 3D generation job tracking for character assets.
//
// @termsOfService  http://swagger.io/terms/
//
// @contact.name   API Support
// @contact.email  support@example.com
// @contact.url    https://github.com/charforge/asset-service
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @host      localhost:8080
// @BasePath  /
//
// @tag.name        Assets
// @tag.description Asset registration and batch metadata resolution
//
// @tag.name        Generations
// @tag.description Asynchronous 3D generation job tracking
//
// @tag.name        Health
// @tag.description Health check endpoints
package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/config"
	"github.com/charforge/asset-service/internal/app"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	application, err := app.InitializeApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Initialization failed")
	}
	defer application.Shutdown(ctx)

	server := app.NewServer(application.Router, cfg.Server.Port)
	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
