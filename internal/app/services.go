package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/config"
	"github.com/charforge/asset-service/internal/analyzer"
	"github.com/charforge/asset-service/internal/batch"
	"github.com/charforge/asset-service/internal/cache"
	"github.com/charforge/asset-service/internal/executor"
	"github.com/charforge/asset-service/internal/generation"
	"github.com/charforge/asset-service/internal/meshy"
)

// ServiceComponents holds the resolution and generation pipeline components.
type ServiceComponents struct {
	Store       *cache.Store
	Pool        *executor.Pool
	Coordinator *batch.Coordinator
	Tracker     *generation.Tracker
	Poller      *generation.Poller
}

// InitializeServices wires the cache store, fetch executor, batch coordinator
// and generation tracker. The analyzer may be overridden (tests); when nil,
// the Gemini analyzer from the configuration is used.
func InitializeServices(ctx context.Context, cfg config.Config, db *DatabaseComponents, a analyzer.Analyzer) (*ServiceComponents, error) {
	var backend cache.Backend
	if db != nil {
		backend = db.CacheBackend
	} else {
		backend = cache.NewMemoryBackend()
	}

	store := cache.NewStore(backend, cfg.Cache.TTL, cfg.Cache.NegativeTTL)
	if cfg.Cache.SweepInterval > 0 {
		store.StartSweeper(cfg.Cache.SweepInterval)
	}

	pool := executor.NewPool(cfg.Executor.Workers, cfg.Executor.QueueDepth, cfg.Executor.TaskTimeout)

	if a == nil {
		gemini, err := analyzer.NewGeminiAnalyzer(ctx, cfg.Analyzer)
		if err != nil {
			store.Stop()
			pool.Stop()
			return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
		}
		a = gemini
	}

	coordinator := batch.NewCoordinator(store, pool, a, cfg.Batch.MaxSize, cfg.Batch.Deadline)

	components := &ServiceComponents{
		Store:       store,
		Pool:        pool,
		Coordinator: coordinator,
	}

	var jobStore generation.JobStore
	if db != nil {
		jobStore = db.JobStore
	} else {
		jobStore = generation.NewMemoryJobStore()
	}

	generator, err := meshy.NewClient(cfg.Generator)
	if err != nil {
		// Resolution still works without the generation capability.
		log.Warn().Err(err).Msg("Generation disabled")
		return components, nil
	}

	components.Tracker = generation.NewTracker(jobStore, generator, store, cfg.Generator)
	components.Poller = generation.NewPoller(components.Tracker, cfg.Generator)
	components.Poller.Start()

	return components, nil
}

// Stop shuts down the background components in dependency order.
func (s *ServiceComponents) Stop() {
	if s.Poller != nil {
		s.Poller.Stop()
	}
	s.Pool.Stop()
	s.Store.Stop()
}
