// Package app provides application initialization and dependency injection.
package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/config"
	"github.com/charforge/asset-service/internal/cache"
	"github.com/charforge/asset-service/internal/circuitbreaker"
	"github.com/charforge/asset-service/internal/generation"
	"github.com/charforge/asset-service/internal/repository"
)

// DatabaseComponents holds database-related components.
type DatabaseComponents struct {
	DB                  *repository.MongoDB
	CacheBackend        cache.Backend
	JobStore            generation.JobStore
	Assets              *repository.AssetsRepository
	CacheCircuitBreaker *circuitbreaker.Breaker
	JobsCircuitBreaker  *circuitbreaker.Breaker
}

// isDomainError keeps expected store outcomes from counting as database
// failures in the circuit breakers.
func isDomainError(err error) bool {
	return errors.Is(err, cache.ErrStaleWrite) ||
		errors.Is(err, generation.ErrJobNotFound) ||
		errors.Is(err, generation.ErrJobConflict) ||
		errors.Is(err, repository.ErrAssetNotFound)
}

// InitializeDatabase initializes the MongoDB connection and creates the
// persistent cache backend and job store, both wrapped with circuit breakers.
// Returns nil if the database is disabled or the connection fails; the
// service then falls back to in-memory stores.
func InitializeDatabase(cfg config.DatabaseConfig) *DatabaseComponents {
	if !cfg.Enabled {
		return nil
	}

	db, err := repository.NewMongoDB(cfg.URI, cfg.DatabaseName)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to MongoDB - continuing with in-memory stores")
		return nil
	}

	log.Info().Msg("Connected to MongoDB")

	cacheCB := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Name:             "mongodb-asset-cache",
		IsFailure:        func(err error) bool { return !isDomainError(err) },
	})

	jobsCB := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Name:             "mongodb-generations",
		IsFailure:        func(err error) bool { return !isDomainError(err) },
	})

	cacheBackend := repository.NewCacheBackendWithCircuitBreaker(repository.NewCacheRecordsRepository(db), cacheCB)
	jobStore := repository.NewJobStoreWithCircuitBreaker(repository.NewGenerationsRepository(db), jobsCB)

	return &DatabaseComponents{
		DB:                  db,
		CacheBackend:        cacheBackend,
		JobStore:            jobStore,
		Assets:              repository.NewAssetsRepository(db),
		CacheCircuitBreaker: cacheCB,
		JobsCircuitBreaker:  jobsCB,
	}
}
