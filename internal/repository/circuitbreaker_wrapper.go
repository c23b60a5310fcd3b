package repository

import (
	"context"
	"errors"
	"time"

	"github.com/charforge/asset-service/internal/cache"
	"github.com/charforge/asset-service/internal/circuitbreaker"
	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/generation"
)

// CacheBackendWithCircuitBreaker wraps the cache backend with circuit breaker
// protection. The cache is an optimization, so an open circuit degrades it:
// reads become misses and writes are skipped, keeping resolution alive on the
// analyzer alone while the database recovers.
type CacheBackendWithCircuitBreaker struct {
	backend        *CacheRecordsRepository
	circuitBreaker *circuitbreaker.Breaker
}

// NewCacheBackendWithCircuitBreaker creates a protected cache backend.
func NewCacheBackendWithCircuitBreaker(backend *CacheRecordsRepository, cb *circuitbreaker.Breaker) *CacheBackendWithCircuitBreaker {
	return &CacheBackendWithCircuitBreaker{
		backend:        backend,
		circuitBreaker: cb,
	}
}

// Get implements cache.Backend. An open circuit reads as a miss.
func (r *CacheBackendWithCircuitBreaker) Get(ctx context.Context, key string) (*model.CacheRecord, error) {
	var rec *model.CacheRecord
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		rec, cbErr = r.backend.Get(ctx, key)
		return cbErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, nil
	}
	return rec, err
}

// Put implements cache.Backend. An open circuit skips the write.
func (r *CacheBackendWithCircuitBreaker) Put(ctx context.Context, rec model.CacheRecord, expect int64) error {
	err := r.circuitBreaker.Execute(ctx, func() error {
		return r.backend.Put(ctx, rec, expect)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil
	}
	return err
}

// Delete implements cache.Backend.
func (r *CacheBackendWithCircuitBreaker) Delete(ctx context.Context, key string) error {
	err := r.circuitBreaker.Execute(ctx, func() error {
		return r.backend.Delete(ctx, key)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil
	}
	return err
}

// DeletePrefix implements cache.Backend. Invalidation is not skippable: a
// caller relying on it must learn the circuit is open.
func (r *CacheBackendWithCircuitBreaker) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		n, cbErr = r.backend.DeletePrefix(ctx, prefix)
		return cbErr
	})
	return n, err
}

// DeleteExpired implements cache.Backend. The sweep is best-effort.
func (r *CacheBackendWithCircuitBreaker) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		n, cbErr = r.backend.DeleteExpired(ctx, now)
		return cbErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return 0, nil
	}
	return n, err
}

// Breaker returns the underlying circuit breaker for monitoring.
func (r *CacheBackendWithCircuitBreaker) Breaker() *circuitbreaker.Breaker {
	return r.circuitBreaker
}

// JobStoreWithCircuitBreaker wraps the generations job store with circuit
// breaker protection. Job state is authoritative, so errors pass through
// unmasked; the breaker only sheds load from a failing database.
type JobStoreWithCircuitBreaker struct {
	store          *GenerationsRepository
	circuitBreaker *circuitbreaker.Breaker
}

// NewJobStoreWithCircuitBreaker creates a protected job store.
func NewJobStoreWithCircuitBreaker(store *GenerationsRepository, cb *circuitbreaker.Breaker) *JobStoreWithCircuitBreaker {
	return &JobStoreWithCircuitBreaker{
		store:          store,
		circuitBreaker: cb,
	}
}

// Insert implements generation.JobStore.
func (r *JobStoreWithCircuitBreaker) Insert(ctx context.Context, job *model.GenerationJob) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.store.Insert(ctx, job)
	})
}

// Get implements generation.JobStore.
func (r *JobStoreWithCircuitBreaker) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	var job *model.GenerationJob
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		job, cbErr = r.store.Get(ctx, id)
		return cbErr
	})
	return job, err
}

// ListDue implements generation.JobStore.
func (r *JobStoreWithCircuitBreaker) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.GenerationJob, error) {
	var jobs []*model.GenerationJob
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		jobs, cbErr = r.store.ListDue(ctx, now, limit)
		return cbErr
	})
	return jobs, err
}

// Update implements generation.JobStore.
func (r *JobStoreWithCircuitBreaker) Update(ctx context.Context, job *model.GenerationJob, fromStates ...model.JobState) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.store.Update(ctx, job, fromStates...)
	})
}

// Breaker returns the underlying circuit breaker for monitoring.
func (r *JobStoreWithCircuitBreaker) Breaker() *circuitbreaker.Breaker {
	return r.circuitBreaker
}

var (
	_ cache.Backend       = (*CacheBackendWithCircuitBreaker)(nil)
	_ generation.JobStore = (*JobStoreWithCircuitBreaker)(nil)
)
