package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/metrics"
)

// Store is the TTL cache store. Expiration is enforced lazily on read; an
// optional background sweep additionally reclaims clearly expired records to
// bound storage growth.
type Store struct {
	backend     Backend
	ttl         time.Duration
	negativeTTL time.Duration
	now         func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	sweepWG  sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a cache store over the given backend. ttl applies to
// successful entries, negativeTTL to cached failures.
func NewStore(backend Backend, ttl, negativeTTL time.Duration, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		ttl:         ttl,
		negativeTTL: negativeTTL,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record for key if it exists and has not expired. Expired
// records are treated as misses and removed best-effort. Callers must check
// rec.Negative before using the value.
func (s *Store) Get(ctx context.Context, key string) (*model.CacheRecord, bool, error) {
	rec, err := s.backend.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheOperation("get", "error")
		return nil, false, err
	}
	if rec == nil {
		metrics.RecordCacheOperation("get", "miss")
		return nil, false, nil
	}
	if !rec.Fresh(s.now()) {
		// Lazy expiry: reclaim on the read path instead of waking a
		// sweeper for every entry.
		if err := s.backend.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to remove expired cache record")
		}
		metrics.RecordCacheOperation("get", "expired")
		return nil, false, nil
	}
	metrics.RecordCacheOperation("get", "hit")
	return rec, true, nil
}

// Put inserts or overwrites the entry for key with the success TTL. expect
// is the version the caller observed when it read (0 for a miss); a
// conflicting concurrent write surfaces as ErrStaleWrite so the caller can
// re-read instead of clobbering a newer result.
func (s *Store) Put(ctx context.Context, key string, value model.AssetMetadata, expect int64) error {
	return s.put(ctx, model.CacheRecord{
		Key:   key,
		Value: value,
	}, s.ttl, expect)
}

// PutNegative caches an upstream failure for key under the shorter negative
// TTL, shedding load from a failing analyzer without remembering the failure
// for long.
func (s *Store) PutNegative(ctx context.Context, key, reason string, expect int64) error {
	return s.put(ctx, model.CacheRecord{
		Key:        key,
		Negative:   true,
		FailReason: reason,
	}, s.negativeTTL, expect)
}

func (s *Store) put(ctx context.Context, rec model.CacheRecord, ttl time.Duration, expect int64) error {
	now := s.now()
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	rec.Version = expect + 1

	err := s.backend.Put(ctx, rec, expect)
	switch {
	case err == nil:
		metrics.RecordCacheOperation("put", "success")
	case err == ErrStaleWrite:
		metrics.RecordCacheOperation("put", "stale")
	default:
		metrics.RecordCacheOperation("put", "error")
	}
	return err
}

// Invalidate removes the entry for key unconditionally. Used when an
// upstream event (generation completion) makes the cached value stale.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		metrics.RecordCacheOperation("invalidate", "error")
		return err
	}
	metrics.RecordCacheOperation("invalidate", "success")
	return nil
}

// InvalidatePrefix removes all entries whose key starts with prefix. Used
// for bulk invalidation tied to a parent asset.
func (s *Store) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	n, err := s.backend.DeletePrefix(ctx, prefix)
	if err != nil {
		metrics.RecordCacheOperation("invalidate_prefix", "error")
		return 0, err
	}
	metrics.RecordCacheOperation("invalidate_prefix", "success")
	return n, nil
}

// StartSweeper launches the best-effort background sweep. A zero or negative
// interval disables it; lazy read-time expiry still applies.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *Store) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.backend.DeleteExpired(ctx, s.now())
	if err != nil {
		log.Warn().Err(err).Msg("Cache sweep failed")
		metrics.RecordCacheOperation("sweep", "error")
		return
	}
	if n > 0 {
		log.Debug().Int64("removed", n).Msg("Cache sweep reclaimed expired records")
	}
	metrics.RecordCacheOperation("sweep", "success")
}

// Stop shuts down the background sweeper. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.sweepWG.Wait()
}
