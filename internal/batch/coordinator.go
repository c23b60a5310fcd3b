// Package batch groups individual asset requests into bounded batches,
// deduplicates concurrent requests per key, and dispatches uncached work to
// the fetch executor.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/internal/analyzer"
	"github.com/charforge/asset-service/internal/cache"
	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/executor"
	"github.com/charforge/asset-service/internal/metrics"
)

var (
	// ErrDeadlineExceeded is reported for a key whose computation did not
	// complete within the batch deadline. It fails only that key.
	ErrDeadlineExceeded = errors.New("batch deadline exceeded for key")
	// ErrUpstream is reported for keys served from a negative cache entry.
	ErrUpstream = errors.New("upstream failure")
)

// Request is one batch of asset identifiers to resolve. Fully consumed
// within a single coordination cycle, never persisted.
type Request struct {
	Items       []string
	RequestedAt time.Time
}

// ItemResult is the outcome for one key in a batch.
type ItemResult struct {
	Key    string
	Value  model.AssetMetadata
	Err    error
	Cached bool
}

// Coordinator resolves batches against the cache store, collapsing
// concurrent demand per key into a single computation.
type Coordinator struct {
	store    *cache.Store
	pool     *executor.Pool
	analyzer analyzer.Analyzer
	flights  *flightTable

	maxBatch int
	deadline time.Duration
}

// NewCoordinator creates a batch coordinator.
func NewCoordinator(store *cache.Store, pool *executor.Pool, a analyzer.Analyzer, maxBatch int, deadline time.Duration) *Coordinator {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &Coordinator{
		store:    store,
		pool:     pool,
		analyzer: a,
		flights:  newFlightTable(),
		maxBatch: maxBatch,
		deadline: deadline,
	}
}

// Resolve partitions the request into cached and uncached keys, dispatches
// the misses, and returns one result per unique key in first-occurrence
// order. A failure on one key never aborts its siblings; keys that miss the
// batch deadline are reported individually as timeouts.
func (c *Coordinator) Resolve(ctx context.Context, req Request) []ItemResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	keys := dedupe(req.Items)
	results := make(map[string]ItemResult, len(keys))

	misses := c.partition(ctx, keys, results)

	// Dispatch misses in bounded sub-batches. Attaching to an existing
	// flight costs nothing; only flight owners submit to the pool.
	waits := make(map[string]*flight, len(misses))
	for _, sub := range chunk(misses, c.maxBatch) {
		log.Debug().Int("size", len(sub)).Msg("Dispatching uncached sub-batch")
		for _, key := range sub {
			f, created := c.flights.acquire(key)
			waits[key] = f
			if created {
				c.launch(key, f)
			} else {
				metrics.RecordBatchItem("joined")
			}
		}
	}

	failed := c.await(ctx, waits, results)

	ordered := make([]ItemResult, 0, len(keys))
	for _, key := range keys {
		ordered = append(ordered, results[key])
	}

	status := "success"
	if failed {
		status = "partial"
	}
	metrics.RecordBatchResolution(time.Since(start), status)
	return ordered
}

// partition fills results with cache hits (including negative hits) and
// returns the keys that need computation.
func (c *Coordinator) partition(ctx context.Context, keys []string, results map[string]ItemResult) []string {
	misses := make([]string, 0, len(keys))
	for _, key := range keys {
		rec, found, err := c.store.Get(ctx, key)
		if err != nil {
			// A cache read failure degrades to a miss; the value is
			// recomputable.
			log.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
			misses = append(misses, key)
			continue
		}
		if !found {
			misses = append(misses, key)
			continue
		}
		if rec.Negative {
			results[key] = ItemResult{
				Key:    key,
				Err:    fmt.Errorf("%w: %s", ErrUpstream, rec.FailReason),
				Cached: true,
			}
		} else {
			results[key] = ItemResult{Key: key, Value: rec.Value, Cached: true}
		}
		metrics.RecordBatchItem("hit")
	}
	return misses
}

// launch runs the computation for a newly created flight. Pool rejection
// (capacity) completes the flight immediately so all waiters see the error.
func (c *Coordinator) launch(key string, f *flight) {
	task, err := c.pool.Submit(key, func(ctx context.Context) (model.AssetMetadata, error) {
		return c.analyzer.Analyze(ctx, key)
	})
	if err != nil {
		c.flights.complete(key, f, model.AssetMetadata{}, err)
		return
	}

	// The write-back runs detached from any one caller's context: a batch
	// deadline cancels waiters, never the shared computation.
	go func() {
		value, err := task.Wait(context.Background())
		if err == nil {
			value = c.writeBack(key, value)
		} else {
			c.maybeCacheFailure(key, err)
		}
		c.flights.complete(key, f, value, err)
	}()
}

// writeBack stores a computed value. A stale-write conflict means another
// writer got there first; the freshly stored value is adopted so every
// waiter still observes a single consistent result. StaleWrite never
// propagates out of this layer.
func (c *Coordinator) writeBack(key string, value model.AssetMetadata) model.AssetMetadata {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.store.Put(ctx, key, value, 0)
	if err == nil {
		metrics.RecordBatchItem("computed")
		return value
	}
	if errors.Is(err, cache.ErrStaleWrite) {
		if rec, found, rerr := c.store.Get(ctx, key); rerr == nil && found && !rec.Negative {
			metrics.RecordBatchItem("computed")
			return rec.Value
		}
		return value
	}
	log.Warn().Err(err).Str("key", key).Msg("Cache write-back failed")
	metrics.RecordBatchItem("computed")
	return value
}

// maybeCacheFailure writes a short-TTL negative entry for upstream
// failures, shedding load from a failing analyzer. Rate-limit rejections
// are retryable immediately and timeouts/capacity are transient pool
// conditions, so neither is negatively cached.
func (c *Coordinator) maybeCacheFailure(key string, err error) {
	switch {
	case errors.Is(err, analyzer.ErrRateLimited),
		errors.Is(err, executor.ErrTaskTimeout),
		errors.Is(err, executor.ErrCapacityExceeded),
		errors.Is(err, executor.ErrPoolClosed):
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if perr := c.store.PutNegative(ctx, key, err.Error(), 0); perr != nil && !errors.Is(perr, cache.ErrStaleWrite) {
		log.Warn().Err(perr).Str("key", key).Msg("Negative cache write failed")
	}
}

// await collects flight results with per-key deadline isolation and reports
// whether any key failed.
func (c *Coordinator) await(ctx context.Context, waits map[string]*flight, results map[string]ItemResult) bool {
	failed := false
	for key, f := range waits {
		// A flight that already completed is reported as a result even when
		// the batch deadline has fired: with both channels ready a blocking
		// select picks at random and could discard a finished value.
		select {
		case <-f.done:
		default:
			select {
			case <-f.done:
			case <-ctx.Done():
				// Cancels only this waiter; the shared flight keeps running
				// for other callers and for the cache write-back.
				failed = true
				metrics.RecordBatchItem("timeout")
				results[key] = ItemResult{Key: key, Err: fmt.Errorf("%w: %s", ErrDeadlineExceeded, key)}
				continue
			}
		}
		if f.err != nil {
			failed = true
			metrics.RecordBatchItem("error")
			results[key] = ItemResult{Key: key, Err: f.err}
		} else {
			results[key] = ItemResult{Key: key, Value: f.value}
		}
	}
	return failed
}

// InFlight returns the number of outstanding computations. Exposed for
// readiness reporting.
func (c *Coordinator) InFlight() int {
	return c.flights.size()
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func chunk(items []string, size int) [][]string {
	if len(items) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(items)+size-1)/size)
	for size < len(items) {
		out = append(out, items[:size])
		items = items[size:]
	}
	return append(out, items)
}
