package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charforge/asset-service/internal/analyzer"
	"github.com/charforge/asset-service/internal/cache"
	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/executor"
)

func newTestStore() *cache.Store {
	return cache.NewStore(cache.NewMemoryBackend(), time.Hour, time.Minute)
}

func metaFor(ref string) model.AssetMetadata {
	return model.AssetMetadata{Name: ref, Category: "prop"}
}

func TestResolve_CacheHitSkipsAnalyzer(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Put(context.Background(), "asset:1", metaFor("asset:1"), 0))

	var calls atomic.Int32
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		calls.Add(1)
		return metaFor(ref), nil
	})

	pool := executor.NewPool(2, 8, time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, time.Second)

	results := c.Resolve(context.Background(), Request{Items: []string{"asset:1"}})
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].Cached)
	assert.Equal(t, "asset:1", results[0].Value.Name)
	assert.Equal(t, int32(0), calls.Load())
}

func TestResolve_MixedHitsAndMisses(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Put(context.Background(), "asset:hit", metaFor("asset:hit"), 0))

	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		return metaFor(ref), nil
	})
	pool := executor.NewPool(2, 8, time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, time.Second)

	results := c.Resolve(context.Background(), Request{Items: []string{"asset:hit", "asset:miss"}})
	require.Len(t, results, 2)

	assert.Equal(t, "asset:hit", results[0].Key)
	assert.True(t, results[0].Cached)
	assert.Equal(t, "asset:miss", results[1].Key)
	assert.False(t, results[1].Cached)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, "asset:miss", results[1].Value.Name)

	// The computed value must be cached for the next batch.
	rec, found, err := store.Get(context.Background(), "asset:miss")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "asset:miss", rec.Value.Name)
}

func TestResolve_DuplicateKeysCollapse(t *testing.T) {
	store := newTestStore()
	var calls atomic.Int32
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		calls.Add(1)
		return metaFor(ref), nil
	})
	pool := executor.NewPool(2, 8, time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, time.Second)

	results := c.Resolve(context.Background(), Request{Items: []string{"asset:1", "asset:1", "asset:1"}})
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_ConcurrentBatchesSingleFlight(t *testing.T) {
	store := newTestStore()

	var calls atomic.Int32
	release := make(chan struct{})
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		calls.Add(1)
		<-release
		return metaFor(ref), nil
	})
	pool := executor.NewPool(4, 16, 5*time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, 5*time.Second)

	const resolvers = 8
	var wg sync.WaitGroup
	outs := make([][]ItemResult, resolvers)
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = c.Resolve(context.Background(), Request{Items: []string{"asset:shared"}})
		}(i)
	}

	// Let every resolver attach to the single flight before it completes.
	require.Eventually(t, func() bool { return c.InFlight() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, out := range outs {
		require.Len(t, out, 1)
		assert.NoError(t, out[0].Err)
		assert.Equal(t, "asset:shared", out[0].Value.Name)
	}
	assert.Equal(t, 0, c.InFlight())
}

func TestResolve_PerKeyDeadlineIsolation(t *testing.T) {
	store := newTestStore()
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		if ref == "asset:slow" {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return model.AssetMetadata{}, ctx.Err()
			}
		}
		return metaFor(ref), nil
	})
	pool := executor.NewPool(4, 8, 5*time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, 200*time.Millisecond)

	results := c.Resolve(context.Background(), Request{Items: []string{"asset:fast", "asset:slow"}})
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "asset:fast", results[0].Value.Name)
	assert.ErrorIs(t, results[1].Err, ErrDeadlineExceeded)
}

func TestAwait_CompletedFlightWinsOverExpiredDeadline(t *testing.T) {
	store := newTestStore()
	pool := executor.NewPool(1, 4, time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, nil, 50, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Flights that finished before the deadline fired must be reported as
	// results, never folded into the deadline error.
	for run := 0; run < 20; run++ {
		waits := make(map[string]*flight)
		for _, key := range []string{"asset:a", "asset:b", "asset:c"} {
			f, created := c.flights.acquire(key)
			require.True(t, created)
			c.flights.complete(key, f, metaFor(key), nil)
			waits[key] = f
		}

		results := make(map[string]ItemResult, len(waits))
		failed := c.await(ctx, waits, results)

		assert.False(t, failed)
		for key := range waits {
			require.NoError(t, results[key].Err, key)
			assert.Equal(t, key, results[key].Value.Name)
		}
	}
}

func TestResolve_FailureIsolatedPerKey(t *testing.T) {
	store := newTestStore()
	boom := errors.New("boom")
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		if ref == "asset:bad" {
			return model.AssetMetadata{}, boom
		}
		return metaFor(ref), nil
	})
	pool := executor.NewPool(2, 8, time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, time.Second)

	results := c.Resolve(context.Background(), Request{Items: []string{"asset:good", "asset:bad"}})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
}

func TestResolve_NegativeCachesUnavailable(t *testing.T) {
	store := newTestStore()
	var calls atomic.Int32
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		calls.Add(1)
		return model.AssetMetadata{}, analyzer.ErrUnavailable
	})
	pool := executor.NewPool(2, 8, time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, time.Second)

	first := c.Resolve(context.Background(), Request{Items: []string{"asset:down"}})
	require.Len(t, first, 1)
	assert.ErrorIs(t, first[0].Err, analyzer.ErrUnavailable)
	assert.False(t, first[0].Cached)

	// The failure is remembered: the second batch is answered from the
	// negative entry without another analyzer call.
	second := c.Resolve(context.Background(), Request{Items: []string{"asset:down"}})
	require.Len(t, second, 1)
	assert.ErrorIs(t, second[0].Err, ErrUpstream)
	assert.True(t, second[0].Cached)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_RateLimitNotNegativelyCached(t *testing.T) {
	store := newTestStore()
	var calls atomic.Int32
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		if calls.Add(1) == 1 {
			return model.AssetMetadata{}, analyzer.ErrRateLimited
		}
		return metaFor(ref), nil
	})
	pool := executor.NewPool(2, 8, time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, time.Second)

	first := c.Resolve(context.Background(), Request{Items: []string{"asset:1"}})
	require.Len(t, first, 1)
	assert.ErrorIs(t, first[0].Err, analyzer.ErrRateLimited)

	second := c.Resolve(context.Background(), Request{Items: []string{"asset:1"}})
	require.Len(t, second, 1)
	assert.NoError(t, second[0].Err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_CapacityExceededSurfacesPerItem(t *testing.T) {
	store := newTestStore()
	release := make(chan struct{})
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		<-release
		return metaFor(ref), nil
	})
	// One worker, zero queue: the second distinct key cannot be admitted.
	pool := executor.NewPool(1, 0, 5*time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, 2*time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Occupy the only worker.
		c.Resolve(context.Background(), Request{Items: []string{"asset:busy"}})
	}()
	require.Eventually(t, func() bool { return c.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	results := c.Resolve(context.Background(), Request{Items: []string{"asset:rejected"}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, executor.ErrCapacityExceeded)

	close(release)
	wg.Wait()

	// Capacity rejection is transient: no negative entry was written.
	_, found, err := store.Get(context.Background(), "asset:rejected")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolve_StaleWriteRecovered(t *testing.T) {
	store := newTestStore()
	release := make(chan struct{})
	a := analyzer.Func(func(ctx context.Context, ref string) (model.AssetMetadata, error) {
		<-release
		return model.AssetMetadata{Name: "computed", Category: "prop"}, nil
	})
	pool := executor.NewPool(1, 4, 5*time.Second)
	defer pool.Stop()
	c := NewCoordinator(store, pool, a, 50, 5*time.Second)

	done := make(chan []ItemResult, 1)
	go func() {
		done <- c.Resolve(context.Background(), Request{Items: []string{"asset:raced"}})
	}()
	require.Eventually(t, func() bool { return c.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	// A competing writer lands first; the coordinator's write-back must lose
	// the race and adopt the stored value instead of clobbering it.
	require.NoError(t, store.Put(context.Background(), "asset:raced", model.AssetMetadata{Name: "stored", Category: "prop"}, 0))
	close(release)

	results := <-done
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "stored", results[0].Value.Name)

	rec, found, err := store.Get(context.Background(), "asset:raced")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "stored", rec.Value.Name)
	assert.Equal(t, int64(1), rec.Version)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupe([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, dedupe(nil))
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		size     int
		expected [][]string
	}{
		{"empty", nil, 3, nil},
		{"single chunk", []string{"a", "b"}, 3, [][]string{{"a", "b"}}},
		{"exact multiple", []string{"a", "b", "c", "d"}, 2, [][]string{{"a", "b"}, {"c", "d"}}},
		{"remainder", []string{"a", "b", "c"}, 2, [][]string{{"a", "b"}, {"c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, chunk(tt.items, tt.size))
		})
	}
}

func TestFlightTable_AcquireComplete(t *testing.T) {
	tbl := newFlightTable()

	f1, created := tbl.acquire("k")
	require.True(t, created)
	f2, created := tbl.acquire("k")
	require.False(t, created)
	assert.Same(t, f1, f2)
	assert.Equal(t, 1, tbl.size())

	tbl.complete("k", f1, metaFor("k"), nil)
	<-f1.done
	assert.Equal(t, 0, tbl.size())

	// After completion a new acquire starts a fresh flight.
	f3, created := tbl.acquire("k")
	require.True(t, created)
	assert.NotSame(t, f1, f3)
}
