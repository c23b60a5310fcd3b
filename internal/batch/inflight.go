package batch

import (
	"sync"

	"github.com/charforge/asset-service/internal/domain/model"
)

// flight is one in-flight computation for a cache key. All concurrent
// requesters for the key share the flight and observe the same result.
type flight struct {
	done  chan struct{}
	value model.AssetMetadata
	err   error
}

// flightTable guards the per-key in-flight tokens. Creation-or-attach is
// atomic: no two callers for the same key can both create a flight.
type flightTable struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func newFlightTable() *flightTable {
	return &flightTable{
		flights: make(map[string]*flight),
	}
}

// acquire returns the flight for key, creating it when absent. created
// reports whether the caller owns the computation and must eventually call
// complete.
func (t *flightTable) acquire(key string) (f *flight, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.flights[key]; ok {
		return f, false
	}
	f = &flight{done: make(chan struct{})}
	t.flights[key] = f
	return f, true
}

// complete publishes the result, releases the token and wakes all waiters.
// The token is removed before done is closed so a requester arriving after
// completion starts a fresh computation instead of attaching to a spent one.
func (t *flightTable) complete(key string, f *flight, value model.AssetMetadata, err error) {
	t.mu.Lock()
	if current, ok := t.flights[key]; ok && current == f {
		delete(t.flights, key)
	}
	f.value = value
	f.err = err
	close(f.done)
	t.mu.Unlock()
}

// size returns the number of outstanding flights. Test helper.
func (t *flightTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flights)
}
