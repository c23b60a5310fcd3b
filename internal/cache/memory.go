package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charforge/asset-service/internal/domain/model"
)

// MemoryBackend is an in-process Backend used in tests and when the
// database is disabled. All operations are linearizable per key under a
// single mutex.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]model.CacheRecord
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]model.CacheRecord),
	}
}

// Get returns the record for key, or (nil, nil) when absent.
func (m *MemoryBackend) Get(_ context.Context, key string) (*model.CacheRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put applies the versioned write described on cache.Backend.
func (m *MemoryBackend) Put(_ context.Context, rec model.CacheRecord, expect int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.records[rec.Key]
	if exists && current.Version != expect {
		return ErrStaleWrite
	}
	if !exists && expect != 0 {
		return ErrStaleWrite
	}
	m.records[rec.Key] = rec
	return nil
}

// Delete removes the record for key.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}

// DeletePrefix removes all records whose key starts with prefix.
func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes records whose expiry is at or before now.
func (m *MemoryBackend) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, rec := range m.records {
		if !rec.Fresh(now) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records. Test helper.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
