// Package cache implements the TTL cache store for analyzed asset metadata.
//
// The package splits policy from storage: Store decides freshness, versioning
// and negative-caching behavior, while a Backend only holds records. The
// production backend sits on the persistent document store; an in-memory
// backend serves tests and database-disabled deployments.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/charforge/asset-service/internal/domain/model"
)

var (
	// ErrStaleWrite is returned when a write carries a version that no
	// longer matches the stored record. The caller recovers by re-reading;
	// the error is never surfaced past the coordinator.
	ErrStaleWrite = errors.New("stale cache write: version conflict")
)

// Backend is the persistent-store capability beneath the TTL cache store.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the record for key, or (nil, nil) when absent.
	Get(ctx context.Context, key string) (*model.CacheRecord, error)

	// Put writes rec. expect is the version the writer read before
	// computing: 0 means "insert, no record may exist", otherwise the
	// stored record's version must still equal expect. Any mismatch
	// returns ErrStaleWrite and leaves the store untouched.
	Put(ctx context.Context, rec model.CacheRecord, expect int64) error

	// Delete removes the record for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all records whose key starts with prefix and
	// returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)

	// DeleteExpired removes records whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
