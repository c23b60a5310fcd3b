package model

import "time"

// CacheRecord is one entry of the TTL cache store, keyed by asset identifier
// or content fingerprint. Records are persisted one per key.
type CacheRecord struct {
	Key   string        `bson:"_id" json:"key"`
	Value AssetMetadata `bson:"value" json:"value"`
	// Negative marks a cached upstream failure. Negative records carry a
	// FailReason instead of a Value and live under the shorter negative TTL.
	Negative   bool   `bson:"negative,omitempty" json:"negative,omitempty"`
	FailReason string `bson:"fail_reason,omitempty" json:"fail_reason,omitempty"`
	// Version increases by one on every overwrite. Writers carry the version
	// they read; a write against a newer record is rejected as stale.
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// Fresh reports whether the record is still live at the given instant.
func (r CacheRecord) Fresh(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}
