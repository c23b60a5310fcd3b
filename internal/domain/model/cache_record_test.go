package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheRecord_Fresh(t *testing.T) {
	now := time.Now()
	rec := CacheRecord{
		Key:       "asset:1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}

	assert.True(t, rec.Fresh(now))
	assert.True(t, rec.Fresh(now.Add(59*time.Second)))
	assert.False(t, rec.Fresh(now.Add(time.Minute)))
	assert.False(t, rec.Fresh(now.Add(2*time.Minute)))
}

func TestAssetMetadata_Empty(t *testing.T) {
	assert.True(t, AssetMetadata{}.Empty())
	assert.False(t, AssetMetadata{Name: "Iron Golem"}.Empty())
	assert.False(t, AssetMetadata{Tags: []string{"armor"}}.Empty())
}
