//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charforge/asset-service/internal/cache"
	"github.com/charforge/asset-service/internal/domain/model"
)

func record(key string, version int64, ttl time.Duration) model.CacheRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return model.CacheRecord{
		Key:       key,
		Value:     model.AssetMetadata{Name: key, Category: "prop"},
		Version:   version,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestCacheRecordsRepository_Integration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDBFromSharedContainer(t)
	defer func() {
		require.NoError(t, db.Close(ctx))
	}()
	repo := NewCacheRecordsRepository(db)

	t.Run("get missing returns nil", func(t *testing.T) {
		rec, err := repo.Get(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("insert and read back", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, record("asset:a", 1, time.Hour), 0))

		rec, err := repo.Get(ctx, "asset:a")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "asset:a", rec.Value.Name)
		assert.Equal(t, int64(1), rec.Version)
	})

	t.Run("duplicate insert is a stale write", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, record("asset:dup", 1, time.Hour), 0))

		err := repo.Put(ctx, record("asset:dup", 1, time.Hour), 0)
		assert.ErrorIs(t, err, cache.ErrStaleWrite)
	})

	t.Run("versioned overwrite", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, record("asset:v", 1, time.Hour), 0))
		require.NoError(t, repo.Put(ctx, record("asset:v", 2, time.Hour), 1))

		// The old version no longer matches.
		err := repo.Put(ctx, record("asset:v", 2, time.Hour), 1)
		assert.ErrorIs(t, err, cache.ErrStaleWrite)

		rec, err := repo.Get(ctx, "asset:v")
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Version)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, record("asset:del", 1, time.Hour), 0))
		require.NoError(t, repo.Delete(ctx, "asset:del"))
		require.NoError(t, repo.Delete(ctx, "asset:del"))

		rec, err := repo.Get(ctx, "asset:del")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("delete prefix spares siblings", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, record("hero-1:portrait", 1, time.Hour), 0))
		require.NoError(t, repo.Put(ctx, record("hero-1:fullbody", 1, time.Hour), 0))
		require.NoError(t, repo.Put(ctx, record("hero-2:portrait", 1, time.Hour), 0))

		n, err := repo.DeletePrefix(ctx, "hero-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		rec, err := repo.Get(ctx, "hero-2:portrait")
		require.NoError(t, err)
		assert.NotNil(t, rec)
	})

	t.Run("delete expired", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, record("asset:old", 1, -time.Minute), 0))
		require.NoError(t, repo.Put(ctx, record("asset:new", 1, time.Hour), 0))

		n, err := repo.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		rec, err := repo.Get(ctx, "asset:new")
		require.NoError(t, err)
		assert.NotNil(t, rec)
	})
}
