//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/generation"
)

func newJob(id string, state model.JobState, nextPollAt time.Time) *model.GenerationJob {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.GenerationJob{
		ID:         id,
		TaskID:     "task-" + id,
		AssetID:    "asset-" + id,
		State:      state,
		NextPollAt: nextPollAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestGenerationsRepository_Integration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDBFromSharedContainer(t)
	defer func() {
		require.NoError(t, db.Close(ctx))
	}()
	repo := NewGenerationsRepository(db)

	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("insert and get", func(t *testing.T) {
		job := newJob("j1", model.JobSubmitted, now)
		require.NoError(t, repo.Insert(ctx, job))

		got, err := repo.Get(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, model.JobSubmitted, got.State)
		assert.Equal(t, "task-j1", got.TaskID)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, generation.ErrJobNotFound)
	})

	t.Run("list due excludes terminal and future jobs", func(t *testing.T) {
		require.NoError(t, repo.Insert(ctx, newJob("due-1", model.JobPolling, now.Add(-time.Minute))))
		require.NoError(t, repo.Insert(ctx, newJob("due-2", model.JobSubmitted, now.Add(-2*time.Minute))))
		require.NoError(t, repo.Insert(ctx, newJob("future", model.JobPolling, now.Add(time.Hour))))
		require.NoError(t, repo.Insert(ctx, newJob("done", model.JobSucceeded, now.Add(-time.Minute))))

		due, err := repo.ListDue(ctx, now, 10)
		require.NoError(t, err)

		ids := make([]string, 0, len(due))
		for _, j := range due {
			ids = append(ids, j.ID)
		}
		assert.Contains(t, ids, "due-1")
		assert.Contains(t, ids, "due-2")
		assert.NotContains(t, ids, "future")
		assert.NotContains(t, ids, "done")

		// Oldest next_poll_at first.
		assert.Equal(t, "due-2", ids[0])
	})

	t.Run("guarded update enforces expected state", func(t *testing.T) {
		job := newJob("guard", model.JobPolling, now)
		require.NoError(t, repo.Insert(ctx, job))

		job.State = model.JobSucceeded
		job.ResultRef = "https://assets.meshy.ai/guard.glb"

		err := repo.Update(ctx, job, model.JobSubmitted)
		assert.ErrorIs(t, err, generation.ErrJobConflict)

		require.NoError(t, repo.Update(ctx, job, model.JobPolling))

		got, err := repo.Get(ctx, "guard")
		require.NoError(t, err)
		assert.Equal(t, model.JobSucceeded, got.State)
		assert.Equal(t, "https://assets.meshy.ai/guard.glb", got.ResultRef)

		// A second transition from polling no longer matches.
		err = repo.Update(ctx, job, model.JobPolling)
		assert.ErrorIs(t, err, generation.ErrJobConflict)
	})

	t.Run("update missing job", func(t *testing.T) {
		job := newJob("ghost", model.JobPolling, now)
		err := repo.Update(ctx, job, model.JobPolling)
		assert.ErrorIs(t, err, generation.ErrJobNotFound)
	})
}
