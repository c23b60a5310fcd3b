// Package generation tracks externally-executing 3D generation jobs from
// submission through polling to a terminal state.
package generation

import (
	"context"
	"errors"
	"time"

	"github.com/charforge/asset-service/internal/domain/model"
)

var (
	// ErrJobNotFound is returned when no job exists for the given ID.
	ErrJobNotFound = errors.New("generation job not found")
	// ErrJobConflict is returned by guarded updates when the stored job is no
	// longer in any of the expected states. Poll results for a concurrently
	// cancelled job are discarded through this error.
	ErrJobConflict = errors.New("generation job state conflict")
)

// JobStore persists generation jobs. Implementations must make Update a
// single atomic compare-and-set on the job's state.
type JobStore interface {
	// Insert stores a new job. The job ID must be unique.
	Insert(ctx context.Context, job *model.GenerationJob) error

	// Get returns the job with the given ID, or ErrJobNotFound.
	Get(ctx context.Context, id string) (*model.GenerationJob, error)

	// ListDue returns up to limit non-terminal jobs whose NextPollAt is at
	// or before now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.GenerationJob, error)

	// Update overwrites the stored job only if its current state is one of
	// fromStates; otherwise it returns ErrJobConflict and stores nothing.
	Update(ctx context.Context, job *model.GenerationJob, fromStates ...model.JobState) error
}
