package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/charforge/asset-service/config"
	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/meshy"
	"github.com/charforge/asset-service/internal/metrics"
)

// Generator is the external 3D generation capability the tracker polls.
// *meshy.Client satisfies it.
type Generator interface {
	SubmitImageTo3D(ctx context.Context, imageURL string) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (*meshy.TaskStatus, error)
}

// Invalidator removes cached asset metadata made stale by a completed
// generation. *cache.Store satisfies it.
type Invalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string) (int64, error)
}

// Tracker owns the generation job lifecycle: submission, status polling with
// backoff, terminal transitions and the cache invalidation they trigger.
type Tracker struct {
	jobs      JobStore
	generator Generator
	cache     Invalidator

	pollInterval time.Duration
	pollTimeout  time.Duration
	maxAttempts  int
	backoffMax   time.Duration

	now func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the tracker's time source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a generation tracker.
func NewTracker(jobs JobStore, generator Generator, cache Invalidator, cfg config.GeneratorConfig, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		jobs:         jobs,
		generator:    generator,
		cache:        cache,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		maxAttempts:  cfg.PollMaxAttempts,
		backoffMax:   cfg.PollBackoffMax,
		now:          time.Now,
	}
	if t.pollInterval <= 0 {
		t.pollInterval = 10 * time.Second
	}
	if t.pollTimeout <= 0 {
		t.pollTimeout = 15 * time.Second
	}
	if t.maxAttempts <= 0 {
		t.maxAttempts = 120
	}
	if t.backoffMax < t.pollInterval {
		t.backoffMax = t.pollInterval
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit starts a new generation job for the asset's source image. The job
// is persisted in the submitted state and picked up by the poller on its
// first due tick.
func (t *Tracker) Submit(ctx context.Context, assetID, imageURL string) (*model.GenerationJob, error) {
	taskID, err := t.generator.SubmitImageTo3D(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to submit generation: %w", err)
	}

	now := t.now()
	job := &model.GenerationJob{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		AssetID:    assetID,
		ImageURL:   imageURL,
		State:      model.JobSubmitted,
		NextPollAt: now.Add(t.pollInterval),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist generation job: %w", err)
	}

	metrics.RecordGenerationTransition(string(model.JobSubmitted))
	log.Info().
		Str("job_id", job.ID).
		Str("task_id", taskID).
		Str("asset_id", assetID).
		Msg("Generation job submitted")
	return job, nil
}

// Get returns the job with the given ID.
func (t *Tracker) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	return t.jobs.Get(ctx, id)
}

// Cancel moves a live job to the cancelled state. Cancelling a job that is
// already terminal, whatever the terminal state, is a no-op that returns the
// job unchanged. An in-flight poll racing the cancel loses: its guarded
// update is rejected and its result discarded.
func (t *Tracker) Cancel(ctx context.Context, id string) (*model.GenerationJob, error) {
	for {
		job, err := t.jobs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.State.Terminal() {
			return job, nil
		}

		from := job.State
		if err := job.Transition(model.JobCancelled, t.now()); err != nil {
			return nil, err
		}
		err = t.jobs.Update(ctx, job, from)
		if errors.Is(err, ErrJobConflict) {
			// A poll moved the job first; re-read and decide again.
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.RecordGenerationTransition(string(model.JobCancelled))
		log.Info().Str("job_id", id).Str("from", string(from)).Msg("Generation job cancelled")
		return job, nil
	}
}

// PollDue polls every job whose next poll time has arrived, fanning out with
// bounded concurrency. Returns the number of jobs polled.
func (t *Tracker) PollDue(ctx context.Context, concurrency, limit int) (int, error) {
	due, err := t.jobs.ListDue(ctx, t.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due jobs: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, job := range due {
		job := job
		g.Go(func() error {
			t.pollOne(gctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return len(due), nil
}

// pollOne advances one job: first-touch transition to polling, one upstream
// status fetch, and the resulting state change or reschedule.
func (t *Tracker) pollOne(ctx context.Context, job *model.GenerationJob) {
	now := t.now()

	if job.Attempts >= t.maxAttempts {
		t.fail(ctx, job, model.FailReasonExhausted)
		return
	}

	if job.State == model.JobSubmitted {
		if err := job.Transition(model.JobPolling, now); err != nil {
			return
		}
		if err := t.jobs.Update(ctx, job, model.JobSubmitted); err != nil {
			// Cancelled between listing and polling.
			log.Debug().Err(err).Str("job_id", job.ID).Msg("Skipping poll for job no longer submitted")
			return
		}
		metrics.RecordGenerationTransition(string(model.JobPolling))
	}

	pollCtx, cancel := context.WithTimeout(ctx, t.pollTimeout)
	status, err := t.generator.GetTaskStatus(pollCtx, job.TaskID)
	cancel()
	if err != nil {
		t.reschedule(ctx, job, err)
		return
	}

	job.LastPolledAt = now
	job.Attempts++
	job.Progress = status.Progress

	switch status.Status {
	case meshy.StatusSucceeded:
		metrics.RecordGenerationPoll("succeeded")
		t.succeed(ctx, job, status)
	case meshy.StatusFailed:
		metrics.RecordGenerationPoll("failed")
		reason := status.TaskError.Message
		if reason == "" {
			reason = "generation failed upstream"
		}
		t.fail(ctx, job, reason)
	default:
		metrics.RecordGenerationPoll("pending")
		job.NextPollAt = now.Add(t.backoff(job.Attempts))
		if err := t.jobs.Update(ctx, job, model.JobPolling); err != nil {
			log.Debug().Err(err).Str("job_id", job.ID).Msg("Discarding poll result for job no longer polling")
		}
	}
}

// succeed finalizes a completed job and invalidates the asset's cached
// metadata, which now describes a pre-generation asset.
func (t *Tracker) succeed(ctx context.Context, job *model.GenerationJob, status *meshy.TaskStatus) {
	if err := job.Transition(model.JobSucceeded, t.now()); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Cannot finalize job")
		return
	}
	job.ResultRef = status.ModelURLs.GLB
	job.Progress = 100

	if err := t.jobs.Update(ctx, job, model.JobPolling); err != nil {
		log.Debug().Err(err).Str("job_id", job.ID).Msg("Discarding completion for job no longer polling")
		return
	}
	metrics.RecordGenerationTransition(string(model.JobSucceeded))

	if n, err := t.cache.InvalidatePrefix(ctx, job.AssetID); err != nil {
		log.Warn().Err(err).Str("asset_id", job.AssetID).Msg("Cache invalidation after generation failed")
	} else {
		log.Info().
			Str("job_id", job.ID).
			Str("asset_id", job.AssetID).
			Str("result_ref", job.ResultRef).
			Int64("invalidated", n).
			Msg("Generation job succeeded")
	}
}

func (t *Tracker) fail(ctx context.Context, job *model.GenerationJob, reason string) {
	from := job.State
	if err := job.Transition(model.JobFailed, t.now()); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Cannot fail job")
		return
	}
	job.FailReason = reason

	if err := t.jobs.Update(ctx, job, from); err != nil {
		log.Debug().Err(err).Str("job_id", job.ID).Msg("Discarding failure for job in another state")
		return
	}
	metrics.RecordGenerationTransition(string(model.JobFailed))
	log.Warn().Str("job_id", job.ID).Str("reason", reason).Msg("Generation job failed")
}

// reschedule counts a failed poll attempt and pushes the next poll out with
// backoff. Transient upstream errors do not fail the job; the attempt budget
// does.
func (t *Tracker) reschedule(ctx context.Context, job *model.GenerationJob, pollErr error) {
	metrics.RecordGenerationPoll("error")

	now := t.now()
	job.LastPolledAt = now
	job.Attempts++
	job.NextPollAt = now.Add(t.backoff(job.Attempts))
	log.Warn().
		Err(pollErr).
		Str("job_id", job.ID).
		Int("attempts", job.Attempts).
		Time("next_poll_at", job.NextPollAt).
		Msg("Generation status poll failed")

	if err := t.jobs.Update(ctx, job, model.JobPolling, model.JobSubmitted); err != nil {
		log.Debug().Err(err).Str("job_id", job.ID).Msg("Discarding reschedule for job in another state")
	}
}

// backoff returns the delay before the next poll: exponential in the number
// of attempts, capped.
func (t *Tracker) backoff(attempts int) time.Duration {
	delay := t.pollInterval
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= t.backoffMax {
			return t.backoffMax
		}
	}
	if delay > t.backoffMax {
		return t.backoffMax
	}
	return delay
}
