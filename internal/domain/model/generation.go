// Package model defines generation job entities and their state machine.
package model

import (
	"fmt"
	"time"
)

// JobState is the lifecycle state of a 3D generation job.
type JobState string

const (
	// JobSubmitted means the external service accepted the job but the
	// tracker has not started polling it yet.
	JobSubmitted JobState = "submitted"
	// JobPolling means the tracker is actively polling the external status.
	JobPolling JobState = "polling"
	// JobSucceeded is terminal; ResultRef is set.
	JobSucceeded JobState = "succeeded"
	// JobFailed is terminal; FailReason is set.
	JobFailed JobState = "failed"
	// JobCancelled is terminal; reached only by explicit cancel.
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions can occur from s.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. Backward moves (e.g. succeeded -> polling) are never legal.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobSubmitted:
		return next == JobPolling || next == JobCancelled || next == JobFailed
	case JobPolling:
		return next == JobSucceeded || next == JobFailed || next == JobCancelled
	default:
		return false
	}
}

// FailReasonExhausted marks jobs failed because the poll attempt budget ran out.
const FailReasonExhausted = "max polling attempts exceeded"

// GenerationJob tracks one externally-executing 3D generation job from
// submission to a terminal state.
type GenerationJob struct {
	ID string `bson:"_id" json:"id"`
	// TaskID is the identifier assigned by the external generation service.
	TaskID  string `bson:"task_id" json:"task_id"`
	AssetID string `bson:"asset_id" json:"asset_id"`
	// ImageURL is the source image the mesh is generated from.
	ImageURL string   `bson:"image_url,omitempty" json:"image_url,omitempty"`
	State    JobState `bson:"state" json:"state"`
	Attempts int      `bson:"attempts" json:"attempts"`
	Progress int      `bson:"progress" json:"progress"`
	// ResultRef points at the produced mesh. Set if and only if the job
	// succeeded.
	ResultRef    string    `bson:"result_ref,omitempty" json:"result_ref,omitempty"`
	FailReason   string    `bson:"fail_reason,omitempty" json:"fail_reason,omitempty"`
	LastPolledAt time.Time `bson:"last_polled_at,omitempty" json:"last_polled_at,omitempty"`
	NextPollAt   time.Time `bson:"next_poll_at,omitempty" json:"next_poll_at,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Transition validates and applies a state change, keeping the
// ResultRef/state invariant intact.
func (j *GenerationJob) Transition(next JobState, now time.Time) error {
	if j.State == next {
		return nil
	}
	if !j.State.CanTransition(next) {
		return fmt.Errorf("illegal job transition %s -> %s", j.State, next)
	}
	j.State = next
	j.UpdatedAt = now
	if next != JobSucceeded {
		j.ResultRef = ""
	}
	return nil
}
