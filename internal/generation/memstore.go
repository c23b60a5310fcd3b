package generation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charforge/asset-service/internal/domain/model"
)

// MemoryJobStore is an in-memory JobStore. Used when MongoDB is disabled and
// as the store under test.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]model.GenerationJob
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]model.GenerationJob),
	}
}

// Insert implements JobStore.
func (s *MemoryJobStore) Insert(_ context.Context, job *model.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("generation job %s already exists", job.ID)
	}
	s.jobs[job.ID] = *job
	return nil
}

// Get implements JobStore.
func (s *MemoryJobStore) Get(_ context.Context, id string) (*model.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

// ListDue implements JobStore.
func (s *MemoryJobStore) ListDue(_ context.Context, now time.Time, limit int) ([]*model.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]*model.GenerationJob, 0)
	for _, job := range s.jobs {
		if job.State.Terminal() || job.NextPollAt.After(now) {
			continue
		}
		j := job
		due = append(due, &j)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextPollAt.Before(due[j].NextPollAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Update implements JobStore. The state check and the write happen under one
// lock, giving the compare-and-set the guarded-transition semantics the
// tracker relies on.
func (s *MemoryJobStore) Update(_ context.Context, job *model.GenerationJob, fromStates ...model.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	for _, from := range fromStates {
		if current.State == from {
			s.jobs[job.ID] = *job
			return nil
		}
	}
	return ErrJobConflict
}

// Len returns the number of stored jobs. Test helper.
func (s *MemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
