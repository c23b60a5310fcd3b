// Package executor provides a bounded worker pool for per-asset fetch and
// compute calls.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/metrics"
)

var (
	// ErrCapacityExceeded is returned by Submit when the task queue is full.
	// Submit fails fast instead of queuing unboundedly.
	ErrCapacityExceeded = errors.New("fetch executor at capacity")
	// ErrTaskTimeout is returned through a task whose compute exceeded the
	// per-task timeout. The underlying call is cancelled best-effort and
	// not retried by this layer.
	ErrTaskTimeout = errors.New("fetch task timed out")
	// ErrPoolClosed is returned for submissions to, or tasks stranded in,
	// a stopped pool.
	ErrPoolClosed = errors.New("fetch executor is stopped")
)

// ComputeFunc performs the actual per-asset analysis. It must respect ctx
// cancellation.
type ComputeFunc func(ctx context.Context) (model.AssetMetadata, error)

// Task is the future handle for one submitted compute.
type Task struct {
	key   string
	fn    ComputeFunc
	done  chan struct{}
	once  sync.Once
	value model.AssetMetadata
	err   error
}

// Key returns the cache key the task was submitted for.
func (t *Task) Key() string { return t.key }

// Done is closed when the task has completed, successfully or not.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task completes or ctx is done. A ctx error cancels
// only this wait, not the task itself.
func (t *Task) Wait(ctx context.Context) (model.AssetMetadata, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return model.AssetMetadata{}, ctx.Err()
	}
}

// Result returns the task outcome. Only valid after Done is closed.
func (t *Task) Result() (model.AssetMetadata, error) {
	return t.value, t.err
}

// complete records the outcome exactly once; a task can be finished by a
// worker, by the shutdown drain, or by a Submit that lost the race with
// Stop.
func (t *Task) complete(value model.AssetMetadata, err error) {
	t.once.Do(func() {
		t.value = value
		t.err = err
		close(t.done)
	})
}

// Pool is a fixed-size worker pool with a bounded queue. Each task runs
// under its own timeout; retry policy belongs to the caller.
type Pool struct {
	tasks       chan *Task
	workers     int
	taskTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// NewPool creates and starts a pool with the given concurrency ceiling and
// queue depth.
func NewPool(workers, queueDepth int, taskTimeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}

	p := &Pool{
		tasks:       make(chan *Task, queueDepth),
		workers:     workers,
		taskTimeout: taskTimeout,
		stopCh:      make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a compute for key. It never blocks: a full queue returns
// ErrCapacityExceeded immediately.
func (p *Pool) Submit(key string, fn ComputeFunc) (*Task, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	t := &Task{
		key:  key,
		fn:   fn,
		done: make(chan struct{}),
	}

	select {
	case p.tasks <- t:
		// Stop may have finished draining the queue between the closed
		// check and the enqueue; fail the task here so its waiter never
		// hangs on a stopped pool.
		if p.closed.Load() {
			t.complete(model.AssetMetadata{}, ErrPoolClosed)
			return nil, ErrPoolClosed
		}
		metrics.FetchQueueDepth.Set(float64(len(p.tasks)))
		return t, nil
	default:
		metrics.RecordFetchTask("rejected")
		return nil, ErrCapacityExceeded
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			metrics.FetchQueueDepth.Set(float64(len(p.tasks)))
			p.run(t)
		case <-p.stopCh:
			return
		}
	}
}

// run executes one task under the per-task timeout. The compute runs in its
// own goroutine so a call that ignores cancellation cannot pin a worker past
// the deadline; its late result is discarded.
func (p *Pool) run(t *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), p.taskTimeout)
	defer cancel()

	type outcome struct {
		value model.AssetMetadata
		err   error
	}
	resCh := make(chan outcome, 1)

	go func() {
		value, err := t.fn(ctx)
		resCh <- outcome{value: value, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			res.err = fmt.Errorf("%w: %s", ErrTaskTimeout, t.key)
		}
		if res.err != nil {
			metrics.RecordFetchTask("error")
		} else {
			metrics.RecordFetchTask("success")
		}
		t.complete(res.value, res.err)
	case <-ctx.Done():
		log.Warn().Str("key", t.key).Dur("timeout", p.taskTimeout).Msg("Fetch task abandoned after timeout")
		metrics.RecordFetchTask("timeout")
		t.complete(model.AssetMetadata{}, fmt.Errorf("%w: %s", ErrTaskTimeout, t.key))
	}
}

// Stop shuts the pool down. Queued tasks that never ran are completed with
// ErrPoolClosed so waiters do not hang. Safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.closed.Store(true)
		close(p.stopCh)
		p.wg.Wait()

		for {
			select {
			case t := <-p.tasks:
				t.complete(model.AssetMetadata{}, ErrPoolClosed)
			default:
				return
			}
		}
	})
}
