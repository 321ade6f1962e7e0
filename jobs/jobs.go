// Package jobs runs CPU work off the render thread.
//
// A pass submits work during Setup and keeps the returned Future; Execute
// blocks on Future.Wait. Completion is published by closing a channel, so
// everything the job wrote is visible to the waiter once Wait returns.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

var (
	// ErrPoolClosed is reported by futures submitted after Close.
	ErrPoolClosed = errors.New("jobs: pool closed")

	// ErrJobPanic wraps a panic recovered inside a job.
	ErrJobPanic = errors.New("jobs: job panicked")
)

// Pool defaults.
const (
	// DefaultQueueSize bounds the number of queued jobs before Submit blocks.
	DefaultQueueSize = 256

	// DefaultIdleTimeout is passed to the underlying worker pool.
	DefaultIdleTimeout = time.Second
)

// Future is the one-shot result of a submitted job.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Done returns a channel closed when the job has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the job has finished without blocking.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job finishes or ctx is done.
// It returns the job's error, or the context error if ctx ended first.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the job's error. It is only meaningful once Ready is true.
func (f *Future) Err() error {
	if !f.Ready() {
		return nil
	}
	return f.err
}

// Completed returns a future that is already finished with err.
func Completed(err error) *Future {
	f := newFuture()
	f.complete(err)
	return f
}

// Pool is a fixed-size worker pool.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers worker.DynamicWorkerPool
	size    int

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	nextID  atomic.Int64
}

// NewPool creates a pool with the given number of workers.
// A non-positive count selects runtime.NumCPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		workers: worker.NewDynamicWorkerPool(workers, DefaultQueueSize, DefaultIdleTimeout),
		size:    workers,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Submit queues fn and returns its future. A panic inside fn is recovered
// and reported as an error wrapping ErrJobPanic.
func (p *Pool) Submit(fn func() error) *Future {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return Completed(ErrPoolClosed)
	}

	f := newFuture()
	p.pending.Add(1)
	p.workers.SubmitTask(worker.Task{
		ID: int(p.nextID.Add(1)),
		Do: func() (any, error) {
			defer p.pending.Done()
			err := run(fn)
			f.complete(err)
			return nil, err
		},
	})
	return f
}

// Close waits for every submitted job to finish and asks the workers to
// stop. Further submissions complete immediately with ErrPoolClosed and
// never run.
//
// Stopping is best effort: the underlying worker pool delivers stop
// requests on a channel shared by all workers, so some idle worker
// goroutines may stay parked until the process exits. They hold no jobs
// and receive no new ones.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	p.workers.Stop()
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanic, r)
		}
	}()
	return fn()
}
