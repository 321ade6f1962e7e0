package rg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// QueueKind selects the queue a submission goes to.
type QueueKind uint8

const (
	QueueGraphics QueueKind = iota
	QueueCompute
	QueueTransfer

	queueKindCount
)

// String returns the queue kind name.
func (k QueueKind) String() string {
	switch k {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("QueueKind(%d)", k)
	}
}

// Watermark records the last submission index of every queue kind.
type Watermark [queueKindCount]uint64

// Polling bounds for CPU-side semaphore waits.
const (
	minPollInterval = 50 * time.Microsecond
	maxPollInterval = 2 * time.Millisecond
)

// Queues maps queue kinds onto backend queues. Kinds without a dedicated
// queue share the graphics queue, in which case submissions between them
// are already ordered.
//
// Submit must be called from the goroutine that owns the graph.
type Queues struct {
	queues [queueKindCount]hal.Queue

	mu   sync.Mutex
	last Watermark
}

// NewQueues returns queues backed by graphics. compute and transfer may be
// nil to share the graphics queue.
func NewQueues(graphics, compute, transfer hal.Queue) *Queues {
	q := &Queues{}
	q.queues[QueueGraphics] = graphics
	q.queues[QueueCompute] = compute
	q.queues[QueueTransfer] = transfer
	for i := range q.queues {
		if q.queues[i] == nil {
			q.queues[i] = graphics
		}
	}
	return q
}

// Queue returns the backend queue for kind.
func (q *Queues) Queue(kind QueueKind) hal.Queue {
	if kind >= queueKindCount {
		kind = QueueGraphics
	}
	return q.queues[kind]
}

// Shared reports whether a and b submit to the same backend queue.
func (q *Queues) Shared(a, b QueueKind) bool {
	return q.Queue(a) == q.Queue(b)
}

// Submit sends cmds to the queue of kind.
//
// If wait is non-nil and was last signaled on a different backend queue,
// Submit blocks until that queue has completed the signaled submission or
// ctx ends. If signal is non-nil it is advanced to the new submission
// index. The submission index is returned.
func (q *Queues) Submit(ctx context.Context, kind QueueKind, cmds []hal.CommandBuffer, wait, signal *Semaphore) (uint64, error) {
	hq := q.Queue(kind)
	if hq == nil {
		return 0, fmt.Errorf("rg: submit %s: %w", kind, ErrNoDevice)
	}

	if wait != nil {
		if owner, value, ok := wait.Value(); ok && !q.Shared(owner, kind) {
			if err := q.WaitFor(ctx, owner, value); err != nil {
				return 0, fmt.Errorf("rg: submit %s: wait on %s: %w", kind, owner, err)
			}
		}
	}

	idx, err := hq.Submit(cmds)
	if err != nil {
		return 0, fmt.Errorf("rg: submit %s: %w", kind, err)
	}

	q.mu.Lock()
	for k := range q.queues {
		if q.queues[k] == hq && idx > q.last[k] {
			q.last[k] = idx
		}
	}
	q.mu.Unlock()

	if signal != nil {
		signal.signal(kind, idx)
	}
	return idx, nil
}

// WaitFor blocks until the queue of kind has completed submission value.
func (q *Queues) WaitFor(ctx context.Context, kind QueueKind, value uint64) error {
	hq := q.Queue(kind)
	if hq == nil {
		return ErrNoDevice
	}
	if hq.PollCompleted() >= value {
		return nil
	}

	interval := minPollInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for hq.PollCompleted() < value {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxPollInterval)
		timer.Reset(interval)
	}
	return nil
}

// Watermark returns the last submission index of every queue kind.
func (q *Queues) Watermark() Watermark {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

// Completed reports whether every queue has completed the submissions in w.
func (q *Queues) Completed(w Watermark) bool {
	for k, v := range w {
		if v == 0 {
			continue
		}
		if hq := q.queues[k]; hq != nil && hq.PollCompleted() < v {
			return false
		}
	}
	return true
}

// WaitWatermark blocks until every queue has completed the submissions in w.
func (q *Queues) WaitWatermark(ctx context.Context, w Watermark) error {
	for k, v := range w {
		if v == 0 {
			continue
		}
		if err := q.WaitFor(ctx, QueueKind(k), v); err != nil {
			return err
		}
	}
	return nil
}

// Semaphore is a timeline over backend submission indices: it records the
// queue and submission index of the last signal.
//
// Semaphore is safe for concurrent use.
type Semaphore struct {
	mu     sync.Mutex
	queue  QueueKind
	value  uint64
	signed bool
}

// NewSemaphore returns an unsignaled semaphore.
func NewSemaphore() *Semaphore {
	return &Semaphore{}
}

// Value returns the queue and submission index of the last signal.
// ok is false if the semaphore was never signaled.
func (s *Semaphore) Value() (queue QueueKind, value uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue, s.value, s.signed
}

func (s *Semaphore) signal(queue QueueKind, value uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue, s.value, s.signed = queue, value, true
}

// Wait blocks until the last signaled submission has completed on the GPU.
// An unsignaled semaphore returns immediately.
func (s *Semaphore) Wait(ctx context.Context, q *Queues) error {
	queue, value, ok := s.Value()
	if !ok {
		return nil
	}
	return q.WaitFor(ctx, queue, value)
}

// Reset returns the semaphore to the unsignaled state.
func (s *Semaphore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue, s.value, s.signed = 0, 0, false
}
