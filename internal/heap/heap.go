// Package heap implements the transient memory bookkeeping used by the
// render graph: a linear bump heap that hands out aligned byte ranges for one
// frame, and a frame-indexed arena that defers destruction of transient
// objects until the GPU work that references them has retired.
package heap

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

// Heap errors.
var (
	// ErrHeapExhausted is returned when a placement would exceed the heap capacity.
	ErrHeapExhausted = errors.New("heap: transient heap exhausted")

	// ErrInvalidAlignment is returned when an alignment is not a power of two.
	ErrInvalidAlignment = errors.New("heap: alignment must be a power of two")
)

// Default heap limits.
const (
	// DefaultCapacity is the default per-frame heap size (64 MiB).
	DefaultCapacity = 64 << 20

	// DefaultAlignment is used when a placement requests alignment 0.
	DefaultAlignment = 256
)

// Stats contains heap usage statistics.
type Stats struct {
	// Capacity is the heap size in bytes.
	Capacity uint64

	// Used is the end of the highest range placed since the last Reset.
	Used uint64

	// Peak is the highest Used value observed over the heap's lifetime.
	Peak uint64

	// Placements is the number of ranges placed since the last Reset.
	Placements int

	// Resets counts how many times the heap was reset.
	Resets uint64
}

// String returns a human-readable summary of the stats.
func (s Stats) String() string {
	var util float64
	if s.Capacity > 0 {
		util = float64(s.Used) / float64(s.Capacity) * 100
	}
	return fmt.Sprintf("Heap[%.1f%% used, %d/%d KiB, peak %d KiB, %d placements]",
		util, s.Used/1024, s.Capacity/1024, s.Peak/1024, s.Placements)
}

// Heap is a linear bump heap over a fixed byte range.
//
// The heap does not own the running offset: callers pass the offset where
// the previous placement ended and receive the aligned start and the new end.
// Ranges are never freed individually; Reset starts a new frame. Two
// placements never overlap within one frame, so any aliasing between
// resources comes from Reset reusing ranges across frames.
//
// Heap is safe for concurrent use.
type Heap struct {
	mu sync.Mutex

	capacity uint64
	used     uint64
	peak     uint64
	count    int
	resets   uint64
}

// New creates a heap of the given capacity. A zero capacity selects
// DefaultCapacity.
func New(capacity uint64) *Heap {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &Heap{capacity: capacity}
}

// Capacity returns the heap size in bytes.
func (h *Heap) Capacity() uint64 {
	return h.capacity
}

// Place reserves size bytes at or after offset, rounded up to align.
// It returns the aligned start of the range and the offset where the next
// placement should begin.
func (h *Heap) Place(offset, size, align uint64) (start, end uint64, err error) {
	if align == 0 {
		align = DefaultAlignment
	}
	if bits.OnesCount64(align) != 1 {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidAlignment, align)
	}

	start = AlignUp(offset, align)
	end = start + size
	if end < start || end > h.capacity {
		return 0, 0, fmt.Errorf("%w: need %d bytes at offset %d, capacity %d",
			ErrHeapExhausted, size, start, h.capacity)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	if end > h.used {
		h.used = end
	}
	if h.used > h.peak {
		h.peak = h.used
	}
	return start, end, nil
}

// Reset forgets every placement. The peak watermark is kept.
func (h *Heap) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.used = 0
	h.count = 0
	h.resets++
}

// Stats returns current heap statistics.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		Capacity:   h.capacity,
		Used:       h.used,
		Peak:       h.peak,
		Placements: h.count,
		Resets:     h.resets,
	}
}

// AlignUp rounds v up to the next multiple of align, which must be a power
// of two.
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
