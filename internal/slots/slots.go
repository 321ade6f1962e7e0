// Package slots reserves small integer identifiers backed by a growable
// bitmap. The render graph uses it to hand out stable binding IDs to
// transient buffers.
package slots

import (
	"math/bits"
	"sync"
)

const wordBits = 64

// Set is a set of reserved slot identifiers.
// The zero value is ready to use. Set is safe for concurrent use.
type Set struct {
	mu  sync.Mutex
	m   []uint64
	len int
}

// Reserve returns the lowest free slot and marks it as used.
// The map grows by one word when full.
func (s *Set) Reserve() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.m {
		if w == ^uint64(0) {
			continue
		}
		b := bits.TrailingZeros64(^w)
		s.m[i] |= 1 << b
		s.len++
		return uint32(i*wordBits + b) //nolint:gosec // bounded by map size
	}
	s.m = append(s.m, 1)
	s.len++
	return uint32((len(s.m) - 1) * wordBits) //nolint:gosec // bounded by map size
}

// Release frees slot. Releasing a slot that is not reserved is a no-op.
func (s *Set) Release(slot uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, b := int(slot/wordBits), slot%wordBits
	if i >= len(s.m) || s.m[i]&(1<<b) == 0 {
		return
	}
	s.m[i] &^= 1 << b
	s.len--
}

// IsReserved reports whether slot is in use.
func (s *Set) IsReserved(slot uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, b := int(slot/wordBits), slot%wordBits
	return i < len(s.m) && s.m[i]&(1<<b) != 0
}

// Len returns the number of reserved slots.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

// Cap returns the number of slots the bitmap can hold without growing.
func (s *Set) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m) * wordBits
}
