package heap

import "sync"

// frameEntry holds the releases deferred by one frame.
type frameEntry struct {
	frame   uint64
	release []func()
	retired func() bool // nil until sealed
}

// Arena defers the destruction of per-frame objects until the frame that
// created them has retired on the GPU.
//
// A frame's objects are registered with Defer while the frame is being built.
// Seal attaches a retirement check once the frame's submissions are known.
// Collect releases frames in order, stopping at the first frame that has
// not retired, so frames are always reclaimed oldest first.
//
// Arena is safe for concurrent use.
type Arena struct {
	mu     sync.Mutex
	frames []*frameEntry
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Defer registers release to run once frame retires.
func (a *Arena) Defer(frame uint64, release func()) {
	if release == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	e := a.entryLocked(frame)
	e.release = append(e.release, release)
}

// Seal marks frame as fully submitted. retired reports whether the GPU work
// of the frame has completed; it is polled by Collect.
func (a *Arena) Seal(frame uint64, retired func() bool) {
	if retired == nil {
		retired = func() bool { return true }
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entryLocked(frame).retired = retired
}

// Collect releases every leading sealed frame whose retirement check passes.
// It returns the number of objects released.
func (a *Arena) Collect() int {
	a.mu.Lock()
	var done []*frameEntry
	for len(a.frames) > 0 {
		e := a.frames[0]
		if e.retired == nil || !e.retired() {
			break
		}
		done = append(done, e)
		a.frames = a.frames[1:]
	}
	a.mu.Unlock()

	return releaseAll(done)
}

// Flush releases everything regardless of retirement. Callers must have
// waited for the device to go idle.
func (a *Arena) Flush() int {
	a.mu.Lock()
	done := a.frames
	a.frames = nil
	a.mu.Unlock()

	return releaseAll(done)
}

// Pending returns the number of frames still holding objects.
func (a *Arena) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.frames)
}

// entryLocked returns the entry for frame, creating it in order.
// Caller must hold mu.
func (a *Arena) entryLocked(frame uint64) *frameEntry {
	for _, e := range a.frames {
		if e.frame == frame {
			return e
		}
	}
	e := &frameEntry{frame: frame}
	i := len(a.frames)
	for i > 0 && a.frames[i-1].frame > frame {
		i--
	}
	a.frames = append(a.frames, nil)
	copy(a.frames[i+1:], a.frames[i:])
	a.frames[i] = e
	return e
}

// releaseAll runs releases frame by frame, newest object first.
func releaseAll(frames []*frameEntry) int {
	n := 0
	for _, e := range frames {
		for i := len(e.release) - 1; i >= 0; i-- {
			e.release[i]()
			n++
		}
	}
	return n
}
