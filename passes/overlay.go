package passes

import (
	"fmt"
	"sync"
)

// Box is an axis-aligned world-space box drawn by the debug bounds pass.
type Box struct {
	Min, Max [3]float32
	Color    [4]float32
}

// Overlay collects per-frame debug geometry and text. Producers queue items
// from any goroutine; the debugbounds and ui passes drain them once per
// frame during Setup.
//
// Items are kept only while a pass that drains them is initialized in some
// graph. Queueing a kind of item nobody consumes is a no-op, so producers
// may queue every frame regardless of which passes a graph contains.
//
// Overlay is safe for concurrent use.
type Overlay struct {
	mu     sync.Mutex
	bounds []Box
	lights []Box
	lines  []string

	// Initialized consumers per kind.
	boundsReaders int
	lightReaders  int
	lineReaders   int
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// QueueBounds queues an object bounding box for the next frame.
func (o *Overlay) QueueBounds(b Box) {
	o.mu.Lock()
	if o.boundsReaders > 0 {
		o.bounds = append(o.bounds, b)
	}
	o.mu.Unlock()
}

// QueueLightBounds queues a light volume. Light volumes are drawn only when
// Render.Debug_DrawLightBounds is set.
func (o *Overlay) QueueLightBounds(b Box) {
	o.mu.Lock()
	if o.lightReaders > 0 {
		o.lights = append(o.lights, b)
	}
	o.mu.Unlock()
}

// Printf queues a line of overlay text for the next frame.
func (o *Overlay) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	o.mu.Lock()
	if o.lineReaders > 0 {
		o.lines = append(o.lines, line)
	}
	o.mu.Unlock()
}

// PendingLines returns the number of queued text lines.
func (o *Overlay) PendingLines() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.lines)
}

// PendingBounds returns the number of queued object and light boxes.
func (o *Overlay) PendingBounds() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.bounds) + len(o.lights)
}

// attachBounds registers a consumer of object boxes, light boxes or both.
// The returned function undoes it and drops items nobody reads any more.
func (o *Overlay) attachBounds(objects, lights bool) (detach func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if objects {
		o.boundsReaders++
	}
	if lights {
		o.lightReaders++
	}
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		if objects {
			if o.boundsReaders--; o.boundsReaders == 0 {
				o.bounds = nil
			}
		}
		if lights {
			if o.lightReaders--; o.lightReaders == 0 {
				o.lights = nil
			}
		}
	}
}

// attachLines registers a consumer of text lines.
func (o *Overlay) attachLines() (detach func()) {
	o.mu.Lock()
	o.lineReaders++
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		if o.lineReaders--; o.lineReaders == 0 {
			o.lines = nil
		}
		o.mu.Unlock()
	}
}

// takeBounds drains the queued boxes of the requested kinds.
func (o *Overlay) takeBounds(objects, lights bool) []Box {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []Box
	if objects {
		out = o.bounds
		o.bounds = nil
	}
	if lights {
		out = append(out, o.lights...)
		o.lights = nil
	}
	return out
}

func (o *Overlay) takeLines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.lines
	o.lines = nil
	return out
}
