package rg

import (
	"github.com/gogpu/rg/cvar"
	"github.com/gogpu/rg/internal/heap"
)

// Graph defaults, overridden by the Render.FramesInFlight and
// Render.TransientHeapSize console variables.
const (
	// DefaultFramesInFlight is the number of frames the CPU may run ahead.
	DefaultFramesInFlight = 2

	// DefaultHeapSize is the size of each transient heap (64 MiB).
	DefaultHeapSize = heap.DefaultCapacity
)

// Option configures a Graph during creation.
//
// Example:
//
//	g, err := rg.New(reg, env,
//	    rg.WithFramesInFlight(3),
//	    rg.WithInjector(injectLights),
//	)
type Option func(*graphOptions)

type graphOptions struct {
	alloc          TransientAllocator
	injectors      []Injector
	framesInFlight int
	heapSize       uint64
}

// defaultOptions reads the console variables of vars. A nil set yields
// the package defaults.
func defaultOptions(vars *cvar.Set) graphOptions {
	o := graphOptions{
		injectors:      DefaultInjectors(),
		framesInFlight: DefaultFramesInFlight,
		heapSize:       DefaultHeapSize,
	}
	if vars != nil {
		if n := vars.Uint64(cvar.RenderFramesInFlight, DefaultFramesInFlight); n > 0 && n <= 16 {
			o.framesInFlight = int(n)
		}
		if n := vars.Uint64(cvar.RenderTransientHeapSize, DefaultHeapSize); n > 0 {
			o.heapSize = n
		}
	}
	return o
}

// WithAllocator replaces the default HeapAllocator. The graph destroys
// the allocator with itself.
func WithAllocator(a TransientAllocator) Option {
	return func(o *graphOptions) {
		o.alloc = a
	}
}

// WithInjector appends an injector that runs after the builtin ones.
func WithInjector(inj Injector) Option {
	return func(o *graphOptions) {
		if inj != nil {
			o.injectors = append(o.injectors, inj)
		}
	}
}

// WithInjectors replaces the injector list, builtin ones included.
func WithInjectors(injs ...Injector) Option {
	return func(o *graphOptions) {
		o.injectors = append([]Injector(nil), injs...)
	}
}

// WithFramesInFlight sets how many frames may be in flight. Values below 1
// are ignored.
func WithFramesInFlight(n int) Option {
	return func(o *graphOptions) {
		if n >= 1 {
			o.framesInFlight = n
		}
	}
}

// WithHeapSize sets the capacity of each transient heap. Zero is ignored.
func WithHeapSize(bytes uint64) Option {
	return func(o *graphOptions) {
		if bytes > 0 {
			o.heapSize = bytes
		}
	}
}
