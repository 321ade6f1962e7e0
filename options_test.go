package rg

import (
	"testing"

	"github.com/gogpu/rg/cvar"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions(nil)
	if o.framesInFlight != DefaultFramesInFlight {
		t.Errorf("framesInFlight = %d, want %d", o.framesInFlight, DefaultFramesInFlight)
	}
	if o.heapSize != DefaultHeapSize {
		t.Errorf("heapSize = %d, want %d", o.heapSize, DefaultHeapSize)
	}
	if len(o.injectors) != 4 {
		t.Errorf("len(injectors) = %d, want 4", len(o.injectors))
	}
	if o.alloc != nil {
		t.Error("alloc should default to nil")
	}
}

func TestDefaultOptionsFromVars(t *testing.T) {
	vars := cvar.New()
	vars.SetUint64(cvar.RenderFramesInFlight, 3)
	vars.SetUint64(cvar.RenderTransientHeapSize, 1<<20)

	o := defaultOptions(vars)
	if o.framesInFlight != 3 {
		t.Errorf("framesInFlight = %d, want 3", o.framesInFlight)
	}
	if o.heapSize != 1<<20 {
		t.Errorf("heapSize = %d, want %d", o.heapSize, 1<<20)
	}

	// Out-of-range values fall back to the defaults.
	vars.SetUint64(cvar.RenderFramesInFlight, 0)
	vars.SetUint64(cvar.RenderTransientHeapSize, 0)
	o = defaultOptions(vars)
	if o.framesInFlight != DefaultFramesInFlight {
		t.Errorf("framesInFlight = %d, want %d", o.framesInFlight, DefaultFramesInFlight)
	}
	if o.heapSize != DefaultHeapSize {
		t.Errorf("heapSize = %d, want %d", o.heapSize, DefaultHeapSize)
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		check func(graphOptions) bool
	}{
		{"frames in flight", WithFramesInFlight(4), func(o graphOptions) bool { return o.framesInFlight == 4 }},
		{"frames in flight ignored", WithFramesInFlight(0), func(o graphOptions) bool { return o.framesInFlight == DefaultFramesInFlight }},
		{"heap size", WithHeapSize(4096), func(o graphOptions) bool { return o.heapSize == 4096 }},
		{"heap size ignored", WithHeapSize(0), func(o graphOptions) bool { return o.heapSize == DefaultHeapSize }},
		{"append injector", WithInjector(InjectOutput), func(o graphOptions) bool { return len(o.injectors) == 5 }},
		{"nil injector", WithInjector(nil), func(o graphOptions) bool { return len(o.injectors) == 4 }},
		{"replace injectors", WithInjectors(InjectOutput), func(o graphOptions) bool { return len(o.injectors) == 1 }},
		{"no injectors", WithInjectors(), func(o graphOptions) bool { return len(o.injectors) == 0 }},
		{"allocator", WithAllocator(&HeapAllocator{}), func(o graphOptions) bool { return o.alloc != nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions(nil)
			tt.opt(&o)
			if !tt.check(o) {
				t.Errorf("option %s not applied: %+v", tt.name, o)
			}
		})
	}
}
