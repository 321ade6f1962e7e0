package rg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/rg/internal/heap"
)

type passSlot struct {
	name string
	pass Pass
}

// Graph is a render graph instance.
//
// Passes join with AddPass and run in that order. Every frame Build resets
// the resource table, publishes the builtin resources, runs Setup on every
// pass and materializes the transient resources; Execute then runs the
// accepted passes.
//
// A Graph is used from a single goroutine.
type Graph struct {
	reg *Registry
	env *Env
	log *slog.Logger

	alloc     TransientAllocator
	injectors []Injector
	arena     *heap.Arena

	passes []*passSlot
	active []*passSlot
	table  *Table
	sem    *Semaphore

	frame     uint64
	built     bool
	sealed    bool
	inflight  []Watermark
	destroyed bool
}

// New creates an empty graph. The registry is sealed.
func New(reg *Registry, env *Env, opts ...Option) (*Graph, error) {
	if reg == nil {
		return nil, errors.New("rg: new graph: nil registry")
	}
	if err := env.validate(); err != nil {
		return nil, fmt.Errorf("rg: new graph: %w", err)
	}

	o := defaultOptions(env.Vars)
	for _, opt := range opts {
		opt(&o)
	}
	if o.alloc == nil {
		o.alloc = NewHeapAllocator(env.Device, o.heapSize, o.framesInFlight)
	}

	reg.Seal()

	g := &Graph{
		reg:       reg,
		env:       env,
		log:       env.log(),
		alloc:     o.alloc,
		injectors: o.injectors,
		arena:     heap.NewArena(),
		table:     NewTable(),
		sem:       NewSemaphore(),
		sealed:    true,
		inflight:  make([]Watermark, o.framesInFlight),
	}
	g.log.Info("rg: graph created",
		"framesInFlight", o.framesInFlight,
		"heapSize", o.heapSize,
		"injectors", len(o.injectors))
	return g, nil
}

// AddPass instantiates the pass registered under name and initializes it.
// On error the pass does not join the graph.
func (g *Graph) AddPass(name string) error {
	if g.destroyed {
		return ErrGraphDestroyed
	}

	factory, ok := g.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPass, name)
	}
	p := factory()
	if p == nil {
		return fmt.Errorf("%w: %q: factory returned nil", ErrPassInit, name)
	}
	if err := p.Init(g.env); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPassInit, name, err)
	}

	g.passes = append(g.passes, &passSlot{name: name, pass: p})
	g.log.Info("rg: pass added", "pass", name, "index", len(g.passes)-1)
	return nil
}

// Build prepares the next frame.
//
// It waits until the frame that last used this frame's heap has retired,
// publishes the builtin resources, runs Setup on every pass and places
// the transient resources in table order. A failed placement leaves the
// resource unresolved; Build then returns every failure joined with
// ErrTransientAlloc and Execute refuses the frame.
func (g *Graph) Build(ctx context.Context, target Target, scene Scene) error {
	if g.destroyed {
		return ErrGraphDestroyed
	}

	g.sealFrame()
	g.frame++
	g.built = false

	slot := g.frame % uint64(len(g.inflight))
	if err := g.env.Queues.WaitWatermark(ctx, g.inflight[slot]); err != nil {
		return fmt.Errorf("rg: build frame %d: %w", g.frame, err)
	}
	if n := g.arena.Collect(); n > 0 {
		g.log.Debug("rg: released transient objects", "count", n)
	}

	g.table.Reset()
	g.active = g.active[:0]
	g.sealed = false
	g.alloc.BeginFrame(g.frame)

	b := &Builtins{Frame: g.frame, Target: target, Scene: scene, Semaphore: g.sem}
	for _, inject := range g.injectors {
		if err := inject(g.table, b); err != nil {
			return fmt.Errorf("rg: build frame %d: inject: %w", g.frame, err)
		}
	}

	for _, s := range g.passes {
		if !s.pass.Setup(g.table) {
			g.log.Debug("rg: pass skipped", "pass", s.name, "frame", g.frame)
			continue
		}
		g.active = append(g.active, s)
	}

	if err := g.allocate(); err != nil {
		g.log.Warn("rg: transient allocation failed", "frame", g.frame, "err", err)
		return fmt.Errorf("rg: build frame %d: %w", g.frame, err)
	}

	g.built = true
	g.log.Debug("rg: frame built",
		"frame", g.frame,
		"resources", g.table.Len(),
		"active", len(g.active))
	if st, ok := g.alloc.(interface{ Stats() HeapStats }); ok {
		g.log.Debug("rg: transient heap", "frame", g.frame, "stats", st.Stats().String())
	}
	return nil
}

// allocate materializes every non-external texture and buffer in table
// order. Each handle goes to the arena under the current frame.
func (g *Graph) allocate() error {
	var errs []error
	var offset uint64

	for r := range g.table.All() {
		if r.External || r.Kind == KindData {
			continue
		}

		var (
			a   Allocation
			err error
		)
		switch r.Kind {
		case KindTexture:
			a, err = g.alloc.AllocTexture(r.Name, r.TextureDesc, offset)
		case KindBuffer:
			a, err = g.alloc.AllocBuffer(r.Name, r.BufferDesc, offset)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrTransientAlloc, err))
			continue
		}

		start, size := a.Offset, a.Size
		if a.Dedicated {
			start, size = 0, 0
		}
		if r.Kind == KindTexture {
			r.resolveTexture(a.Texture, start, size)
		} else {
			r.resolveBuffer(a.Buffer, start, size)
		}
		offset = a.Next
		g.arena.Defer(g.frame, a.Release)

		g.log.Debug("rg: placed transient",
			"name", r.Name,
			"kind", r.Kind,
			"offset", start,
			"size", a.Size,
			"dedicated", a.Dedicated)
	}
	return errors.Join(errs...)
}

// Execute runs every accepted pass in registration order. The table is
// read-only while passes run. A failing pass is logged and the remaining
// passes still run; all failures are returned joined.
func (g *Graph) Execute(ctx context.Context) error {
	if g.destroyed {
		return ErrGraphDestroyed
	}
	if !g.built {
		return fmt.Errorf("%w: frame %d", ErrFrameNotBuilt, g.frame)
	}
	g.built = false
	g.table.seal()

	frame := g.frame
	f := &Frame{
		Index:     frame,
		Table:     g.table,
		Device:    g.env.Device,
		Queues:    g.env.Queues,
		Semaphore: g.sem,
		Logger:    g.log,
		deferFn:   func(release func()) { g.arena.Defer(frame, release) },
	}

	var errs []error
	for _, s := range g.active {
		if err := s.pass.Execute(ctx, f); err != nil {
			g.log.Warn("rg: pass execute failed", "pass", s.name, "frame", frame, "err", err)
			errs = append(errs, fmt.Errorf("rg: pass %q: %w", s.name, err))
		}
	}

	g.sealFrame()
	return errors.Join(errs...)
}

// sealFrame records the submissions of the current frame and lets the
// arena release its objects once they complete.
func (g *Graph) sealFrame() {
	if g.sealed {
		return
	}
	q := g.env.Queues
	w := q.Watermark()
	g.inflight[g.frame%uint64(len(g.inflight))] = w
	g.arena.Seal(g.frame, func() bool { return q.Completed(w) })
	g.sealed = true
}

// Destroy waits for the device, releases all transient and per-frame
// objects and then terminates every pass in registration order. It is safe to call twice.
func (g *Graph) Destroy() {
	if g.destroyed {
		return
	}
	g.destroyed = true
	g.sealFrame()

	if err := g.env.Device.WaitIdle(); err != nil {
		g.log.Warn("rg: wait idle failed", "err", err)
	}
	// Per-frame views and bind groups may reference pass-owned objects.
	released := g.arena.Flush()
	for _, s := range g.passes {
		s.pass.Term()
	}
	n := len(g.passes)
	g.passes, g.active = nil, nil

	g.alloc.Destroy()
	g.table.Reset()
	g.sem.Reset()
	g.built = false

	g.log.Info("rg: graph destroyed", "passes", n, "released", released)
}

// Frame returns the index of the last built frame.
func (g *Graph) Frame() uint64 {
	return g.frame
}

// Table returns the resource table of the current frame.
func (g *Graph) Table() *Table {
	return g.table
}

// Semaphore returns the graph's completion semaphore.
func (g *Graph) Semaphore() *Semaphore {
	return g.sem
}

// Env returns the graph's environment.
func (g *Graph) Env() *Env {
	return g.env
}

// Passes returns the names of every pass in registration order.
func (g *Graph) Passes() []string {
	names := make([]string, len(g.passes))
	for i, s := range g.passes {
		names[i] = s.name
	}
	return names
}

// ActivePasses returns the names of the passes accepted by the last Build.
func (g *Graph) ActivePasses() []string {
	names := make([]string, len(g.active))
	for i, s := range g.active {
		names[i] = s.name
	}
	return names
}

// PendingFrames returns the number of frames whose transient objects have
// not been released yet.
func (g *Graph) PendingFrames() int {
	return g.arena.Pending()
}

// HeapStats returns the transient heap usage of the current frame. ok is
// false when the allocator does not report statistics.
func (g *Graph) HeapStats() (HeapStats, bool) {
	st, ok := g.alloc.(interface{ Stats() HeapStats })
	if !ok {
		return HeapStats{}, false
	}
	return st.Stats(), true
}
