package rg

import (
	"context"
	"log/slog"

	"github.com/gogpu/wgpu/hal"
)

// Pass is one stage of the frame.
//
// A pass is created by its registry factory and initialized once when it
// joins a graph. Every frame Setup decides whether the pass takes part and
// publishes the resources it produces; Execute records and submits its
// work. Term runs exactly once, when the graph is destroyed.
type Pass interface {
	// Init prepares long-lived objects such as pipelines. An error keeps
	// the pass out of the graph.
	Init(env *Env) error

	// Term releases everything Init created.
	Term()

	// Setup returns false to skip the pass for this frame. Skipping is a
	// normal outcome, not an error.
	Setup(t *Table) bool

	// Execute runs the pass. The table is read-only.
	Execute(ctx context.Context, f *Frame) error
}

// Factory creates a pass instance.
type Factory func() Pass

// Frame is what a pass sees while it executes.
type Frame struct {
	// Index is the frame number, starting at 1.
	Index uint64

	// Table holds the frame's resources. It is sealed.
	Table *Table

	Device hal.Device
	Queues *Queues

	// Semaphore is the graph's completion semaphore, shared by all passes.
	Semaphore *Semaphore

	Logger *slog.Logger

	deferFn func(release func())
}

// Defer releases an object once the GPU work of this frame has retired.
// Passes use it for per-frame views and bind groups.
func (f *Frame) Defer(release func()) {
	if f.deferFn == nil {
		if release != nil {
			release()
		}
		return
	}
	f.deferFn(release)
}
