// Package rg is a frame render graph with a transient resource scheduler.
//
// # Overview
//
// Every frame the graph resolves named logical resources (textures, buffers
// and host data) to backend objects, asks each registered pass whether it
// takes part, places the transient resources of the participating passes in
// a per-frame heap and runs the passes in registration order.
//
//	reg := rg.NewRegistry()
//	if err := passes.Register(reg, nil); err != nil {
//	    return err
//	}
//
//	g, err := rg.NewDefault(reg, env)
//	if err != nil {
//	    return err
//	}
//	defer g.Destroy()
//
//	for {
//	    if err := g.Build(ctx, target, scene); err != nil {
//	        return err
//	    }
//	    if err := g.Execute(ctx); err != nil {
//	        log.Print(err)
//	    }
//	}
//
// # Resources
//
// Resources are keyed by [HashString] of their name and live for one Build
// cycle. A pass publishes what it produces during Setup and looks up what it
// consumes; absence of an optional input is not an error.
//
// # Transient memory
//
// Non-external textures and buffers are placed by a [TransientAllocator] in
// table order. The default [HeapAllocator] is a linear bump heap rotated per
// frame in flight. Each materialized object is handed to a frame-indexed
// arena and released once the GPU work of its frame has retired.
//
// # Queues
//
// Passes submit through [Queues], which maps graphics, compute and transfer
// work onto backend queues and orders them with timeline [Semaphore] values.
//
// # Backend
//
// The backend is github.com/gogpu/wgpu/hal. Tests and the demo use the noop
// backend from github.com/gogpu/wgpu/hal/noop.
package rg
