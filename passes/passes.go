// Package passes provides the builtin render passes of the default frame:
// depth prepass, SSAO, tiled light culling, forward shading, debug bounds
// and the text overlay.
//
// Passes communicate only through the resource table. Each pass publishes
// what it produces in Setup and looks up what it consumes by hash, so any
// pass may be left out of a graph and its consumers fall back or skip.
//
// Usage:
//
//	reg := rg.NewRegistry()
//	ov := passes.NewOverlay()
//	if err := passes.Register(reg, ov); err != nil {
//	    return err
//	}
//	g, err := rg.NewDefault(reg, env)
package passes

import (
	"errors"
	"fmt"

	"github.com/gogpu/rg"
)

// Pass names.
const (
	Depth       = "depth"
	SSAO        = "ssao"
	LightCull   = "lightcull"
	Forward     = "forward"
	DebugBounds = "debugbounds"
	UI          = "ui"
)

// Resource names published by the builtin passes.
const (
	DepthBufferName         = "DepthBuffer"
	NormalBufferName        = "NormalBuffer"
	AOBufferName            = "AOBuffer"
	VisibleLightIndicesName = "VisibleLightIndices"
	DebugVerticesName       = "DebugBoundsVertices"
	UIVerticesName          = "UIVertices"
)

// Resource keys.
var (
	DepthBufferID         = rg.HashString(DepthBufferName)
	NormalBufferID        = rg.HashString(NormalBufferName)
	AOBufferID            = rg.HashString(AOBufferName)
	VisibleLightIndicesID = rg.HashString(VisibleLightIndicesName)
	DebugVerticesID       = rg.HashString(DebugVerticesName)
	UIVerticesID          = rg.HashString(UIVerticesName)
)

// Texture binding slots chosen by the publishing passes.
const (
	slotDepth uint16 = iota
	slotNormal
	slotAO
)

// Scene layout expected in the scene buffers.
const (
	// InstanceStride is the size of one instance: a column-major model
	// matrix.
	InstanceStride = 64

	// LightStride is the size of one light in the scene data buffer:
	// screen position, depth and radius followed by an RGBA color.
	LightStride = 32

	// TileSize is the edge of a light-culling tile in pixels.
	TileSize = 16

	// MaxLightsPerTile bounds the lights recorded for one tile.
	MaxLightsPerTile = 63
)

// ErrMissingResource is returned by Execute when a resource the pass
// accepted in Setup has no usable handle.
var ErrMissingResource = errors.New("passes: required resource not resolved")

// Register adds every builtin pass to reg. ov feeds the debug bounds and
// overlay passes; nil creates a private, empty overlay.
func Register(reg *rg.Registry, ov *Overlay) error {
	if ov == nil {
		ov = NewOverlay()
	}

	factories := []struct {
		name string
		f    rg.Factory
	}{
		{Depth, func() rg.Pass { return &depthPass{} }},
		{SSAO, func() rg.Pass { return &ssaoPass{} }},
		{LightCull, func() rg.Pass { return &lightCullPass{} }},
		{Forward, func() rg.Pass { return &forwardPass{} }},
		{DebugBounds, func() rg.Pass { return &debugBoundsPass{overlay: ov} }},
		{UI, func() rg.Pass { return &uiPass{overlay: ov} }},
	}

	var errs []error
	for _, e := range factories {
		if err := reg.Register(e.name, e.f); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("passes: register: %w", err)
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingResource, name)
}
