package rg

import (
	"fmt"

	"github.com/gogpu/rg/graphdesc"
)

// NewFromDescription creates a graph and adds the enabled passes of desc in
// order. Any failure destroys the partial graph and is returned.
func NewFromDescription(reg *Registry, env *Env, desc *graphdesc.Description, opts ...Option) (*Graph, error) {
	g, err := New(reg, env, opts...)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return g, nil
	}

	for _, name := range desc.Passes {
		if err := g.AddPass(name); err != nil {
			g.log.Warn("rg: graph construction aborted", "pass", name, "err", err)
			g.Destroy()
			return nil, err
		}
	}
	return g, nil
}

// NewDefault creates the standard frame graph: depth prepass, optional
// SSAO, light culling, forward shading, optional debug bounds and the UI
// overlay, as selected by env.Vars.
func NewDefault(reg *Registry, env *Env, opts ...Option) (*Graph, error) {
	if env == nil {
		return nil, fmt.Errorf("rg: new default graph: %w", ErrNoDevice)
	}
	desc, err := graphdesc.Default(env.Vars)
	if err != nil {
		return nil, err
	}
	return NewFromDescription(reg, env, desc, opts...)
}
