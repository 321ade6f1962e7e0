// Package graphdesc reads the list of passes that make up a render graph
// from an HCL description.
//
// A description is a sequence of pass blocks evaluated against the engine's
// console variables:
//
//	pass "depth" {}
//
//	pass "ssao" {
//	  enabled = cvar.Render.SSAO_Enable
//	}
//
//	pass "ui" {
//	  name = cvar.Render.UIPass
//	}
//
// enabled defaults to true and name defaults to the block label.
package graphdesc

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/rg/cvar"
)

//go:embed default.hcl
var defaultSource []byte

// DefaultFilename is the filename reported in diagnostics for Default.
const DefaultFilename = "default.hcl"

// Pass is one evaluated pass block.
type Pass struct {
	// Label is the block label.
	Label string

	// Name is the registered pass name to instantiate.
	Name string

	// Enabled reports whether the pass joins the graph.
	Enabled bool
}

// Description is an evaluated graph description.
type Description struct {
	// Passes lists the enabled pass names in file order.
	Passes []string

	// Blocks holds every pass block, enabled or not, in file order.
	Blocks []Pass
}

type hclFile struct {
	Passes []*hclPass `hcl:"pass,block"`
}

type hclPass struct {
	Label   string  `hcl:"label,label"`
	Enabled *bool   `hcl:"enabled,optional"`
	Name    *string `hcl:"name,optional"`
}

// Parse evaluates the HCL description in src. vars supplies the cvar
// variable visible to expressions; nil exposes an empty set.
func Parse(filename string, src []byte, vars *cvar.Set) (*Description, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("graphdesc: failed to parse %s: %w", filename, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, EvalContext(vars), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("graphdesc: failed to decode %s: %w", filename, diags)
	}

	desc := &Description{}
	seen := make(map[string]string, len(parsed.Passes))
	for _, p := range parsed.Passes {
		entry := Pass{Label: p.Label, Name: p.Label, Enabled: true}
		if p.Enabled != nil {
			entry.Enabled = *p.Enabled
		}
		if p.Name != nil {
			entry.Name = *p.Name
		}
		if entry.Name == "" {
			return nil, fmt.Errorf("graphdesc: %s: pass %q has an empty name", filename, p.Label)
		}
		if prev, ok := seen[p.Label]; ok {
			return nil, fmt.Errorf("graphdesc: %s: duplicate pass block %q (previous name %q)", filename, p.Label, prev)
		}
		seen[p.Label] = entry.Name

		desc.Blocks = append(desc.Blocks, entry)
		if entry.Enabled {
			desc.Passes = append(desc.Passes, entry.Name)
		}
	}
	return desc, nil
}

// ParseFile evaluates the HCL description stored at path.
func ParseFile(path string, vars *cvar.Set) (*Description, error) {
	src, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied configuration
	if err != nil {
		return nil, fmt.Errorf("graphdesc: %w", err)
	}
	return Parse(path, src, vars)
}

// Default evaluates the builtin description of the standard frame.
func Default(vars *cvar.Set) (*Description, error) {
	return Parse(DefaultFilename, defaultSource, vars)
}

// EvalContext returns an evaluation context exposing vars as the object
// tree cvar, so Render.SSAO_Enable is read as cvar.Render.SSAO_Enable.
// When a name is both a value and a prefix of other names, the nested
// names win.
func EvalContext(vars *cvar.Set) *hcl.EvalContext {
	root := cty.EmptyObjectVal
	if vars != nil {
		root = objectVal(vars.Snapshot())
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"cvar": root},
	}
}

type node struct {
	value    cty.Value
	hasValue bool
	children map[string]*node
}

func objectVal(vars map[string]any) cty.Value {
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	root := &node{}
	for _, name := range names {
		v, ok := toCty(vars[name])
		if !ok {
			continue
		}
		cur := root
		for _, part := range strings.Split(name, ".") {
			if cur.children == nil {
				cur.children = make(map[string]*node)
			}
			next, ok := cur.children[part]
			if !ok {
				next = &node{}
				cur.children[part] = next
			}
			cur = next
		}
		cur.value, cur.hasValue = v, true
	}
	return root.object()
}

func (n *node) object() cty.Value {
	if len(n.children) == 0 {
		if !n.hasValue {
			return cty.EmptyObjectVal
		}
		return n.value
	}
	attrs := make(map[string]cty.Value, len(n.children))
	for k, c := range n.children {
		attrs[k] = c.object()
	}
	return cty.ObjectVal(attrs)
}

func toCty(v any) (cty.Value, bool) {
	switch v := v.(type) {
	case bool:
		return cty.BoolVal(v), true
	case string:
		return cty.StringVal(v), true
	case int64:
		return cty.NumberIntVal(v), true
	case uint64:
		return cty.NumberUIntVal(v), true
	case float64:
		return cty.NumberFloatVal(v), true
	}
	return cty.NilVal, false
}
