package graphdesc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/rg/cvar"
)

func TestDefault(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*cvar.Set)
		want  []string
	}{
		{
			name:  "defaults",
			setup: func(*cvar.Set) {},
			want:  []string{"depth", "ssao", "lightcull", "forward", "ui"},
		},
		{
			name:  "ssao disabled",
			setup: func(s *cvar.Set) { s.SetBool(cvar.RenderSSAOEnable, false) },
			want:  []string{"depth", "lightcull", "forward", "ui"},
		},
		{
			name:  "light bounds only",
			setup: func(s *cvar.Set) { s.SetBool(cvar.RenderDebugDrawLightBounds, true) },
			want:  []string{"depth", "ssao", "lightcull", "forward", "debugbounds", "ui"},
		},
		{
			name: "debug bounds and renamed ui",
			setup: func(s *cvar.Set) {
				s.SetBool(cvar.RenderDebugDrawObjectBounds, true)
				s.SetString(cvar.RenderUIPass, "hud")
			},
			want: []string{"depth", "ssao", "lightcull", "forward", "debugbounds", "hud"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := cvar.Defaults()
			tt.setup(vars)

			desc, err := Default(vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, desc.Passes)
			assert.Len(t, desc.Blocks, 6)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	src := []byte(`
pass "a" {}
pass "b" {
  enabled = false
}
pass "c" {
  name = "custom"
}
`)
	desc, err := Parse("test.hcl", src, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "custom"}, desc.Passes)
	require.Len(t, desc.Blocks, 3)
	assert.Equal(t, Pass{Label: "b", Name: "b", Enabled: false}, desc.Blocks[1])
	assert.Equal(t, Pass{Label: "c", Name: "custom", Enabled: true}, desc.Blocks[2])
}

func TestParse_Expressions(t *testing.T) {
	vars := cvar.New()
	vars.SetUint64("Render.Quality", 3)

	src := []byte(`
pass "high" {
  enabled = cvar.Render.Quality > 2
}
pass "low" {
  enabled = cvar.Render.Quality <= 2
}
`)
	desc, err := Parse("test.hcl", src, vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"high"}, desc.Passes)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `pass "a" {`},
		{"unknown attribute", `pass "a" { color = "red" }`},
		{"unknown cvar", `pass "a" { enabled = cvar.Render.Missing }`},
		{"duplicate", "pass \"a\" {}\npass \"a\" {}\n"},
		{"empty name", `pass "a" { name = "" }`},
		{"wrong type", `pass "a" { enabled = "maybe" }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.hcl", []byte(tt.src), cvar.Defaults())
			assert.Error(t, err)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.hcl")
	require.NoError(t, os.WriteFile(path, []byte("pass \"forward\" {}\n"), 0o600))

	desc, err := ParseFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"forward"}, desc.Passes)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.hcl"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEvalContext_NestedNames(t *testing.T) {
	vars := cvar.New()
	vars.SetBool("Render.SSAO_Enable", true)
	vars.SetString("Render.UIPass", "ui")

	ctx := EvalContext(vars)
	root := ctx.Variables["cvar"]
	render := root.GetAttr("Render")
	assert.True(t, render.GetAttr("SSAO_Enable").True())
	assert.Equal(t, "ui", render.GetAttr("UIPass").AsString())
}
