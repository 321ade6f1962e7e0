// Package cvar holds engine console variables: named boolean, string and
// numeric settings read by the render graph while it is assembled.
//
// Reads register the supplied default on first use, so the set always
// reflects every variable the engine has consulted. Values loaded from a
// TOML file take precedence over defaults.
package cvar

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Well-known variable names.
const (
	RenderSSAOEnable            = "Render.SSAO_Enable"
	RenderDebugDrawObjectBounds = "Render.Debug_DrawObjectBounds"
	RenderDebugDrawLightBounds  = "Render.Debug_DrawLightBounds"
	RenderUIPass                = "Render.UIPass"
	RenderTransientHeapSize     = "Render.TransientHeapSize"
	RenderFramesInFlight        = "Render.FramesInFlight"
	RenderUIMaxVertices         = "Render.UIMaxVertices"
)

// ErrType is returned by Load when a value has an unsupported TOML type.
var ErrType = errors.New("cvar: unsupported value type")

// Set is a collection of console variables.
// The zero value is empty and ready to use. Set is safe for concurrent use.
type Set struct {
	mu   sync.RWMutex
	vars map[string]any
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// Defaults returns a set with every well-known variable registered at its
// default value.
func Defaults() *Set {
	s := New()
	s.Bool(RenderSSAOEnable, true)
	s.Bool(RenderDebugDrawObjectBounds, false)
	s.Bool(RenderDebugDrawLightBounds, false)
	s.String(RenderUIPass, "ui")
	s.Uint64(RenderTransientHeapSize, 64<<20)
	s.Uint64(RenderFramesInFlight, 2)
	s.Uint64(RenderUIMaxVertices, 65536)
	return s
}

// lookup returns the stored value, registering def when name is unset.
func (s *Set) lookup(name string, def any) any {
	s.mu.RLock()
	v, ok := s.vars[name]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vars[name]; ok {
		return v
	}
	if s.vars == nil {
		s.vars = make(map[string]any)
	}
	s.vars[name] = def
	return def
}

func (s *Set) set(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vars == nil {
		s.vars = make(map[string]any)
	}
	s.vars[name] = v
}

// Bool returns the boolean variable name, registering def if unset.
// A value of another type that does not parse as a boolean yields def.
func (s *Set) Bool(name string, def bool) bool {
	switch v := s.lookup(name, def).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	case int64:
		return v != 0
	case uint64:
		return v != 0
	}
	return def
}

// String returns the string variable name, registering def if unset.
func (s *Set) String(name, def string) string {
	switch v := s.lookup(name, def).(type) {
	case string:
		return v
	case bool, int64, uint64, float64:
		return fmt.Sprint(v)
	}
	return def
}

// Uint64 returns the unsigned variable name, registering def if unset.
// Negative or fractional values yield def.
func (s *Set) Uint64(name string, def uint64) uint64 {
	switch v := s.lookup(name, def).(type) {
	case uint64:
		return v
	case int64:
		if v >= 0 {
			return uint64(v)
		}
	case float64:
		if v >= 0 && v == math.Trunc(v) && v < math.MaxUint64 {
			return uint64(v)
		}
	case string:
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			return u
		}
	}
	return def
}

// Float returns the floating-point variable name, registering def if unset.
func (s *Set) Float(name string, def float64) float64 {
	switch v := s.lookup(name, def).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// SetBool sets a boolean variable.
func (s *Set) SetBool(name string, v bool) { s.set(name, v) }

// SetString sets a string variable.
func (s *Set) SetString(name, v string) { s.set(name, v) }

// SetUint64 sets an unsigned variable.
func (s *Set) SetUint64(name string, v uint64) { s.set(name, v) }

// SetFloat sets a floating-point variable.
func (s *Set) SetFloat(name string, v float64) { s.set(name, v) }

// Get returns the raw value of name without registering a default.
// The value is a bool, string, uint64, int64 or float64.
func (s *Set) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Names returns every variable name in sorted order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of every variable.
func (s *Set) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		m[k] = v
	}
	return m
}

// Load decodes TOML from r into the set. Tables are flattened into dotted
// names, so
//
//	[Render]
//	SSAO_Enable = false
//
// sets Render.SSAO_Enable.
func (s *Set) Load(r io.Reader) error {
	var doc map[string]any
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("cvar: decode: %w", err)
	}

	flat := make(map[string]any)
	if err := flatten("", doc, flat); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vars == nil {
		s.vars = make(map[string]any)
	}
	for k, v := range flat {
		s.vars[k] = v
	}
	return nil
}

// LoadFile loads TOML variables from the file at path.
func (s *Set) LoadFile(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied configuration
	if err != nil {
		return fmt.Errorf("cvar: %w", err)
	}
	defer f.Close()

	if err := s.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func flatten(prefix string, m map[string]any, out map[string]any) error {
	for k, v := range m {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			if err := flatten(name, v, out); err != nil {
				return err
			}
		case bool, string, int64, float64:
			out[name] = v
		default:
			return fmt.Errorf("%w: %s is %T", ErrType, name, v)
		}
	}
	return nil
}
