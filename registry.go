package rg

import (
	"fmt"
	"sync"
)

type registryEntry struct {
	name    string
	factory Factory
}

// Registry maps pass names to factories.
//
// Names are write-once. The registry is sealed when the first graph is
// created from it; later registrations fail with ErrRegistrySealed.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint64]registryEntry
	names   []string
	sealed  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint64]registryEntry)}
}

// Register adds a pass factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("rg: register %q: empty name or nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: register %q", ErrRegistrySealed, name)
	}
	h := HashString(name)
	if e, ok := r.entries[h]; ok {
		return fmt.Errorf("%w: %q (existing %q)", ErrPassExists, name, e.name)
	}
	r.entries[h] = registryEntry{name: name, factory: f}
	r.names = append(r.names, name)
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package initialization.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[HashString(name)]
	if !ok || e.name != name {
		return nil, false
	}
	return e.factory, true
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry is sealed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
