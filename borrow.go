package rg

import (
	"fmt"
	"weak"
)

// DataRef is a weak borrow of host memory owned by a collaborator.
//
// The table never keeps the borrowed value alive: once the owner drops its
// last reference, lookups through [Data] report false instead of returning
// a dangling value. The owner must keep the value reachable for the whole
// frame it is published in.
type DataRef struct {
	ptr   any // weak.Pointer[T]
	alive func() bool
	kind  string
}

// Borrow returns a weak borrow of p. A nil p yields a reference that never
// resolves.
func Borrow[T any](p *T) DataRef {
	wp := weak.Make(p)
	return DataRef{
		ptr:   wp,
		alive: func() bool { return wp.Value() != nil },
		kind:  fmt.Sprintf("%T", p),
	}
}

// Valid reports whether the borrowed value is still alive.
func (r DataRef) Valid() bool {
	return r.alive != nil && r.alive()
}

// Type returns the Go type of the borrowed pointer, such as "*rg.Camera".
func (r DataRef) Type() string {
	return r.kind
}

// resolve returns the borrowed *T, or false when the type does not match or
// the value has been collected.
func resolve[T any](r DataRef) (*T, bool) {
	wp, ok := r.ptr.(weak.Pointer[T])
	if !ok {
		return nil, false
	}
	p := wp.Value()
	return p, p != nil
}
