package rg

import "errors"

// Resource table errors.
var (
	// ErrDuplicateResource is returned when a name is published twice in one frame.
	ErrDuplicateResource = errors.New("rg: duplicate resource")

	// ErrTableSealed is returned by table mutators while passes execute.
	ErrTableSealed = errors.New("rg: resource table is read-only during execution")

	// ErrInvalidDescriptor is returned for a texture or buffer descriptor
	// with a zero extent or size.
	ErrInvalidDescriptor = errors.New("rg: invalid resource descriptor")
)

// Registry errors.
var (
	// ErrPassExists is returned when a pass name is registered twice.
	ErrPassExists = errors.New("rg: pass already registered")

	// ErrRegistrySealed is returned when registering after a graph was created.
	ErrRegistrySealed = errors.New("rg: registry sealed")

	// ErrUnknownPass is returned when adding a pass that was never registered.
	ErrUnknownPass = errors.New("rg: unknown pass")
)

// Graph errors.
var (
	// ErrPassInit wraps the error returned by a pass Init.
	ErrPassInit = errors.New("rg: pass initialization failed")

	// ErrTransientAlloc is returned by Build when a transient resource
	// could not be materialized.
	ErrTransientAlloc = errors.New("rg: transient allocation failed")

	// ErrFrameNotBuilt is returned by Execute when the current frame has not
	// been built successfully.
	ErrFrameNotBuilt = errors.New("rg: frame not built")

	// ErrGraphDestroyed is returned when using a graph after Destroy.
	ErrGraphDestroyed = errors.New("rg: graph destroyed")

	// ErrNoDevice is returned when an Env has no device or graphics queue.
	ErrNoDevice = errors.New("rg: no device")
)
