package rg

import (
	"fmt"
	"iter"

	"github.com/gogpu/wgpu/hal"
)

// Kind is the kind of a logical resource.
type Kind uint8

const (
	// KindTexture is a texture backed by device memory.
	KindTexture Kind = iota + 1

	// KindBuffer is a buffer backed by device memory.
	KindBuffer

	// KindData is a borrow of host memory.
	KindData
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "Texture"
	case KindBuffer:
		return "Buffer"
	case KindData:
		return "Data"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// BufferRef is a resolved buffer: the backend object plus its location.
type BufferRef struct {
	Buffer hal.Buffer

	// Address is the buffer's device address.
	Address uint64

	// ID is the stable binding slot of the buffer.
	ID uint32

	// Offset and Size select the bound range. A zero Size means the whole
	// buffer from Offset.
	Offset uint64
	Size   uint64
}

// Resource is one named logical resource of the current frame.
type Resource struct {
	Hash uint64
	Name string
	Kind Kind

	// External resources were published with an existing handle and are
	// never transiently allocated.
	External bool

	TextureDesc TextureDesc
	Slot        uint16

	BufferDesc BufferDesc

	// Offset and Size locate the resource in the frame's transient heap.
	// They are zero for external, data and dedicated resources.
	Offset uint64
	Size   uint64

	texture  hal.Texture
	buffer   BufferRef
	data     DataRef
	resolved bool
}

// Resolved reports whether the resource has a usable backend handle.
func (r *Resource) Resolved() bool {
	return r.resolved
}

// Table holds the logical resources of one frame in publication order.
//
// Lookups by hash never fail loudly: absence and unresolved handles report
// false and the caller decides whether that matters. During Execute the
// table is sealed and every mutator returns ErrTableSealed.
type Table struct {
	entries []*Resource
	index   map[uint64]int
	sealed  bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[uint64]int)}
}

func (t *Table) add(r *Resource) error {
	if t.sealed {
		return fmt.Errorf("%w: add %q", ErrTableSealed, r.Name)
	}
	if t.index == nil {
		t.index = make(map[uint64]int)
	}
	if i, ok := t.index[r.Hash]; ok {
		return fmt.Errorf("%w: %q (existing %q)", ErrDuplicateResource, r.Name, t.entries[i].Name)
	}
	t.index[r.Hash] = len(t.entries)
	t.entries = append(t.entries, r)
	return nil
}

// AddTexture publishes a transient texture. slot is the texture's binding
// slot, chosen by the publishing pass.
func (t *Table) AddTexture(name string, desc TextureDesc, slot uint16) error {
	d, err := desc.normalize()
	if err != nil {
		return fmt.Errorf("texture %q: %w", name, err)
	}
	return t.add(&Resource{
		Hash:        HashString(name),
		Name:        name,
		Kind:        KindTexture,
		TextureDesc: d,
		Slot:        slot,
	})
}

// AddBuffer publishes a transient buffer.
func (t *Table) AddBuffer(name string, desc BufferDesc) error {
	if err := desc.validate(); err != nil {
		return fmt.Errorf("buffer %q: %w", name, err)
	}
	return t.add(&Resource{
		Hash:       HashString(name),
		Name:       name,
		Kind:       KindBuffer,
		BufferDesc: desc,
	})
}

// AddData publishes a borrow of host memory. Data is never allocated.
func (t *Table) AddData(name string, ref DataRef) error {
	return t.add(&Resource{
		Hash:     HashString(name),
		Name:     name,
		Kind:     KindData,
		External: true,
		data:     ref,
		resolved: ref.Valid(),
	})
}

// AddExternalTexture publishes a texture that already exists.
// A nil tex is recorded but never resolves.
func (t *Table) AddExternalTexture(name string, desc TextureDesc, tex hal.Texture) error {
	d, err := desc.normalize()
	if err != nil {
		return fmt.Errorf("texture %q: %w", name, err)
	}
	return t.add(&Resource{
		Hash:        HashString(name),
		Name:        name,
		Kind:        KindTexture,
		External:    true,
		TextureDesc: d,
		texture:     tex,
		resolved:    tex != nil,
	})
}

// AddExternalBuffer publishes a buffer that already exists.
// A nil ref.Buffer is recorded but never resolves.
func (t *Table) AddExternalBuffer(name string, desc BufferDesc, ref BufferRef) error {
	return t.add(&Resource{
		Hash:       HashString(name),
		Name:       name,
		Kind:       KindBuffer,
		External:   true,
		BufferDesc: desc,
		buffer:     ref,
		resolved:   ref.Buffer != nil,
	})
}

// Lookup returns the resource published under hash.
func (t *Table) Lookup(hash uint64) (*Resource, bool) {
	i, ok := t.index[hash]
	if !ok {
		return nil, false
	}
	return t.entries[i], true
}

// Has reports whether a resource is published under hash.
func (t *Table) Has(hash uint64) bool {
	_, ok := t.index[hash]
	return ok
}

func (t *Table) lookupKind(hash uint64, k Kind) (*Resource, bool) {
	r, ok := t.Lookup(hash)
	if !ok || r.Kind != k {
		return nil, false
	}
	return r, true
}

// Texture returns the resolved texture published under hash.
func (t *Table) Texture(hash uint64) (hal.Texture, bool) {
	r, ok := t.lookupKind(hash, KindTexture)
	if !ok || !r.resolved {
		return nil, false
	}
	return r.texture, true
}

// TextureDesc returns the description of the texture published under hash.
// It is available during Setup, before the texture is materialized.
func (t *Table) TextureDesc(hash uint64) (TextureDesc, bool) {
	r, ok := t.lookupKind(hash, KindTexture)
	if !ok {
		return TextureDesc{}, false
	}
	return r.TextureDesc, true
}

// TextureSlot returns the binding slot of the texture published under hash.
func (t *Table) TextureSlot(hash uint64) (uint16, bool) {
	r, ok := t.lookupKind(hash, KindTexture)
	if !ok {
		return 0, false
	}
	return r.Slot, true
}

// Buffer returns the resolved buffer published under hash.
func (t *Table) Buffer(hash uint64) (BufferRef, bool) {
	r, ok := t.lookupKind(hash, KindBuffer)
	if !ok || !r.resolved {
		return BufferRef{}, false
	}
	return r.buffer, true
}

// Data returns the host value borrowed under hash. It reports false when
// nothing is published, the type differs or the value was collected.
func Data[T any](t *Table, hash uint64) (*T, bool) {
	r, ok := t.lookupKind(hash, KindData)
	if !ok {
		return nil, false
	}
	return resolve[T](r.data)
}

// Len returns the number of published resources.
func (t *Table) Len() int {
	return len(t.entries)
}

// All iterates the resources in publication order.
func (t *Table) All() iter.Seq[*Resource] {
	return func(yield func(*Resource) bool) {
		for _, r := range t.entries {
			if !yield(r) {
				return
			}
		}
	}
}

// Names returns the resource names in publication order.
func (t *Table) Names() []string {
	names := make([]string, len(t.entries))
	for i, r := range t.entries {
		names[i] = r.Name
	}
	return names
}

// Sealed reports whether the table is read-only.
func (t *Table) Sealed() bool {
	return t.sealed
}

// Reset empties the table and makes it writable again.
func (t *Table) Reset() {
	clear(t.entries)
	t.entries = t.entries[:0]
	clear(t.index)
	t.sealed = false
}

func (t *Table) seal() {
	t.sealed = true
}

// resolveTexture records the materialized texture of r.
func (r *Resource) resolveTexture(tex hal.Texture, offset, size uint64) {
	r.texture = tex
	r.Offset, r.Size = offset, size
	r.resolved = tex != nil
}

// resolveBuffer records the materialized buffer of r.
func (r *Resource) resolveBuffer(ref BufferRef, offset, size uint64) {
	r.buffer = ref
	r.Offset, r.Size = offset, size
	r.resolved = ref.Buffer != nil
}
