package rg

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg/internal/heap"
	"github.com/gogpu/rg/internal/slots"
)

// HeapStats reports transient heap usage.
type HeapStats = heap.Stats

// Placement alignments.
const (
	// TextureAlignment is the heap alignment of transient textures.
	TextureAlignment = 4096

	// BufferAlignment is the heap alignment of transient buffers. It
	// matches the default minimum storage buffer offset alignment.
	BufferAlignment = 256
)

// addressBase is where synthetic device addresses of heap slot 0 start.
const addressBase = 1 << 32

// Allocation is a materialized transient resource.
type Allocation struct {
	Texture hal.Texture
	Buffer  BufferRef

	// Offset is the aligned start of the resource in the heap and Next the
	// offset the following placement starts from. Dedicated allocations
	// leave the running offset unchanged and report a zero Offset.
	Offset uint64
	Next   uint64
	Size   uint64

	Dedicated bool

	// Release destroys the backend object. The graph defers it until the
	// frame retires.
	Release func()
}

// TransientAllocator materializes the transient resources of a frame.
//
// Resources are placed in table order: the graph passes the offset where
// the previous placement ended and continues from Allocation.Next. Ranges
// are never reused within a frame.
type TransientAllocator interface {
	// BeginFrame starts placement for frame. The graph guarantees the GPU
	// has retired every frame that could share memory with it.
	BeginFrame(frame uint64)

	AllocTexture(name string, desc TextureDesc, offset uint64) (Allocation, error)
	AllocBuffer(name string, desc BufferDesc, offset uint64) (Allocation, error)

	// Destroy releases the allocator's own resources.
	Destroy()
}

// HeapAllocator is the default TransientAllocator: a linear bump heap per
// frame in flight. GPU-memory resources are placed in the heap of the
// current frame; upload and readback resources are created dedicated.
type HeapAllocator struct {
	device hal.Device
	heaps  []*heap.Heap
	cur    int
	ids    slots.Set
}

// NewHeapAllocator creates an allocator with framesInFlight heaps of
// capacity bytes each. Zero values select the defaults.
func NewHeapAllocator(device hal.Device, capacity uint64, framesInFlight int) *HeapAllocator {
	if framesInFlight <= 0 {
		framesInFlight = DefaultFramesInFlight
	}
	a := &HeapAllocator{device: device, heaps: make([]*heap.Heap, framesInFlight)}
	for i := range a.heaps {
		a.heaps[i] = heap.New(capacity)
	}
	return a
}

// BeginFrame selects and resets the heap of frame.
func (a *HeapAllocator) BeginFrame(frame uint64) {
	a.cur = int(frame % uint64(len(a.heaps))) //nolint:gosec // bounded by heap count
	a.heaps[a.cur].Reset()
}

func (a *HeapAllocator) place(offset, size, align uint64) (start, next, addr uint64, err error) {
	h := a.heaps[a.cur]
	start, next, err = h.Place(offset, size, align)
	if err != nil {
		return 0, 0, 0, err
	}
	addr = addressBase + uint64(a.cur)*h.Capacity() + start
	return start, next, addr, nil
}

// AllocTexture creates a texture for desc at or after offset.
func (a *HeapAllocator) AllocTexture(name string, desc TextureDesc, offset uint64) (Allocation, error) {
	size := desc.ByteSize()
	out := Allocation{Next: offset, Size: size}

	if desc.Memory == MemoryGPU {
		start, next, _, err := a.place(offset, size, TextureAlignment)
		if err != nil {
			return Allocation{}, fmt.Errorf("texture %q: %w", name, err)
		}
		out.Offset, out.Next = start, next
	} else {
		out.Dedicated = true
	}

	tex, err := a.device.CreateTexture(desc.halDescriptor(name))
	if err != nil {
		return Allocation{}, fmt.Errorf("texture %q: %w", name, err)
	}
	out.Texture = tex
	out.Release = func() { a.device.DestroyTexture(tex) }
	return out, nil
}

// AllocBuffer creates a buffer for desc at or after offset and reserves
// its binding ID.
func (a *HeapAllocator) AllocBuffer(name string, desc BufferDesc, offset uint64) (Allocation, error) {
	out := Allocation{Next: offset, Size: desc.Size}

	var addr uint64
	if desc.Memory == MemoryGPU {
		start, next, ad, err := a.place(offset, desc.Size, BufferAlignment)
		if err != nil {
			return Allocation{}, fmt.Errorf("buffer %q: %w", name, err)
		}
		out.Offset, out.Next, addr = start, next, ad
	} else {
		out.Dedicated = true
	}

	buf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: name,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return Allocation{}, fmt.Errorf("buffer %q: %w", name, err)
	}

	id := a.ids.Reserve()
	out.Buffer = BufferRef{Buffer: buf, Address: addr, ID: id, Size: desc.Size}
	out.Release = func() {
		a.device.DestroyBuffer(buf)
		a.ids.Release(id)
	}
	return out, nil
}

// Stats returns the usage of the current frame's heap.
func (a *HeapAllocator) Stats() HeapStats {
	return a.heaps[a.cur].Stats()
}

// LiveBufferIDs returns the number of reserved buffer binding IDs.
func (a *HeapAllocator) LiveBufferIDs() int {
	return a.ids.Len()
}

// Destroy implements TransientAllocator. Heaps hold no backend memory.
func (a *HeapAllocator) Destroy() {}
