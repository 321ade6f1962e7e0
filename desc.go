package rg

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MemoryType selects where a resource's memory lives.
type MemoryType uint8

const (
	// MemoryGPU is device-local memory, placed in the transient heap.
	MemoryGPU MemoryType = iota

	// MemoryUpload is host-visible memory written by the CPU every frame.
	MemoryUpload

	// MemoryReadback is host-visible memory read back by the CPU.
	MemoryReadback
)

// String returns the memory type name.
func (m MemoryType) String() string {
	switch m {
	case MemoryGPU:
		return "GPU"
	case MemoryUpload:
		return "Upload"
	case MemoryReadback:
		return "Readback"
	default:
		return fmt.Sprintf("MemoryType(%d)", m)
	}
}

// TextureDesc describes a texture resource.
// Zero Depth, ArrayLayers, MipLevels and SampleCount mean 1; a zero
// Dimension means 2D.
type TextureDesc struct {
	Width       uint32
	Height      uint32
	Depth       uint32
	ArrayLayers uint32
	MipLevels   uint32
	SampleCount uint32

	Dimension gputypes.TextureDimension
	Format    gputypes.TextureFormat
	Usage     gputypes.TextureUsage
	Memory    MemoryType
}

// Texture2D returns a single-sample 2D texture description.
func Texture2D(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) TextureDesc {
	return TextureDesc{
		Width:     width,
		Height:    height,
		Dimension: gputypes.TextureDimension2D,
		Format:    format,
		Usage:     usage,
	}
}

// normalize fills defaulted fields and validates the extent.
func (d TextureDesc) normalize() (TextureDesc, error) {
	if d.Width == 0 || d.Height == 0 {
		return d, fmt.Errorf("%w: texture extent %dx%d", ErrInvalidDescriptor, d.Width, d.Height)
	}
	if d.Format == gputypes.TextureFormatUndefined {
		return d, fmt.Errorf("%w: texture format undefined", ErrInvalidDescriptor)
	}
	if d.Depth == 0 {
		d.Depth = 1
	}
	if d.ArrayLayers == 0 {
		d.ArrayLayers = 1
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = 1
	}
	if d.Dimension == gputypes.TextureDimensionUndefined {
		d.Dimension = gputypes.TextureDimension2D
	}
	return d, nil
}

// ByteSize estimates the memory footprint of the texture including every
// mip level, array layer and sample.
func (d TextureDesc) ByteSize() uint64 {
	d, err := d.normalize()
	if err != nil {
		return 0
	}
	bpp := bytesPerPixel(d.Format)

	var total uint64
	w, h, z := uint64(d.Width), uint64(d.Height), uint64(d.Depth)
	for range d.MipLevels {
		total += w * h * z * bpp
		w, h = max(w/2, 1), max(h/2, 1)
		if d.Dimension == gputypes.TextureDimension3D {
			z = max(z/2, 1)
		}
	}
	return total * uint64(d.ArrayLayers) * uint64(d.SampleCount)
}

// halDescriptor converts d to a backend texture descriptor.
func (d TextureDesc) halDescriptor(label string) *hal.TextureDescriptor {
	layers := d.ArrayLayers
	if d.Dimension == gputypes.TextureDimension3D {
		layers = d.Depth
	}
	return &hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              d.Width,
			Height:             d.Height,
			DepthOrArrayLayers: layers,
		},
		MipLevelCount: d.MipLevels,
		SampleCount:   d.SampleCount,
		Dimension:     d.Dimension,
		Format:        d.Format,
		Usage:         d.Usage,
	}
}

// BufferDesc describes a buffer resource.
type BufferDesc struct {
	Size   uint64
	Usage  gputypes.BufferUsage
	Memory MemoryType
}

func (d BufferDesc) validate() error {
	if d.Size == 0 {
		return fmt.Errorf("%w: zero buffer size", ErrInvalidDescriptor)
	}
	return nil
}

// bytesPerPixel returns the texel size of f. Block-compressed and unknown
// formats report 4.
func bytesPerPixel(f gputypes.TextureFormat) uint64 {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm,
		gputypes.TextureFormatR8Uint, gputypes.TextureFormatR8Sint,
		gputypes.TextureFormatStencil8:
		return 1
	case gputypes.TextureFormatR16Unorm, gputypes.TextureFormatR16Snorm,
		gputypes.TextureFormatR16Uint, gputypes.TextureFormatR16Sint,
		gputypes.TextureFormatR16Float, gputypes.TextureFormatRG8Unorm,
		gputypes.TextureFormatRG8Snorm, gputypes.TextureFormatRG8Uint,
		gputypes.TextureFormatRG8Sint, gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatRG32Float, gputypes.TextureFormatRG32Uint,
		gputypes.TextureFormatRG32Sint, gputypes.TextureFormatRGBA16Unorm,
		gputypes.TextureFormatRGBA16Snorm, gputypes.TextureFormatRGBA16Uint,
		gputypes.TextureFormatRGBA16Sint, gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return 8
	case gputypes.TextureFormatRGBA32Float, gputypes.TextureFormatRGBA32Uint,
		gputypes.TextureFormatRGBA32Sint:
		return 16
	default:
		return 4
	}
}
