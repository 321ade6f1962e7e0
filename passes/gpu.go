package passes

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/internal/shader"
)

// cameraSize is the uniform layout of Camera in the shaders: view and
// projection matrices followed by the position padded to a vec4.
const cameraSize = 2*64 + 16

// encode records one command buffer. The buffer is freed once the frame
// retires.
func encode(f *rg.Frame, label string, record func(enc hal.CommandEncoder) error) ([]hal.CommandBuffer, error) {
	enc, err := f.Device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("%s: create command encoder: %w", label, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("%s: begin encoding: %w", label, err)
	}
	if err := record(enc); err != nil {
		enc.DiscardEncoding()
		enc.Destroy()
		return nil, err
	}
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("%s: end encoding: %w", label, err)
	}

	device := f.Device
	f.Defer(func() {
		device.FreeCommandBuffer(cmd)
		enc.Destroy()
	})
	return []hal.CommandBuffer{cmd}, nil
}

// submit encodes and submits one command buffer on kind. The pass
// semaphore orders it after the previous pass when wait is set, and is
// advanced to this submission.
func submit(ctx context.Context, f *rg.Frame, kind rg.QueueKind, label string, wait bool, record func(enc hal.CommandEncoder) error) error {
	cmds, err := encode(f, label, record)
	if err != nil {
		return err
	}
	sem := passSemaphore(f)
	var w *rg.Semaphore
	if wait {
		w = sem
	}
	if _, err := f.Queues.Submit(ctx, kind, cmds, w, sem); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	return nil
}

// passSemaphore returns the semaphore published in the table, falling
// back to the graph's own.
func passSemaphore(f *rg.Frame) *rg.Semaphore {
	if s, ok := rg.Data[rg.Semaphore](f.Table, rg.PassSemaphoreID); ok {
		return s
	}
	return f.Semaphore
}

// textureView creates a per-frame 2D view of tex.
func textureView(f *rg.Frame, tex hal.Texture, format gputypes.TextureFormat, aspect gputypes.TextureAspect, label string) (hal.TextureView, error) {
	view, err := f.Device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           label,
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          aspect,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create view: %w", label, err)
	}
	device := f.Device
	f.Defer(func() { device.DestroyTextureView(view) })
	return view, nil
}

// tableView creates a view of the texture resource hash.
func tableView(f *rg.Frame, hash uint64, aspect gputypes.TextureAspect, name string) (hal.TextureView, rg.TextureDesc, error) {
	tex, ok := f.Table.Texture(hash)
	if !ok {
		return nil, rg.TextureDesc{}, missing(name)
	}
	desc, _ := f.Table.TextureDesc(hash)
	view, err := textureView(f, tex, desc.Format, aspect, name)
	if err != nil {
		return nil, rg.TextureDesc{}, err
	}
	return view, desc, nil
}

// bindGroup creates a per-frame bind group.
func bindGroup(f *rg.Frame, layout hal.BindGroupLayout, label string, entries ...gputypes.BindGroupEntry) (hal.BindGroup, error) {
	bg, err := f.Device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create bind group: %w", label, err)
	}
	device := f.Device
	f.Defer(func() { device.DestroyBindGroup(bg) })
	return bg, nil
}

func bufferEntry(binding uint32, ref rg.BufferRef) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: ref.Buffer.NativeHandle(),
			Offset: ref.Offset,
			Size:   ref.Size,
		},
	}
}

func viewEntry(binding uint32, view hal.TextureView) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding:  binding,
		Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
	}
}

func uniformLayout(binding uint32, vis gputypes.ShaderStages) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

func storageLayout(binding uint32, vis gputypes.ShaderStages, readOnly bool) gputypes.BindGroupLayoutEntry {
	t := gputypes.BufferBindingTypeStorage
	if readOnly {
		t = gputypes.BufferBindingTypeReadOnlyStorage
	}
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Buffer:     &gputypes.BufferBindingLayout{Type: t},
	}
}

func textureLayout(binding uint32, vis gputypes.ShaderStages, sample gputypes.TextureSampleType) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    sample,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}

// pipelineLayout creates a single-group layout and records both objects
// in res.
func pipelineLayout(res *shader.Resources, label string, entries ...gputypes.BindGroupLayoutEntry) (hal.BindGroupLayout, hal.PipelineLayout, error) {
	bgl, err := res.Device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: create bind group layout: %w", label, err)
	}
	res.BindLayouts = append(res.BindLayouts, bgl)

	pl, err := res.Device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []hal.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: create pipeline layout: %w", label, err)
	}
	res.PipelineLayouts = append(res.PipelineLayouts, pl)
	return bgl, pl, nil
}

// module compiles wgsl and records the module in res.
func module(res *shader.Resources, label, wgsl string) (hal.ShaderModule, error) {
	m, err := shader.Module(res.Device, label, wgsl)
	if err != nil {
		return nil, err
	}
	res.Modules = append(res.Modules, m)
	return m, nil
}

// buffer creates a long-lived buffer recorded in res.
func buffer(res *shader.Resources, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	b, err := res.Device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create buffer: %w", label, err)
	}
	res.Buffers = append(res.Buffers, b)
	return b, nil
}

// overlayPipeline describes a color-only pipeline drawn over the output.
type overlayPipeline struct {
	label    string
	layout   hal.PipelineLayout
	module   hal.ShaderModule
	topology gputypes.PrimitiveTopology
	blend    bool
}

// pipelineCache builds one render pipeline per output format on first use.
// The output format is only known once a frame is built.
type pipelineCache struct {
	res      *shader.Resources
	desc     overlayPipeline
	byFormat map[gputypes.TextureFormat]hal.RenderPipeline
}

func (c *pipelineCache) get(format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if p, ok := c.byFormat[format]; ok {
		return p, nil
	}

	target := gputypes.ColorTargetState{
		Format:    format,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	if c.desc.blend {
		blend := gputypes.BlendStateAlpha()
		target.Blend = &blend
	}
	p, err := c.res.Device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  c.desc.label,
		Layout: c.desc.layout,
		Vertex: hal.VertexState{
			Module:     c.desc.module,
			EntryPoint: "vs_main",
		},
		Primitive: gputypes.PrimitiveState{
			Topology: c.desc.topology,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &hal.FragmentState{
			Module:     c.desc.module,
			EntryPoint: "fs_main",
			Targets:    []gputypes.ColorTargetState{target},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create pipeline for %v: %w", c.desc.label, format, err)
	}
	c.res.RenderPipelines = append(c.res.RenderPipelines, p)
	if c.byFormat == nil {
		c.byFormat = make(map[gputypes.TextureFormat]hal.RenderPipeline)
	}
	c.byFormat[format] = p
	return p, nil
}

// reset forgets cached pipelines. The objects themselves are owned by res.
func (c *pipelineCache) reset() {
	c.byFormat = nil
}

// encodeCamera packs c in the shader uniform layout. A nil camera encodes
// identity matrices at the origin.
func encodeCamera(c *rg.Camera) []byte {
	b := make([]byte, cameraSize)
	view, proj := identity, identity
	var pos [3]float32
	if c != nil {
		view, proj, pos = c.View, c.Projection, c.Position
	}
	putFloats(b[0:], view[:])
	putFloats(b[64:], proj[:])
	putFloats(b[128:], pos[:])
	binary.LittleEndian.PutUint32(b[140:], math.Float32bits(1))
	return b
}

var identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

func putFloats(dst []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func putUint32s(dst []byte, v ...uint32) {
	for i, u := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], u)
	}
}

// frameCamera returns the camera published for the frame, or nil.
func frameCamera(t *rg.Table) *rg.Camera {
	c, _ := rg.Data[rg.Camera](t, rg.CameraID)
	return c
}

// writeBuffer uploads data on the graphics queue.
func writeBuffer(f *rg.Frame, buf hal.Buffer, offset uint64, data []byte) error {
	q := f.Queues.Queue(rg.QueueGraphics)
	if q == nil {
		return rg.ErrNoDevice
	}
	return q.WriteBuffer(buf, offset, data)
}
