package passes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/internal/shader"
)

// Depth prepass formats.
const (
	DepthFormat  = gputypes.TextureFormatDepth32Float
	NormalFormat = gputypes.TextureFormatRGBA16Float
)

// depthPass writes depth and normals for every scene instance. It always
// runs and publishes DepthBuffer and NormalBuffer at the output size.
type depthPass struct {
	log *slog.Logger
	res shader.Resources

	bgl      hal.BindGroupLayout
	pipeline hal.RenderPipeline
	camera   hal.Buffer
}

func (p *depthPass) Init(env *rg.Env) error {
	p.log = env.Log()
	p.res = shader.Resources{Device: env.Device}

	m, err := module(&p.res, "depth", depthWGSL)
	if err != nil {
		p.res.Destroy()
		return err
	}
	bgl, layout, err := pipelineLayout(&p.res, "depth",
		uniformLayout(0, gputypes.ShaderStageVertex),
		storageLayout(1, gputypes.ShaderStageVertex, true))
	if err != nil {
		p.res.Destroy()
		return err
	}
	p.bgl = bgl

	p.pipeline, err = env.Device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "depth",
		Layout: layout,
		Vertex: hal.VertexState{Module: m, EntryPoint: "vs_main"},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeBack,
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Fragment: &hal.FragmentState{
			Module:     m,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    NormalFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		p.res.Destroy()
		return fmt.Errorf("depth: create pipeline: %w", err)
	}
	p.res.RenderPipelines = append(p.res.RenderPipelines, p.pipeline)

	p.camera, err = buffer(&p.res, "depth camera", cameraSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		p.res.Destroy()
		return err
	}
	return nil
}

func (p *depthPass) Term() {
	p.res.Destroy()
	p.bgl, p.pipeline, p.camera = nil, nil, nil
}

func (p *depthPass) Setup(t *rg.Table) bool {
	out, ok := t.TextureDesc(rg.OutputID)
	if !ok {
		return false
	}

	usage := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	if err := t.AddTexture(DepthBufferName, rg.Texture2D(out.Width, out.Height, DepthFormat, usage), slotDepth); err != nil {
		p.log.Warn("depth: publish depth buffer", "err", err)
		return false
	}
	if err := t.AddTexture(NormalBufferName, rg.Texture2D(out.Width, out.Height, NormalFormat, usage), slotNormal); err != nil {
		p.log.Warn("depth: publish normal buffer", "err", err)
		return false
	}
	return true
}

func (p *depthPass) Execute(ctx context.Context, f *rg.Frame) error {
	depthView, _, err := tableView(f, DepthBufferID, gputypes.TextureAspectDepthOnly, DepthBufferName)
	if err != nil {
		return err
	}
	normalView, _, err := tableView(f, NormalBufferID, gputypes.TextureAspectAll, NormalBufferName)
	if err != nil {
		return err
	}

	var (
		bg    hal.BindGroup
		count uint32
	)
	if inst, n := sceneInstances(f.Table); n > 0 {
		if err := writeBuffer(f, p.camera, 0, encodeCamera(frameCamera(f.Table))); err != nil {
			return fmt.Errorf("depth: upload camera: %w", err)
		}
		bg, err = bindGroup(f, p.bgl, "depth",
			bufferEntry(0, rg.BufferRef{Buffer: p.camera, Size: cameraSize}),
			bufferEntry(1, inst))
		if err != nil {
			return err
		}
		count = n
	}

	return submit(ctx, f, rg.QueueGraphics, "depth", false, func(enc hal.CommandEncoder) error {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "depth",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       normalView,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{},
			}},
			DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
				View:            depthView,
				DepthLoadOp:     gputypes.LoadOpClear,
				DepthStoreOp:    gputypes.StoreOpStore,
				DepthClearValue: 1,
			},
		})
		if count > 0 {
			rp.SetPipeline(p.pipeline)
			rp.SetBindGroup(0, bg, nil)
			rp.Draw(6, count, 0, 0)
		}
		rp.End()
		return nil
	})
}

// sceneInstances returns the instance buffer and the number of instances
// it holds. n is zero without a scene.
func sceneInstances(t *rg.Table) (rg.BufferRef, uint32) {
	ref, ok := t.Buffer(rg.SceneInstancesID)
	if !ok || ref.Buffer == nil {
		return rg.BufferRef{}, 0
	}
	r, _ := t.Lookup(rg.SceneInstancesID)
	return ref, uint32(r.BufferDesc.Size / InstanceStride)
}
