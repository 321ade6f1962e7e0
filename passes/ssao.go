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

// AOFormat is the format of AOBuffer.
const AOFormat = gputypes.TextureFormatR32Float

const ssaoWorkgroup = 8

// ssaoPass computes screen-space ambient occlusion from the depth prepass.
// It runs on the compute queue and skips itself when the prepass did not
// publish its targets.
type ssaoPass struct {
	log *slog.Logger
	res shader.Resources

	bgl      hal.BindGroupLayout
	pipeline hal.ComputePipeline
}

func (p *ssaoPass) Init(env *rg.Env) error {
	p.log = env.Log()
	p.res = shader.Resources{Device: env.Device}

	m, err := module(&p.res, "ssao", ssaoWGSL)
	if err != nil {
		p.res.Destroy()
		return err
	}
	bgl, layout, err := pipelineLayout(&p.res, "ssao",
		textureLayout(0, gputypes.ShaderStageCompute, gputypes.TextureSampleTypeDepth),
		textureLayout(1, gputypes.ShaderStageCompute, gputypes.TextureSampleTypeUnfilterableFloat),
		gputypes.BindGroupLayoutEntry{
			Binding:    2,
			Visibility: gputypes.ShaderStageCompute,
			StorageTexture: &gputypes.StorageTextureBindingLayout{
				Access:        gputypes.StorageTextureAccessWriteOnly,
				Format:        AOFormat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	if err != nil {
		p.res.Destroy()
		return err
	}
	p.bgl = bgl

	p.pipeline, err = env.Device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "ssao",
		Layout:  layout,
		Compute: hal.ComputeState{Module: m, EntryPoint: "main"},
	})
	if err != nil {
		p.res.Destroy()
		return fmt.Errorf("ssao: create pipeline: %w", err)
	}
	p.res.ComputePipelines = append(p.res.ComputePipelines, p.pipeline)
	return nil
}

func (p *ssaoPass) Term() {
	p.res.Destroy()
	p.bgl, p.pipeline = nil, nil
}

func (p *ssaoPass) Setup(t *rg.Table) bool {
	if !t.Has(DepthBufferID) || !t.Has(NormalBufferID) {
		return false
	}
	depth, ok := t.TextureDesc(DepthBufferID)
	if !ok {
		return false
	}

	usage := gputypes.TextureUsageStorageBinding | gputypes.TextureUsageTextureBinding
	if err := t.AddTexture(AOBufferName, rg.Texture2D(depth.Width, depth.Height, AOFormat, usage), slotAO); err != nil {
		p.log.Warn("ssao: publish ao buffer", "err", err)
		return false
	}
	return true
}

func (p *ssaoPass) Execute(ctx context.Context, f *rg.Frame) error {
	depthView, _, err := tableView(f, DepthBufferID, gputypes.TextureAspectDepthOnly, DepthBufferName)
	if err != nil {
		return err
	}
	normalView, _, err := tableView(f, NormalBufferID, gputypes.TextureAspectAll, NormalBufferName)
	if err != nil {
		return err
	}
	aoView, ao, err := tableView(f, AOBufferID, gputypes.TextureAspectAll, AOBufferName)
	if err != nil {
		return err
	}

	bg, err := bindGroup(f, p.bgl, "ssao",
		viewEntry(0, depthView),
		viewEntry(1, normalView),
		viewEntry(2, aoView))
	if err != nil {
		return err
	}

	x := (ao.Width + ssaoWorkgroup - 1) / ssaoWorkgroup
	y := (ao.Height + ssaoWorkgroup - 1) / ssaoWorkgroup
	return submit(ctx, f, rg.QueueCompute, "ssao", true, func(enc hal.CommandEncoder) error {
		cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "ssao"})
		cp.SetPipeline(p.pipeline)
		cp.SetBindGroup(0, bg, nil)
		cp.Dispatch(x, y, 1)
		cp.End()
		return nil
	})
}
