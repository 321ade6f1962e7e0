package passes

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/internal/shader"
)

const forwardParamSize = 16

// forwardPass shades the scene into the output. Ambient occlusion and
// tiled lights are used when their producers ran; otherwise it binds
// neutral fallbacks created in Init.
type forwardPass struct {
	log *slog.Logger
	res shader.Resources

	bgl       hal.BindGroupLayout
	pipelines pipelineCache

	camera hal.Buffer
	params hal.Buffer

	whiteAO   hal.Texture
	noLights  hal.Buffer
	noIndices hal.Buffer
}

func (p *forwardPass) Init(env *rg.Env) error {
	p.log = env.Log()
	p.res = shader.Resources{Device: env.Device}
	if err := p.init(env); err != nil {
		p.res.Destroy()
		return err
	}
	return nil
}

func (p *forwardPass) init(env *rg.Env) error {
	m, err := module(&p.res, "forward", forwardWGSL)
	if err != nil {
		return err
	}
	vf := gputypes.ShaderStagesVertexFragment
	bgl, layout, err := pipelineLayout(&p.res, "forward",
		uniformLayout(0, vf),
		storageLayout(1, gputypes.ShaderStageVertex, true),
		textureLayout(2, gputypes.ShaderStageFragment, gputypes.TextureSampleTypeUnfilterableFloat),
		storageLayout(3, gputypes.ShaderStageFragment, true),
		storageLayout(4, gputypes.ShaderStageFragment, true),
		uniformLayout(5, gputypes.ShaderStageFragment))
	if err != nil {
		return err
	}
	p.bgl = bgl
	p.pipelines = pipelineCache{
		res: &p.res,
		desc: overlayPipeline{
			label:    "forward",
			layout:   layout,
			module:   m,
			topology: gputypes.PrimitiveTopologyTriangleList,
		},
	}

	uniform := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	if p.camera, err = buffer(&p.res, "forward camera", cameraSize, uniform); err != nil {
		return err
	}
	if p.params, err = buffer(&p.res, "forward params", forwardParamSize, uniform); err != nil {
		return err
	}
	storage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	if p.noLights, err = buffer(&p.res, "forward no lights", LightStride, storage); err != nil {
		return err
	}
	if p.noIndices, err = buffer(&p.res, "forward no light indices", 16, storage); err != nil {
		return err
	}

	p.whiteAO, err = env.Device.CreateTexture(&hal.TextureDescriptor{
		Label:         "forward white ao",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        AOFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("forward: create fallback ao: %w", err)
	}
	p.res.Textures = append(p.res.Textures, p.whiteAO)

	one := make([]byte, 4)
	binary.LittleEndian.PutUint32(one, math.Float32bits(1))
	err = env.Queues.Queue(rg.QueueGraphics).WriteTexture(
		&hal.ImageCopyTexture{Texture: p.whiteAO, Aspect: gputypes.TextureAspectAll},
		one,
		&hal.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1})
	if err != nil {
		return fmt.Errorf("forward: upload fallback ao: %w", err)
	}
	return nil
}

func (p *forwardPass) Term() {
	p.res.Destroy()
	p.pipelines.reset()
	p.bgl, p.camera, p.params = nil, nil, nil
	p.whiteAO, p.noLights, p.noIndices = nil, nil, nil
}

func (p *forwardPass) Setup(t *rg.Table) bool {
	return t.Has(rg.OutputID)
}

func (p *forwardPass) Execute(ctx context.Context, f *rg.Frame) error {
	outView, out, err := tableView(f, rg.OutputID, gputypes.TextureAspectAll, rg.OutputName)
	if err != nil {
		return err
	}
	pipeline, err := p.pipelines.get(out.Format)
	if err != nil {
		return err
	}

	var useAO, useLights uint32
	aoView, _, err := tableView(f, AOBufferID, gputypes.TextureAspectAll, AOBufferName)
	if err == nil {
		useAO = 1
	} else {
		p.log.Debug("forward: ambient occlusion unavailable", "frame", f.Index)
		aoView, err = textureView(f, p.whiteAO, AOFormat, gputypes.TextureAspectAll, "forward white ao")
		if err != nil {
			return err
		}
	}

	lights := rg.BufferRef{Buffer: p.noLights, Size: LightStride}
	indices := rg.BufferRef{Buffer: p.noIndices, Size: 16}
	if l, ok := f.Table.Buffer(rg.SceneDataID); ok && l.Buffer != nil {
		if idx, ok := f.Table.Buffer(VisibleLightIndicesID); ok {
			lights, indices, useLights = l, idx, 1
		}
	}

	inst, count := sceneInstances(f.Table)
	if count == 0 {
		inst = rg.BufferRef{Buffer: p.noLights, Size: LightStride}
	}

	tilesX, _ := tileGrid(out.Width, out.Height)
	params := make([]byte, forwardParamSize)
	putUint32s(params, tilesX, MaxLightsPerTile, useAO, useLights)
	if err := writeBuffer(f, p.params, 0, params); err != nil {
		return fmt.Errorf("forward: upload params: %w", err)
	}
	if err := writeBuffer(f, p.camera, 0, encodeCamera(frameCamera(f.Table))); err != nil {
		return fmt.Errorf("forward: upload camera: %w", err)
	}

	bg, err := bindGroup(f, p.bgl, "forward",
		bufferEntry(0, rg.BufferRef{Buffer: p.camera, Size: cameraSize}),
		bufferEntry(1, inst),
		viewEntry(2, aoView),
		bufferEntry(3, lights),
		bufferEntry(4, indices),
		bufferEntry(5, rg.BufferRef{Buffer: p.params, Size: forwardParamSize}))
	if err != nil {
		return err
	}

	return submit(ctx, f, rg.QueueGraphics, "forward", true, func(enc hal.CommandEncoder) error {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "forward",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       outView,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0.02, G: 0.02, B: 0.03, A: 1},
			}},
		})
		if count > 0 {
			rp.SetPipeline(pipeline)
			rp.SetBindGroup(0, bg, nil)
			rp.Draw(6, count, 0, 0)
		}
		rp.End()
		return nil
	})
}
