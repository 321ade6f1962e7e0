package passes

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/internal/shader"
)

const (
	lightCullWorkgroup = 64
	lightCullParamSize = 32
)

// lightCullPass bins the scene lights into screen tiles on the compute
// queue. Each tile of VisibleLightIndices holds a count followed by up to
// MaxLightsPerTile light indices.
type lightCullPass struct {
	log *slog.Logger
	res shader.Resources

	bgl      hal.BindGroupLayout
	pipeline hal.ComputePipeline
	params   hal.Buffer
}

// tileGrid returns the number of light tiles covering a w by h target.
func tileGrid(w, h uint32) (x, y uint32) {
	return (w + TileSize - 1) / TileSize, (h + TileSize - 1) / TileSize
}

// lightIndexSize is the byte size of the index buffer for tiles tiles.
func lightIndexSize(tiles uint32) uint64 {
	return uint64(tiles) * (MaxLightsPerTile + 1) * 4
}

func (p *lightCullPass) Init(env *rg.Env) error {
	p.log = env.Log()
	p.res = shader.Resources{Device: env.Device}

	m, err := module(&p.res, "lightcull", lightCullWGSL)
	if err != nil {
		p.res.Destroy()
		return err
	}
	bgl, layout, err := pipelineLayout(&p.res, "lightcull",
		uniformLayout(0, gputypes.ShaderStageCompute),
		storageLayout(1, gputypes.ShaderStageCompute, true),
		storageLayout(2, gputypes.ShaderStageCompute, false))
	if err != nil {
		p.res.Destroy()
		return err
	}
	p.bgl = bgl

	p.pipeline, err = env.Device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "lightcull",
		Layout:  layout,
		Compute: hal.ComputeState{Module: m, EntryPoint: "main"},
	})
	if err != nil {
		p.res.Destroy()
		return fmt.Errorf("lightcull: create pipeline: %w", err)
	}
	p.res.ComputePipelines = append(p.res.ComputePipelines, p.pipeline)

	p.params, err = buffer(&p.res, "lightcull params", lightCullParamSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		p.res.Destroy()
		return err
	}
	return nil
}

func (p *lightCullPass) Term() {
	p.res.Destroy()
	p.bgl, p.pipeline, p.params = nil, nil, nil
}

func (p *lightCullPass) Setup(t *rg.Table) bool {
	if !t.Has(rg.SceneDataID) {
		return false
	}
	out, ok := t.TextureDesc(rg.OutputID)
	if !ok {
		return false
	}

	x, y := tileGrid(out.Width, out.Height)
	err := t.AddBuffer(VisibleLightIndicesName, rg.BufferDesc{
		Size:  lightIndexSize(x * y),
		Usage: gputypes.BufferUsageStorage,
	})
	if err != nil {
		p.log.Warn("lightcull: publish light indices", "err", err)
		return false
	}
	return true
}

func (p *lightCullPass) Execute(ctx context.Context, f *rg.Frame) error {
	lights, ok := f.Table.Buffer(rg.SceneDataID)
	if !ok || lights.Buffer == nil {
		return missing(rg.SceneDataName)
	}
	indices, ok := f.Table.Buffer(VisibleLightIndicesID)
	if !ok {
		return missing(VisibleLightIndicesName)
	}
	out, ok := f.Table.TextureDesc(rg.OutputID)
	if !ok {
		return missing(rg.OutputName)
	}

	r, _ := f.Table.Lookup(rg.SceneDataID)
	count := uint32(r.BufferDesc.Size / LightStride)
	x, y := tileGrid(out.Width, out.Height)

	params := make([]byte, lightCullParamSize)
	putUint32s(params, x, y, count, MaxLightsPerTile)
	putFloats(params[16:], []float32{TileSize, float32(out.Width), float32(out.Height)})
	if err := writeBuffer(f, p.params, 0, params); err != nil {
		return fmt.Errorf("lightcull: upload params: %w", err)
	}

	bg, err := bindGroup(f, p.bgl, "lightcull",
		bufferEntry(0, rg.BufferRef{Buffer: p.params, Size: lightCullParamSize}),
		bufferEntry(1, lights),
		bufferEntry(2, indices))
	if err != nil {
		return err
	}

	groups := uint32(math.Ceil(float64(x*y) / lightCullWorkgroup))
	return submit(ctx, f, rg.QueueCompute, "lightcull", true, func(enc hal.CommandEncoder) error {
		cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "lightcull"})
		cp.SetPipeline(p.pipeline)
		cp.SetBindGroup(0, bg, nil)
		cp.Dispatch(groups, 1, 1)
		cp.End()
		return nil
	})
}
