package passes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/cvar"
	"github.com/gogpu/rg/internal/shader"
)

// Debug vertex layout: position and color, both vec4.
const (
	debugVertexSize  = 32
	debugBoxVertices = 24
)

// boxEdges lists the 12 edges of a box as pairs of corner indices. Corner
// i takes x from bit 0, y from bit 1 and z from bit 2.
var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// debugBoundsPass draws queued bounding boxes as lines over the output.
// It skips frames with nothing queued.
//
// Object boxes are drawn unless only Render.Debug_DrawLightBounds is set;
// light volumes are drawn when it is.
type debugBoundsPass struct {
	overlay *Overlay
	detach  func()
	log     *slog.Logger
	res     shader.Resources

	withObjects bool
	withLights  bool
	bgl         hal.BindGroupLayout
	pipelines   pipelineCache
	camera      hal.Buffer

	boxes []Box
}

func (p *debugBoundsPass) Init(env *rg.Env) error {
	p.log = env.Log()
	p.res = shader.Resources{Device: env.Device}
	p.withObjects = true
	if env.Vars != nil {
		p.withLights = env.Vars.Bool(cvar.RenderDebugDrawLightBounds, false)
		p.withObjects = env.Vars.Bool(cvar.RenderDebugDrawObjectBounds, false) || !p.withLights
	}

	m, err := module(&p.res, "debugbounds", debugBoundsWGSL)
	if err != nil {
		p.res.Destroy()
		return err
	}
	bgl, layout, err := pipelineLayout(&p.res, "debugbounds",
		uniformLayout(0, gputypes.ShaderStageVertex),
		storageLayout(1, gputypes.ShaderStageVertex, true))
	if err != nil {
		p.res.Destroy()
		return err
	}
	p.bgl = bgl
	p.pipelines = pipelineCache{
		res: &p.res,
		desc: overlayPipeline{
			label:    "debugbounds",
			layout:   layout,
			module:   m,
			topology: gputypes.PrimitiveTopologyLineList,
			blend:    true,
		},
	}

	p.camera, err = buffer(&p.res, "debugbounds camera", cameraSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		p.res.Destroy()
		return err
	}
	p.detach = p.overlay.attachBounds(p.withObjects, p.withLights)
	return nil
}

func (p *debugBoundsPass) Term() {
	if p.detach != nil {
		p.detach()
		p.detach = nil
	}
	p.res.Destroy()
	p.pipelines.reset()
	p.bgl, p.camera, p.boxes = nil, nil, nil
}

func (p *debugBoundsPass) Setup(t *rg.Table) bool {
	p.boxes = p.overlay.takeBounds(p.withObjects, p.withLights)
	if len(p.boxes) == 0 || !t.Has(rg.OutputID) {
		return false
	}

	err := t.AddBuffer(DebugVerticesName, rg.BufferDesc{
		Size:   uint64(len(p.boxes)) * debugBoxVertices * debugVertexSize,
		Usage:  gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		Memory: rg.MemoryUpload,
	})
	if err != nil {
		p.log.Warn("debugbounds: publish vertices", "err", err)
		return false
	}
	return true
}

func (p *debugBoundsPass) Execute(ctx context.Context, f *rg.Frame) error {
	verts, ok := f.Table.Buffer(DebugVerticesID)
	if !ok {
		return missing(DebugVerticesName)
	}
	outView, out, err := tableView(f, rg.OutputID, gputypes.TextureAspectAll, rg.OutputName)
	if err != nil {
		return err
	}
	pipeline, err := p.pipelines.get(out.Format)
	if err != nil {
		return err
	}

	if err := writeBuffer(f, verts.Buffer, verts.Offset, boxVertices(p.boxes)); err != nil {
		return fmt.Errorf("debugbounds: upload vertices: %w", err)
	}
	if err := writeBuffer(f, p.camera, 0, encodeCamera(frameCamera(f.Table))); err != nil {
		return fmt.Errorf("debugbounds: upload camera: %w", err)
	}
	bg, err := bindGroup(f, p.bgl, "debugbounds",
		bufferEntry(0, rg.BufferRef{Buffer: p.camera, Size: cameraSize}),
		bufferEntry(1, verts))
	if err != nil {
		return err
	}

	n := uint32(len(p.boxes)) * debugBoxVertices
	p.boxes = nil
	return submit(ctx, f, rg.QueueGraphics, "debugbounds", true, func(enc hal.CommandEncoder) error {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "debugbounds",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    outView,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, bg, nil)
		rp.Draw(n, 1, 0, 0)
		rp.End()
		return nil
	})
}

// boxVertices expands boxes into line-list vertices.
func boxVertices(boxes []Box) []byte {
	b := make([]byte, len(boxes)*debugBoxVertices*debugVertexSize)
	off := 0
	for _, box := range boxes {
		var corners [8][4]float32
		for i := range corners {
			for axis := 0; axis < 3; axis++ {
				if i&(1<<axis) != 0 {
					corners[i][axis] = box.Max[axis]
				} else {
					corners[i][axis] = box.Min[axis]
				}
			}
			corners[i][3] = 1
		}
		for _, e := range boxEdges {
			for _, c := range e {
				putFloats(b[off:], corners[c][:])
				putFloats(b[off+16:], box.Color[:])
				off += debugVertexSize
			}
		}
	}
	return b
}
