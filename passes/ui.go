package passes

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/cvar"
	"github.com/gogpu/rg/internal/shader"
	"github.com/gogpu/rg/jobs"
)

const (
	uiVertexSize   = 32
	uiQuadVertices = 6
	uiScreenSize   = 16

	// Printable ASCII is packed into the atlas in atlasColumns columns.
	firstGlyph   = ' '
	lastGlyph    = '~'
	atlasColumns = 16

	// uiMargin is the pixel offset of the first line.
	uiMargin = 8
)

var errUISetup = errors.New("ui: execute without setup")

// AtlasFormat is the format of the overlay font atlas.
const AtlasFormat = gputypes.TextureFormatR8Unorm

// glyphCell is the fixed cell of one glyph in the atlas and on screen.
type glyphCell struct {
	w, h int
}

// uiPass draws the overlay text and a frame counter over the output.
// Glyph layout runs on the job pool between Setup and Execute.
type uiPass struct {
	overlay *Overlay
	detach  func()
	log     *slog.Logger
	res     shader.Resources
	pool    *jobs.Pool

	bgl       hal.BindGroupLayout
	pipelines pipelineCache
	screen    hal.Buffer
	atlas     hal.Texture
	atlasSize image.Point
	cell      glyphCell
	maxVerts  int

	frames uint64
	job    *layoutJob
}

// layoutJob is the glyph layout of one frame. verts and n are written by
// the job and read only after done completes.
type layoutJob struct {
	lines []string
	cell  glyphCell
	limit int

	verts []byte
	n     uint32
	done  *jobs.Future
}

func (j *layoutJob) run() error {
	j.verts, j.n = layoutText(j.lines, j.cell, j.limit)
	return nil
}

func (p *uiPass) Init(env *rg.Env) error {
	p.log = env.Log()
	p.pool = env.Jobs
	p.res = shader.Resources{Device: env.Device}

	p.maxVerts = 65536
	if env.Vars != nil {
		p.maxVerts = int(env.Vars.Uint64(cvar.RenderUIMaxVertices, 65536))
	}
	p.maxVerts -= p.maxVerts % uiQuadVertices
	if p.maxVerts < uiQuadVertices {
		p.maxVerts = uiQuadVertices
	}

	if err := p.init(env); err != nil {
		p.res.Destroy()
		return err
	}
	p.detach = p.overlay.attachLines()
	return nil
}

func (p *uiPass) init(env *rg.Env) error {
	m, err := module(&p.res, "ui", uiWGSL)
	if err != nil {
		return err
	}
	bgl, layout, err := pipelineLayout(&p.res, "ui",
		uniformLayout(0, gputypes.ShaderStageVertex),
		storageLayout(1, gputypes.ShaderStageVertex, true),
		textureLayout(2, gputypes.ShaderStageFragment, gputypes.TextureSampleTypeFloat))
	if err != nil {
		return err
	}
	p.bgl = bgl
	p.pipelines = pipelineCache{
		res: &p.res,
		desc: overlayPipeline{
			label:    "ui",
			layout:   layout,
			module:   m,
			topology: gputypes.PrimitiveTopologyTriangleList,
			blend:    true,
		},
	}

	p.screen, err = buffer(&p.res, "ui screen", uiScreenSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	img, cell := buildAtlas(basicfont.Face7x13)
	p.cell = cell
	p.atlasSize = img.Rect.Size()
	extent := hal.Extent3D{
		Width:              uint32(p.atlasSize.X),
		Height:             uint32(p.atlasSize.Y),
		DepthOrArrayLayers: 1,
	}
	p.atlas, err = env.Device.CreateTexture(&hal.TextureDescriptor{
		Label:         "ui atlas",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        AtlasFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("ui: create atlas: %w", err)
	}
	p.res.Textures = append(p.res.Textures, p.atlas)

	err = env.Queues.Queue(rg.QueueGraphics).WriteTexture(
		&hal.ImageCopyTexture{Texture: p.atlas, Aspect: gputypes.TextureAspectAll},
		img.Pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(img.Stride), RowsPerImage: extent.Height},
		&extent)
	if err != nil {
		return fmt.Errorf("ui: upload atlas: %w", err)
	}
	p.log.Debug("ui: atlas ready", "size", p.atlasSize, "cell", fmt.Sprintf("%dx%d", cell.w, cell.h))
	return nil
}

func (p *uiPass) Term() {
	if p.detach != nil {
		p.detach()
		p.detach = nil
	}
	p.res.Destroy()
	p.pipelines.reset()
	p.bgl, p.screen, p.atlas, p.job = nil, nil, nil, nil
}

func (p *uiPass) Setup(t *rg.Table) bool {
	lines := p.overlay.takeLines()
	if !t.Has(rg.OutputID) {
		return false
	}
	err := t.AddBuffer(UIVerticesName, rg.BufferDesc{
		Size:   uint64(p.maxVerts) * uiVertexSize,
		Usage:  gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		Memory: rg.MemoryUpload,
	})
	if err != nil {
		p.log.Warn("ui: publish vertices", "err", err)
		return false
	}

	p.frames++
	job := &layoutJob{
		lines: append(lines, fmt.Sprintf("frame %d", p.frames)),
		cell:  p.cell,
		limit: p.maxVerts,
	}
	if p.pool != nil {
		job.done = p.pool.Submit(job.run)
	} else {
		job.done = jobs.Completed(job.run())
	}
	p.job = job
	return true
}

func (p *uiPass) Execute(ctx context.Context, f *rg.Frame) error {
	job := p.job
	p.job = nil
	if job == nil {
		return errUISetup
	}
	if err := job.done.Wait(ctx); err != nil {
		return fmt.Errorf("ui: layout: %w", err)
	}

	verts, ok := f.Table.Buffer(UIVerticesID)
	if !ok {
		return missing(UIVerticesName)
	}
	outView, out, err := tableView(f, rg.OutputID, gputypes.TextureAspectAll, rg.OutputName)
	if err != nil {
		return err
	}
	pipeline, err := p.pipelines.get(out.Format)
	if err != nil {
		return err
	}
	atlasView, err := textureView(f, p.atlas, AtlasFormat, gputypes.TextureAspectAll, "ui atlas")
	if err != nil {
		return err
	}

	if job.n > 0 {
		if err := writeBuffer(f, verts.Buffer, verts.Offset, job.verts); err != nil {
			return fmt.Errorf("ui: upload vertices: %w", err)
		}
	}
	screen := make([]byte, uiScreenSize)
	putFloats(screen, []float32{
		float32(out.Width), float32(out.Height),
		float32(p.atlasSize.X), float32(p.atlasSize.Y),
	})
	if err := writeBuffer(f, p.screen, 0, screen); err != nil {
		return fmt.Errorf("ui: upload screen: %w", err)
	}

	bg, err := bindGroup(f, p.bgl, "ui",
		bufferEntry(0, rg.BufferRef{Buffer: p.screen, Size: uiScreenSize}),
		bufferEntry(1, verts),
		viewEntry(2, atlasView))
	if err != nil {
		return err
	}

	return submit(ctx, f, rg.QueueGraphics, "ui", true, func(enc hal.CommandEncoder) error {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "ui",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    outView,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		if job.n > 0 {
			rp.SetPipeline(pipeline)
			rp.SetBindGroup(0, bg, nil)
			rp.Draw(job.n, 1, 0, 0)
		}
		rp.End()
		return nil
	})
}

// buildAtlas renders printable ASCII from face into a coverage atlas of
// fixed cells.
func buildAtlas(face font.Face) (*image.Alpha, glyphCell) {
	m := face.Metrics()
	cell := glyphCell{
		w: font.MeasureString(face, "M").Ceil(),
		h: m.Height.Ceil(),
	}
	count := int(lastGlyph - firstGlyph + 1)
	rows := (count + atlasColumns - 1) / atlasColumns
	img := image.NewAlpha(image.Rect(0, 0, atlasColumns*cell.w, rows*cell.h))

	d := &font.Drawer{Dst: img, Src: image.Opaque, Face: face}
	for r := rune(firstGlyph); r <= lastGlyph; r++ {
		i := int(r - firstGlyph)
		x, y := (i%atlasColumns)*cell.w, (i/atlasColumns)*cell.h
		d.Dot = fixed.P(x, y+m.Ascent.Ceil())
		d.DrawString(string(r))
	}
	return img, cell
}

// atlasOrigin returns the top-left texel of r's cell.
func atlasOrigin(r rune, cell glyphCell) (int, int) {
	i := int(r - firstGlyph)
	return (i % atlasColumns) * cell.w, (i / atlasColumns) * cell.h
}

// layoutText lays lines out top to bottom as glyph quads. Spaces and
// runes missing from the atlas advance the pen without emitting a quad.
// Output stops at limit vertices, rounded down to whole quads.
func layoutText(lines []string, cell glyphCell, limit int) ([]byte, uint32) {
	limit -= limit % uiQuadVertices
	var verts []byte
	n := 0
	for li, line := range lines {
		y := float32(uiMargin + li*(cell.h+2))
		x := float32(uiMargin)
		for _, r := range line {
			if r > firstGlyph && r <= lastGlyph {
				if n+uiQuadVertices > limit {
					return verts, uint32(n)
				}
				verts = appendQuad(verts, r, x, y, cell)
				n += uiQuadVertices
			}
			x += float32(cell.w)
		}
	}
	return verts, uint32(n)
}

var uiTextColor = [4]float32{1, 1, 1, 1}

func appendQuad(dst []byte, r rune, x, y float32, cell glyphCell) []byte {
	ax, ay := atlasOrigin(r, cell)
	u0, v0 := float32(ax), float32(ay)
	w, h := float32(cell.w), float32(cell.h)
	corners := [uiQuadVertices][4]float32{
		{x, y, u0, v0},
		{x + w, y, u0 + w, v0},
		{x + w, y + h, u0 + w, v0 + h},
		{x, y, u0, v0},
		{x + w, y + h, u0 + w, v0 + h},
		{x, y + h, u0, v0 + h},
	}
	var v [uiVertexSize]byte
	for _, c := range corners {
		putFloats(v[:], c[:])
		putFloats(v[16:], uiTextColor[:])
		dst = append(dst, v[:]...)
	}
	return dst
}
