// Command rgdemo renders frames of the default render graph headless on the
// noop backend and reports which passes ran and how the transient heap was
// used.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/graphdesc"
	"github.com/gogpu/rg/passes"
)

func main() {
	var (
		config  = flag.String("config", "", "console variables (TOML)")
		graph   = flag.String("graph", "", "graph description (HCL); default graph when empty")
		frames  = flag.Int("frames", 3, "frames to render")
		width   = flag.Int("width", 1280, "output width")
		height  = flag.Int("height", 720, "output height")
		lights  = flag.Int("lights", 32, "scene lights")
		objects = flag.Int("objects", 64, "scene instances")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	rg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, options{
		config:  *config,
		graph:   *graph,
		frames:  *frames,
		width:   uint32(*width),
		height:  uint32(*height),
		lights:  *lights,
		objects: *objects,
	}); err != nil {
		log.Fatalf("rgdemo: %v", err)
	}
}

type options struct {
	config, graph   string
	frames          int
	width, height   uint32
	lights, objects int
}

func run(ctx context.Context, o options) error {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return err
	}
	defer instance.Destroy()
	open, err := instance.EnumerateAdapters(nil)[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		return err
	}
	defer open.Device.Destroy()

	env := rg.NewEnv(open.Device, open.Queue)
	defer env.Close()
	if o.config != "" {
		if err := env.Vars.LoadFile(o.config); err != nil {
			return err
		}
	}

	reg := rg.NewRegistry()
	ov := passes.NewOverlay()
	if err := passes.Register(reg, ov); err != nil {
		return err
	}

	var g *rg.Graph
	if o.graph != "" {
		desc, err := graphdesc.ParseFile(o.graph, env.Vars)
		if err != nil {
			return err
		}
		g, err = rg.NewFromDescription(reg, env, desc)
		if err != nil {
			return err
		}
	} else {
		g, err = rg.NewDefault(reg, env)
		if err != nil {
			return err
		}
	}
	defer g.Destroy()

	desc := rg.Texture2D(o.width, o.height, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	tex, err := open.Device.CreateTexture(&hal.TextureDescriptor{
		Label:         "rgdemo output",
		Size:          hal.Extent3D{Width: o.width, Height: o.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return err
	}
	defer open.Device.DestroyTexture(tex)
	target := rg.Target{Texture: tex, Desc: desc}

	sc, err := newScene(open.Device, open.Queue, o)
	if err != nil {
		return err
	}
	defer sc.destroy(open.Device)

	for i := 0; i < o.frames; i++ {
		ov.Printf("lights %d  objects %d", o.lights, o.objects)
		ov.QueueBounds(passes.Box{
			Min:   [3]float32{-1, -1, -1},
			Max:   [3]float32{1, 1, 1},
			Color: [4]float32{0, 1, 0, 1},
		})

		if err := g.Build(ctx, target, sc); err != nil {
			return err
		}
		if err := g.Execute(ctx); err != nil {
			return err
		}

		attrs := []any{"frame", g.Frame(), "passes", g.ActivePasses(), "pending", g.PendingFrames()}
		if st, ok := g.HeapStats(); ok {
			attrs = append(attrs, "heap", st.String())
		}
		rg.Logger().Info("rgdemo: frame done", attrs...)
	}
	return open.Device.WaitIdle()
}

// scene is a static grid of quads lit by lights on a circle.
type scene struct {
	data, instances rg.BufferRef
	camera          rg.Camera
}

func newScene(device hal.Device, queue hal.Queue, o options) (*scene, error) {
	s := &scene{camera: rg.Camera{Near: 0.1, Far: 100}}
	s.camera.View = identity()
	s.camera.Projection = identity()

	mk := func(label string, data []byte) (rg.BufferRef, error) {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: label,
			Size:  uint64(len(data)),
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return rg.BufferRef{}, err
		}
		if err := queue.WriteBuffer(buf, 0, data); err != nil {
			device.DestroyBuffer(buf)
			return rg.BufferRef{}, err
		}
		return rg.BufferRef{Buffer: buf, Size: uint64(len(data))}, nil
	}

	var err error
	if s.data, err = mk("rgdemo lights", lightData(o)); err != nil {
		return nil, err
	}
	if s.instances, err = mk("rgdemo instances", instanceData(o.objects)); err != nil {
		device.DestroyBuffer(s.data.Buffer)
		return nil, err
	}
	return s, nil
}

func (s *scene) DataBuffers() (rg.BufferRef, rg.BufferRef) { return s.data, s.instances }
func (s *scene) Camera() *rg.Camera                         { return &s.camera }

func (s *scene) destroy(device hal.Device) {
	device.DestroyBuffer(s.data.Buffer)
	device.DestroyBuffer(s.instances.Buffer)
}

func identity() [16]float32 {
	return [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// lightData places lights on a circle around the screen center.
func lightData(o options) []byte {
	n := max(o.lights, 1)
	b := make([]byte, n*passes.LightStride)
	cx, cy := float64(o.width)/2, float64(o.height)/2
	r := math.Min(cx, cy) * 0.6
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		v := []float32{
			float32(cx + r*math.Cos(a)), float32(cy + r*math.Sin(a)), 1, 96,
			float32(0.5 + 0.5*math.Cos(a)), float32(0.5 + 0.5*math.Sin(a)), 0.8, 1,
		}
		putFloats(b[i*passes.LightStride:], v)
	}
	return b
}

// instanceData lays quads out on a square grid in clip space.
func instanceData(count int) []byte {
	n := max(count, 1)
	side := int(math.Ceil(math.Sqrt(float64(n))))
	scale := float32(0.8 / float64(side))
	b := make([]byte, n*passes.InstanceStride)
	for i := 0; i < n; i++ {
		m := identity()
		m[0], m[5] = scale, scale
		m[12] = -1 + (2*float32(i%side)+1)/float32(side)
		m[13] = -1 + (2*float32(i/side)+1)/float32(side)
		putFloats(b[i*passes.InstanceStride:], m[:])
	}
	return b
}

func putFloats(dst []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}
