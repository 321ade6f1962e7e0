package rg

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rg/cvar"
	"github.com/gogpu/rg/jobs"
)

// createNoopDevice creates a noop device and queue released at test cleanup.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	device, queue := createNoopDevice(t)
	env := &Env{
		Device: device,
		Queues: NewQueues(queue, nil, nil),
		Jobs:   jobs.NewPool(2),
		Vars:   cvar.Defaults(),
	}
	t.Cleanup(env.Close)
	return env
}

func newTestTarget(t *testing.T, env *Env) Target {
	t.Helper()
	desc := Texture2D(320, 240, gputypes.TextureFormatBGRA8Unorm, gputypes.TextureUsageRenderAttachment)
	n, _ := desc.normalize()
	tex, err := env.Device.CreateTexture(n.halDescriptor("output"))
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return Target{Texture: tex, Desc: desc}
}

// callLog records pass lifecycle calls across passes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) filter(suffix string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if len(c) > len(suffix) && c[len(c)-len(suffix):] == suffix {
			out = append(out, c[:len(c)-len(suffix)])
		}
	}
	return out
}

// testPass is a configurable pass that records its lifecycle.
type testPass struct {
	name    string
	log     *callLog
	initErr error
	setup   func(*Table) bool
	execute func(context.Context, *Frame) error

	inits, terms, setups, executes int
}

func (p *testPass) Init(*Env) error {
	p.inits++
	p.log.add(p.name + ":init")
	return p.initErr
}

func (p *testPass) Term() {
	p.terms++
	p.log.add(p.name + ":term")
}

func (p *testPass) Setup(t *Table) bool {
	p.setups++
	p.log.add(p.name + ":setup")
	if p.setup == nil {
		return true
	}
	return p.setup(t)
}

func (p *testPass) Execute(ctx context.Context, f *Frame) error {
	p.executes++
	p.log.add(p.name + ":execute")
	if p.execute == nil {
		return nil
	}
	return p.execute(ctx, f)
}

// passSet registers test passes and keeps the created instances.
type passSet struct {
	reg       *Registry
	log       *callLog
	instances map[string]*testPass
}

func newPassSet() *passSet {
	return &passSet{reg: NewRegistry(), log: &callLog{}, instances: make(map[string]*testPass)}
}

func (s *passSet) register(t *testing.T, name string, configure func(*testPass)) {
	t.Helper()
	err := s.reg.Register(name, func() Pass {
		p := &testPass{name: name, log: s.log}
		if configure != nil {
			configure(p)
		}
		s.instances[name] = p
		return p
	})
	if err != nil {
		t.Fatalf("Register(%q): %v", name, err)
	}
}

// recordingAllocator wraps a HeapAllocator, records every request and can
// be told to fail for given names.
type recordingAllocator struct {
	*HeapAllocator
	requested []string
	fail      map[string]bool
	destroyed bool
}

var errInjected = errors.New("injected allocation failure")

func newRecordingAllocator(device hal.Device) *recordingAllocator {
	return &recordingAllocator{
		HeapAllocator: NewHeapAllocator(device, 0, 2),
		fail:          make(map[string]bool),
	}
}

func (a *recordingAllocator) AllocTexture(name string, desc TextureDesc, offset uint64) (Allocation, error) {
	a.requested = append(a.requested, name)
	if a.fail[name] {
		return Allocation{}, errInjected
	}
	return a.HeapAllocator.AllocTexture(name, desc, offset)
}

func (a *recordingAllocator) AllocBuffer(name string, desc BufferDesc, offset uint64) (Allocation, error) {
	a.requested = append(a.requested, name)
	if a.fail[name] {
		return Allocation{}, errInjected
	}
	return a.HeapAllocator.AllocBuffer(name, desc, offset)
}

func (a *recordingAllocator) Destroy() {
	a.destroyed = true
}

// testScene is a Scene with external buffers and a camera.
type testScene struct {
	data, instances BufferRef
	camera          *Camera
}

func newTestScene(t *testing.T, device hal.Device) *testScene {
	t.Helper()
	mk := func(label string, size uint64) BufferRef {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: label,
			Size:  size,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			t.Fatalf("CreateBuffer(%s): %v", label, err)
		}
		return BufferRef{Buffer: buf, Size: size}
	}
	return &testScene{
		data:      mk("scene data", 1024),
		instances: mk("scene instances", 4096),
		camera:    &Camera{Near: 0.1, Far: 100},
	}
}

func (s *testScene) DataBuffers() (BufferRef, BufferRef) { return s.data, s.instances }
func (s *testScene) Camera() *Camera                      { return s.camera }
