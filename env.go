package rg

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg/cvar"
	"github.com/gogpu/rg/jobs"
)

// Env is what a graph and its passes share: the device, its queues, the
// job pool, the console variables and the logger.
type Env struct {
	Device hal.Device
	Queues *Queues
	Jobs   *jobs.Pool
	Vars   *cvar.Set

	// Logger overrides the package logger when non-nil.
	Logger *slog.Logger

	// SurfaceFormat is the preferred output format, or undefined when
	// rendering headless.
	SurfaceFormat gputypes.TextureFormat
}

// NewEnv returns an environment for device and queue with default console
// variables and a job pool sized to the machine.
func NewEnv(device hal.Device, queue hal.Queue) *Env {
	return &Env{
		Device: device,
		Queues: NewQueues(queue, nil, nil),
		Jobs:   jobs.NewPool(0),
		Vars:   cvar.Defaults(),
	}
}

// EnvFromProvider builds an environment from a gpucontext.DeviceProvider.
// The provider's device and queue must be backend hal objects.
func EnvFromProvider(p gpucontext.DeviceProvider) (*Env, error) {
	if p == nil {
		return nil, ErrNoDevice
	}
	device, ok := p.Device().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider device is %T, want hal.Device", ErrNoDevice, p.Device())
	}
	queue, ok := p.Queue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider queue is %T, want hal.Queue", ErrNoDevice, p.Queue())
	}

	env := NewEnv(device, queue)
	env.SurfaceFormat = p.SurfaceFormat()
	env.log().Info("rg: environment from provider",
		"adapter", p.AdapterInfo().Name,
		"format", env.SurfaceFormat)
	return env, nil
}

// Close releases the job pool.
func (e *Env) Close() {
	if e.Jobs != nil {
		e.Jobs.Close()
	}
}

func (e *Env) log() *slog.Logger {
	if e != nil && e.Logger != nil {
		return e.Logger
	}
	return Logger()
}

// Log returns the environment's logger.
func (e *Env) Log() *slog.Logger {
	return e.log()
}

func (e *Env) validate() error {
	if e == nil || e.Device == nil || e.Queues == nil || e.Queues.Queue(QueueGraphics) == nil {
		return ErrNoDevice
	}
	return nil
}

// Camera is the view a frame is rendered from.
type Camera struct {
	View       [16]float32
	Projection [16]float32
	Position   [3]float32
	Near, Far  float32
}

// Scene is the collaborator that owns per-frame scene data.
type Scene interface {
	// DataBuffers returns the scene constants and the instance array.
	DataBuffers() (data, instances BufferRef)

	// Camera returns the active camera. The graph borrows it weakly.
	Camera() *Camera
}
