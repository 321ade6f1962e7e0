package shader

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

const spirvMagic = 0x07230203

const computeWGSL = `@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    var x: u32 = id.x * 2u;
}`

func createNoopDevice(t *testing.T) (hal.Device, func()) {
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
	return openDev.Device, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

func TestToSPIRV(t *testing.T) {
	words, err := ToSPIRV(computeWGSL)
	if err != nil {
		t.Fatalf("ToSPIRV: %v", err)
	}
	if len(words) == 0 {
		t.Fatal("ToSPIRV returned no words")
	}
	if words[0] != spirvMagic {
		t.Errorf("magic = %#x, want %#x", words[0], spirvMagic)
	}
}

func TestToSPIRV_Invalid(t *testing.T) {
	if _, err := ToSPIRV("fn main( {"); err == nil {
		t.Error("ToSPIRV on invalid source: expected error")
	}
}

func TestModule(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	m, err := Module(device, "test", computeWGSL)
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if m == nil {
		t.Fatal("Module returned nil")
	}

	r := Resources{Device: device, Modules: []hal.ShaderModule{m}}
	r.Destroy()
	if r.Device != nil || r.Modules != nil {
		t.Error("Destroy did not clear resources")
	}
	r.Destroy()
}
