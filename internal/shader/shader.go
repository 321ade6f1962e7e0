// Package shader compiles the render graph's builtin WGSL shaders with naga
// and tracks the pipeline objects built from them.
package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// ToSPIRV compiles WGSL source to SPIR-V words.
func ToSPIRV(wgsl string) ([]uint32, error) {
	b, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shader: compile: %w", err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V length %d is not word aligned", len(b))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}

// Module compiles wgsl and creates a shader module on device.
func Module(device hal.Device, label, wgsl string) (hal.ShaderModule, error) {
	words, err := ToSPIRV(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create shader module: %w", label, err)
	}
	return m, nil
}

// Resources collects the objects a pass creates in Init so Term can
// release them in one call.
type Resources struct {
	Device hal.Device

	Modules          []hal.ShaderModule
	BindLayouts      []hal.BindGroupLayout
	PipelineLayouts  []hal.PipelineLayout
	RenderPipelines  []hal.RenderPipeline
	ComputePipelines []hal.ComputePipeline
	Buffers          []hal.Buffer
	Textures         []hal.Texture
}

// Destroy releases pipelines before layouts and modules.
// It is safe to call more than once.
func (r *Resources) Destroy() {
	if r.Device == nil {
		return
	}

	for _, p := range r.RenderPipelines {
		r.Device.DestroyRenderPipeline(p)
	}
	for _, p := range r.ComputePipelines {
		r.Device.DestroyComputePipeline(p)
	}
	for _, l := range r.PipelineLayouts {
		r.Device.DestroyPipelineLayout(l)
	}
	for _, l := range r.BindLayouts {
		r.Device.DestroyBindGroupLayout(l)
	}
	for _, m := range r.Modules {
		r.Device.DestroyShaderModule(m)
	}
	for _, b := range r.Buffers {
		r.Device.DestroyBuffer(b)
	}
	for _, t := range r.Textures {
		r.Device.DestroyTexture(t)
	}
	*r = Resources{}
}
