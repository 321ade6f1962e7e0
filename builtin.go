package rg

import "github.com/gogpu/wgpu/hal"

// Builtin resource names.
const (
	OutputName         = "rg_output"
	SceneDataName      = "scene_data"
	SceneInstancesName = "scene_instances"
	CameraName         = "rg_camera"
	PassSemaphoreName  = "rg_passSemaphore"
)

// Builtin resource keys.
var (
	OutputID         = HashString(OutputName)
	SceneDataID      = HashString(SceneDataName)
	SceneInstancesID = HashString(SceneInstancesName)
	CameraID         = HashString(CameraName)
	PassSemaphoreID  = HashString(PassSemaphoreName)
)

// Target is the texture a frame renders into.
type Target struct {
	Texture hal.Texture
	Desc    TextureDesc
}

// Builtins is the input available to injectors at the start of Build.
type Builtins struct {
	Frame     uint64
	Target    Target
	Scene     Scene // may be nil
	Semaphore *Semaphore
}

// Injector publishes resources before any pass runs Setup.
type Injector func(t *Table, b *Builtins) error

// DefaultInjectors returns the injectors for the output texture, the scene
// buffers, the camera and the pass semaphore, in that order.
func DefaultInjectors() []Injector {
	return []Injector{
		InjectOutput,
		InjectSceneBuffers,
		InjectCamera,
		InjectPassSemaphore,
	}
}

// InjectOutput publishes the target as the external texture Output.
func InjectOutput(t *Table, b *Builtins) error {
	return t.AddExternalTexture(OutputName, b.Target.Desc, b.Target.Texture)
}

// InjectSceneBuffers publishes the scene constants and instances as
// external buffers. It does nothing without a scene.
func InjectSceneBuffers(t *Table, b *Builtins) error {
	if b.Scene == nil {
		return nil
	}
	data, instances := b.Scene.DataBuffers()
	if err := t.AddExternalBuffer(SceneDataName, BufferDesc{Size: data.Size}, data); err != nil {
		return err
	}
	return t.AddExternalBuffer(SceneInstancesName, BufferDesc{Size: instances.Size}, instances)
}

// InjectCamera borrows the scene camera. It does nothing without a scene.
func InjectCamera(t *Table, b *Builtins) error {
	if b.Scene == nil {
		return nil
	}
	return t.AddData(CameraName, Borrow(b.Scene.Camera()))
}

// InjectPassSemaphore borrows the graph's completion semaphore.
func InjectPassSemaphore(t *Table, b *Builtins) error {
	return t.AddData(PassSemaphoreName, Borrow(b.Semaphore))
}
