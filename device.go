package cj

import (
	"fmt"
	"image"
	"sync"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Extent is a render area size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// DeviceConfig carries the settings a Device needs at Init time.
type DeviceConfig struct {
	// AppName is reported to the graphics API for tooling.
	AppName string

	// DeviceIndex forces selection of a specific physical device.
	// Negative means "pick the best one".
	DeviceIndex int

	// EnableValidation turns on API validation layers; diagnostics are
	// forwarded to the package logger.
	EnableValidation bool

	// ShaderDir is where the backend loads its compiled shaders from.
	// Empty means the backend default ("shaders").
	ShaderDir string
}

// TextureDesc describes a texture to create. Pixels, when non-nil, is
// uploaded as the initial contents; the backend converts it to its native
// format. Decoding image files is the caller's business.
type TextureDesc struct {
	Width  uint32
	Height uint32
	Pixels image.Image
	// RenderTarget requests attachment usage in addition to sampling.
	RenderTarget bool
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Size int
}

// SamplerDesc describes a sampler to create.
type SamplerDesc struct {
	Linear bool
	Repeat bool
}

// Resource is the payload a Device hands back for a created GPU object.
// DescriptorSlot returns the object's slot in the device's bindless table;
// slot 0 is reserved and never assigned to a live resource.
type Resource interface {
	DescriptorSlot() uint32
	Destroy()
}

// Texture, Buffer and Sampler are the kind-specific resource payloads.
type Texture interface{ Resource }
type Buffer interface{ Resource }
type Sampler interface{ Resource }

// Recorder is an opaque per-frame command target produced by Surface.Begin.
// Pipelines record into it; the core never inspects it.
type Recorder interface{}

// ColorPush is the per-draw block for a color fill node.
type ColorPush struct {
	UVRect mgl32.Vec4
	Color  mgl32.Vec4
}

// TexturedPush is the per-draw block for a textured quad node.
type TexturedPush struct {
	UVRect mgl32.Vec4
}

// BlurPush is the per-pass block for a blur node.
type BlurPush struct {
	TexelSize mgl32.Vec2
	Direction mgl32.Vec2
	Intensity float32
	TimeMS    float32
}

// ColorPipeline is a color node's own pipeline plus quad vertex state.
type ColorPipeline interface {
	Record(rec Recorder, push ColorPush) error
	Destroy()
}

// TexturedPipeline is the engine-wide shared pipeline for textured draws.
// Nodes do not own one each; they own a TexturedBinding against it.
type TexturedPipeline interface {
	NewBinding(slot uint32) (TexturedBinding, error)
	Destroy()
}

// TexturedBinding is one node's descriptor state over the shared textured
// pipeline, pointed at a descriptor slot.
type TexturedBinding interface {
	Record(rec Recorder, push TexturedPush) error
	// UpdateSlot repoints the binding at another descriptor slot.
	UpdateSlot(slot uint32) error
	Destroy()
}

// BlurPipeline is a blur node's own pipeline plus its off-screen
// intermediate target.
type BlurPipeline interface {
	// EnsureTarget makes the intermediate target exist at the given extent,
	// recreating it when the extent changed since the last call.
	EnsureTarget(extent Extent) error
	Record(rec Recorder, push BlurPush, sourceSlot uint32) error
	Destroy()
}

// Surface is the per-window presentation object: swapchain, framebuffers
// and per-frame synchronization live behind it.
type Surface interface {
	// Begin waits for the in-flight fence, acquires the next image and
	// returns a recording target. Returns ErrOutOfDate (possibly wrapped)
	// when the swapchain no longer matches the surface.
	Begin() (Recorder, error)

	// Present submits the recording and queues the image for presentation.
	Present(rec Recorder) error

	// Discard abandons a begun frame without submitting its recording,
	// leaving the surface ready for the next Begin.
	Discard(rec Recorder)

	// Recreate rebuilds the swapchain after a resize or out-of-date result.
	Recreate() error

	// Resize asks the platform layer for a new window size; the resulting
	// native resize event reaches the EventSink.
	Resize(width, height int)

	Extent() Extent
	Minimized() bool
	ShouldClose() bool

	// SetEventSink registers the receiver for native window events.
	SetEventSink(sink EventSink)

	Position() (x, y int)
	SetPosition(x, y int)
	SetTitle(title string)
	State() WindowState

	Destroy()
}

// WindowConfig describes a window to create.
type WindowConfig struct {
	Title     string
	Width     int
	Height    int
	Resizable bool
}

// Device is the facade over the low-level graphics API. The core receives
// a Device, it does not create one: backends register a factory by name and
// the engine instantiates the configured one (or an injected fake in tests).
type Device interface {
	// Init and Shutdown bracket all window and resource lifetimes and are
	// called exactly once each by the engine.
	Init(cfg DeviceConfig) error
	Shutdown()

	WaitIdle() error
	DeviceIndex() int
	BindlessCapacity() uint32

	// PollEvents pumps the native event queue, driving EventSink callbacks.
	PollEvents()

	CreateTexture(desc TextureDesc) (Texture, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)

	NewColorPipeline() (ColorPipeline, error)
	// Textured returns the shared textured pipeline, creating it on first use.
	Textured() (TexturedPipeline, error)
	NewBlurPipeline() (BlurPipeline, error)

	CreateSurface(cfg WindowConfig) (Surface, error)
}

// DeviceFactory creates a fresh Device instance.
type DeviceFactory func() Device

var (
	devicesMu sync.RWMutex
	devices   = make(map[string]DeviceFactory)
)

// RegisterDevice registers a device backend under a name, typically from an
// init function in the backend package:
//
//	func init() {
//	    cj.RegisterDevice("vulkan", func() cj.Device { return New() })
//	}
//
// It panics on a nil factory or a duplicate name so misconfiguration is
// caught during program initialization.
func RegisterDevice(name string, factory DeviceFactory) {
	devicesMu.Lock()
	defer devicesMu.Unlock()

	if factory == nil {
		panic("cj: RegisterDevice factory is nil")
	}
	if _, dup := devices[name]; dup {
		panic("cj: RegisterDevice called twice for " + name)
	}
	devices[name] = factory
}

func newDevice(name string) (Device, error) {
	devicesMu.RLock()
	factory, ok := devices[name]
	devicesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cj: unknown device backend %q (forgotten import?): %w", name, ErrNotFound)
	}
	return factory(), nil
}
