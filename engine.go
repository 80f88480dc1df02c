package cj

import (
	"fmt"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// Engine owns the device facade, the resource registry, the live windows
// and the engine-wide shared state (color multiplier, shared textured
// pipeline). There is no ambient "current engine": everything hangs off an
// explicit *Engine.
//
// An Engine and everything it owns is confined to one thread.
type Engine struct {
	dev       Device
	resources *Registry
	windows   []*Window

	color    mgl32.Vec4
	textured TexturedPipeline

	prof          *Profile
	tickAccounted time.Duration

	targetFPS        int
	runWhenMinimized bool

	running       bool
	stopRequested bool
	shuttingDown  bool
	shutdownDone  bool
}

// New creates an engine and initializes its device backend. The backend is
// selected by name ("vulkan" when the vk package is imported) unless
// WithDevice injects one directly.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev := o.device
	if dev == nil {
		var err error
		dev, err = newDevice(o.deviceName)
		if err != nil {
			return nil, err
		}
	}
	if err := dev.Init(o.cfg); err != nil {
		return nil, fmt.Errorf("cj: device init: %w", err)
	}

	e := &Engine{
		dev:              dev,
		resources:        NewRegistry(o.capacity),
		color:            mgl32.Vec4{1, 1, 1, 1},
		targetFPS:        o.targetFPS,
		runWhenMinimized: o.runWhenMinimized,
	}
	if o.profiling {
		e.prof = &Profile{}
	}
	Logger().Info("cj: engine created", "device", dev.DeviceIndex(), "bindless", dev.BindlessCapacity())
	return e, nil
}

// Shutdown destroys all remaining windows, frees every live resource and
// shuts the device down. Safe to call once; later calls are no-ops.
func (e *Engine) Shutdown() {
	if e.shutdownDone {
		return
	}
	e.shuttingDown = true
	e.shutdownDone = true

	for len(e.windows) > 0 {
		e.teardownWindow(e.windows[0])
	}
	if e.textured != nil {
		e.textured.Destroy()
		e.textured = nil
	}
	e.resources.destroyAll()
	if err := e.dev.WaitIdle(); err != nil {
		Logger().Warn("cj: wait idle at shutdown", "err", err)
	}
	e.dev.Shutdown()
}

// WaitIdle blocks until the device has finished all in-flight work.
func (e *Engine) WaitIdle() error { return e.dev.WaitIdle() }

// DeviceIndex reports which physical device the backend selected.
func (e *Engine) DeviceIndex() int { return e.dev.DeviceIndex() }

// BindlessCapacity reports the size of the device's descriptor slot table.
func (e *Engine) BindlessCapacity() uint32 { return e.dev.BindlessCapacity() }

// Profile returns the accumulated run-loop instrumentation, or nil when the
// engine was created without WithProfiling.
func (e *Engine) Profile() *Profile { return e.prof }

// SetColor sets the shared color multiplier read live by every color node.
func (e *Engine) SetColor(r, g, b, a float32) {
	e.color = mgl32.Vec4{r, g, b, a}
}

func (e *Engine) sharedColor() mgl32.Vec4 { return e.color }

// texturedPipeline returns the engine-wide shared textured pipeline,
// creating it on first use.
func (e *Engine) texturedPipeline() (TexturedPipeline, error) {
	if e.textured != nil {
		return e.textured, nil
	}
	tp, err := e.dev.Textured()
	if err != nil {
		return nil, err
	}
	e.textured = tp
	return tp, nil
}

// CreateTexture allocates a handle and creates the GPU texture behind it.
// On creation failure the just-allocated handle is released so no slot
// leaks. Returns the nil handle with ErrOutOfMemory when the table is full.
func (e *Engine) CreateTexture(desc TextureDesc) (Handle, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return Handle{}, fmt.Errorf("cj: texture %dx%d: %w", desc.Width, desc.Height, ErrInvalidArgument)
	}
	h := e.resources.Alloc(KindTexture)
	if h.IsNil() {
		return Handle{}, fmt.Errorf("cj: texture table full: %w", ErrOutOfMemory)
	}
	payload, err := e.dev.CreateTexture(desc)
	if err != nil {
		e.resources.Release(h)
		return Handle{}, fmt.Errorf("cj: create texture: %w", err)
	}
	e.resources.bind(h, payload, payload.DescriptorSlot())
	return h, nil
}

// CreateBuffer allocates a handle and creates the GPU buffer behind it.
func (e *Engine) CreateBuffer(desc BufferDesc) (Handle, error) {
	if desc.Size <= 0 {
		return Handle{}, fmt.Errorf("cj: buffer size %d: %w", desc.Size, ErrInvalidArgument)
	}
	h := e.resources.Alloc(KindBuffer)
	if h.IsNil() {
		return Handle{}, fmt.Errorf("cj: buffer table full: %w", ErrOutOfMemory)
	}
	payload, err := e.dev.CreateBuffer(desc)
	if err != nil {
		e.resources.Release(h)
		return Handle{}, fmt.Errorf("cj: create buffer: %w", err)
	}
	e.resources.bind(h, payload, payload.DescriptorSlot())
	return h, nil
}

// CreateSampler allocates a handle and creates the GPU sampler behind it.
func (e *Engine) CreateSampler(desc SamplerDesc) (Handle, error) {
	h := e.resources.Alloc(KindSampler)
	if h.IsNil() {
		return Handle{}, fmt.Errorf("cj: sampler table full: %w", ErrOutOfMemory)
	}
	payload, err := e.dev.CreateSampler(desc)
	if err != nil {
		e.resources.Release(h)
		return Handle{}, fmt.Errorf("cj: create sampler: %w", err)
	}
	e.resources.bind(h, payload, payload.DescriptorSlot())
	return h, nil
}

// Retain increments a handle's refcount; stale handles are ignored.
func (e *Engine) Retain(h Handle) { e.resources.Retain(h) }

// Release decrements a handle's refcount, destroying the resource when it
// reaches zero; stale handles are ignored.
func (e *Engine) Release(h Handle) { e.resources.Release(h) }

// SlotOf returns a handle's descriptor slot, 0 when stale.
func (e *Engine) SlotOf(h Handle) uint32 { return e.resources.SlotOf(h) }

// Registry exposes the resource registry, mainly for instrumentation.
func (e *Engine) Registry() *Registry { return e.resources }

// Windows returns the live window count.
func (e *Engine) Windows() int { return len(e.windows) }

func (e *Engine) removeWindow(w *Window) {
	for i, win := range e.windows {
		if win == w {
			e.windows = append(e.windows[:i], e.windows[i+1:]...)
			return
		}
	}
}
