package cj

import (
	"fmt"
)

// The fake device records everything the core asks of it, so scheduler and
// graph behavior is testable without a GPU or a window system.

type fakeResource struct {
	dev       *fakeDevice
	slot      uint32
	destroyed bool
}

func (r *fakeResource) DescriptorSlot() uint32 { return r.slot }
func (r *fakeResource) Destroy() {
	r.destroyed = true
	r.dev.destroyedResources++
}

type fakeDevice struct {
	initCalls     int
	shutdownCalls int
	cfg           DeviceConfig

	nextSlot           uint32
	destroyedResources int

	createTextureErr error
	createBufferErr  error
	createSurfaceErr error

	surfaces []*fakeSurface

	pollCount    int
	onPoll       func()
	colorSeq     int
	blurSeq      int
	blurPipes    []*fakeBlurPipeline
	texturedPipe *fakeTexturedPipeline
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{}
}

func (d *fakeDevice) Init(cfg DeviceConfig) error {
	d.initCalls++
	d.cfg = cfg
	return nil
}

func (d *fakeDevice) Shutdown()              { d.shutdownCalls++ }
func (d *fakeDevice) WaitIdle() error        { return nil }
func (d *fakeDevice) DeviceIndex() int       { return 0 }
func (d *fakeDevice) BindlessCapacity() uint32 { return 64 }

func (d *fakeDevice) PollEvents() {
	d.pollCount++
	if d.onPoll != nil {
		d.onPoll()
	}
}

func (d *fakeDevice) newResource() *fakeResource {
	d.nextSlot++
	return &fakeResource{dev: d, slot: d.nextSlot}
}

func (d *fakeDevice) CreateTexture(desc TextureDesc) (Texture, error) {
	if d.createTextureErr != nil {
		return nil, d.createTextureErr
	}
	return d.newResource(), nil
}

func (d *fakeDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	if d.createBufferErr != nil {
		return nil, d.createBufferErr
	}
	return d.newResource(), nil
}

func (d *fakeDevice) CreateSampler(desc SamplerDesc) (Sampler, error) {
	return d.newResource(), nil
}

func (d *fakeDevice) NewColorPipeline() (ColorPipeline, error) {
	d.colorSeq++
	return &fakeColorPipeline{dev: d, id: d.colorSeq}, nil
}

func (d *fakeDevice) Textured() (TexturedPipeline, error) {
	if d.texturedPipe == nil {
		d.texturedPipe = &fakeTexturedPipeline{dev: d}
	}
	return d.texturedPipe, nil
}

func (d *fakeDevice) NewBlurPipeline() (BlurPipeline, error) {
	d.blurSeq++
	p := &fakeBlurPipeline{dev: d, id: d.blurSeq}
	d.blurPipes = append(d.blurPipes, p)
	return p, nil
}

func (d *fakeDevice) CreateSurface(cfg WindowConfig) (Surface, error) {
	if d.createSurfaceErr != nil {
		return nil, d.createSurfaceErr
	}
	s := &fakeSurface{
		dev:    d,
		extent: Extent{Width: uint32(cfg.Width), Height: uint32(cfg.Height)},
	}
	d.surfaces = append(d.surfaces, s)
	return s, nil
}

// fakeRecorder accumulates draw ops in record order.
type fakeRecorder struct {
	ops    []string
	pushes []any
}

func (r *fakeRecorder) log(op string, push any) {
	r.ops = append(r.ops, op)
	r.pushes = append(r.pushes, push)
}

type fakeColorPipeline struct {
	dev       *fakeDevice
	id        int
	destroyed bool
}

func (p *fakeColorPipeline) Record(rec Recorder, push ColorPush) error {
	rec.(*fakeRecorder).log(fmt.Sprintf("color%d", p.id), push)
	return nil
}

func (p *fakeColorPipeline) Destroy() { p.destroyed = true }

type fakeTexturedPipeline struct {
	dev       *fakeDevice
	destroyed bool
}

func (p *fakeTexturedPipeline) NewBinding(slot uint32) (TexturedBinding, error) {
	return &fakeTexturedBinding{pipe: p, slot: slot}, nil
}

func (p *fakeTexturedPipeline) Destroy() { p.destroyed = true }

type fakeTexturedBinding struct {
	pipe        *fakeTexturedPipeline
	slot        uint32
	slotUpdates []uint32
	destroyed   bool
}

func (b *fakeTexturedBinding) Record(rec Recorder, push TexturedPush) error {
	rec.(*fakeRecorder).log(fmt.Sprintf("textured@%d", b.slot), push)
	return nil
}

func (b *fakeTexturedBinding) UpdateSlot(slot uint32) error {
	b.slot = slot
	b.slotUpdates = append(b.slotUpdates, slot)
	return nil
}

func (b *fakeTexturedBinding) Destroy() { b.destroyed = true }

type fakeBlurPipeline struct {
	dev       *fakeDevice
	id        int
	target    Extent
	ensures   []Extent
	recordErr error
	destroyed bool
}

func (p *fakeBlurPipeline) EnsureTarget(extent Extent) error {
	if p.target != extent {
		p.ensures = append(p.ensures, extent)
		p.target = extent
	}
	return nil
}

func (p *fakeBlurPipeline) Record(rec Recorder, push BlurPush, sourceSlot uint32) error {
	if p.recordErr != nil {
		return p.recordErr
	}
	axis := "v"
	if push.Direction[0] != 0 {
		axis = "h"
	}
	rec.(*fakeRecorder).log(fmt.Sprintf("blur%d.%s@%d", p.id, axis, sourceSlot), push)
	return nil
}

func (p *fakeBlurPipeline) Destroy() { p.destroyed = true }

// fakeSurface is a presentation surface whose begin/present outcomes are
// scripted per call.
type fakeSurface struct {
	dev    *fakeDevice
	extent Extent
	sink   EventSink

	beginErrs   []error // popped per Begin; nil entry means success
	presentErrs []error

	begins    int
	presents  []*fakeRecorder
	discards  int
	recreates int

	minimized   bool
	shouldClose bool
	destroyed   bool

	x, y  int
	title string
	state WindowState
}

func (s *fakeSurface) Begin() (Recorder, error) {
	s.begins++
	if len(s.beginErrs) > 0 {
		err := s.beginErrs[0]
		s.beginErrs = s.beginErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeRecorder{}, nil
}

func (s *fakeSurface) Present(rec Recorder) error {
	if len(s.presentErrs) > 0 {
		err := s.presentErrs[0]
		s.presentErrs = s.presentErrs[1:]
		if err != nil {
			return err
		}
	}
	s.presents = append(s.presents, rec.(*fakeRecorder))
	return nil
}

func (s *fakeSurface) Discard(Recorder) {
	s.discards++
}

func (s *fakeSurface) Recreate() error {
	s.recreates++
	return nil
}

func (s *fakeSurface) Resize(width, height int) {
	s.extent = Extent{Width: uint32(width), Height: uint32(height)}
	if s.sink != nil {
		s.sink.NativeResize(width, height)
	}
}

func (s *fakeSurface) Extent() Extent              { return s.extent }
func (s *fakeSurface) Minimized() bool             { return s.minimized }
func (s *fakeSurface) ShouldClose() bool           { return s.shouldClose }
func (s *fakeSurface) SetEventSink(sink EventSink) { s.sink = sink }
func (s *fakeSurface) Position() (int, int)        { return s.x, s.y }
func (s *fakeSurface) SetPosition(x, y int)        { s.x, s.y = x, y }
func (s *fakeSurface) SetTitle(title string)       { s.title = title }
func (s *fakeSurface) State() WindowState          { return s.state }
func (s *fakeSurface) Destroy()                    { s.destroyed = true }

// newTestEngine builds an engine over a fresh fake device.
func newTestEngine(t interface{ Fatalf(string, ...any) }, opts ...Option) (*Engine, *fakeDevice) {
	dev := newFakeDevice()
	eng, err := New(append([]Option{WithDevice(dev)}, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng, dev
}
