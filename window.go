package cj

import (
	"fmt"
	"time"
)

// Window owns one presentation surface, a redraw-policy state machine, an
// optional attached render graph (not owned) and the per-event callbacks.
// All methods are confined to the scheduler thread.
type Window struct {
	eng     *Engine
	surface Surface

	policy     RedrawPolicy
	pending    RenderReason // ReasonNone means clean
	maxFPS     int
	lastRender time.Time

	graph   *Graph
	frames  uint64
	created time.Time

	closeRequested bool
	destroyed      bool

	onFrame  FrameFunc
	onClose  CloseFunc
	onResize ResizeFunc
	onMove   MoveFunc
	onState  StateFunc
	onKey    KeyFunc
	onMouse  MouseFunc
	onFocus  FocusFunc
}

// NewWindow creates a window with its swapchain and per-frame
// synchronization, registered with the engine's scheduler. Windows start
// under RedrawAlways with no FPS cap.
func (e *Engine) NewWindow(cfg WindowConfig) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("cj: window %dx%d: %w", cfg.Width, cfg.Height, ErrInvalidArgument)
	}
	s, err := e.dev.CreateSurface(cfg)
	if err != nil {
		return nil, fmt.Errorf("cj: create window: %w", err)
	}
	w := &Window{
		eng:     e,
		surface: s,
		policy:  RedrawAlways,
		created: time.Now(),
	}
	s.SetEventSink(w)
	e.windows = append(e.windows, w)
	Logger().Info("cj: window created", "title", cfg.Title, "width", cfg.Width, "height", cfg.Height)
	return w, nil
}

// Destroy waits for the device to go idle, then frees the window's GPU
// objects. Waiting first is what keeps in-flight frames from being torn
// down under the GPU.
func (w *Window) Destroy() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	if err := w.eng.dev.WaitIdle(); err != nil {
		Logger().Warn("cj: wait idle before window destroy", "err", err)
	}
	w.surface.Destroy()
	w.eng.removeWindow(w)
}

// AttachGraph attaches a render graph executed on every rendered frame.
// The window does not own the graph; pass nil to detach.
func (w *Window) AttachGraph(g *Graph) {
	w.graph = g
}

// SetRedrawPolicy selects when frames are considered due.
func (w *Window) SetRedrawPolicy(p RedrawPolicy) { w.policy = p }

// Policy returns the current redraw policy.
func (w *Window) Policy() RedrawPolicy { return w.policy }

// SetMaxFPS caps timer-driven redraws. Zero means uncapped. The cap never
// defers resize, expose, forced or swapchain-recreate frames.
func (w *Window) SetMaxFPS(fps int) { w.maxFPS = fps }

// MaxFPS returns the current cap, zero when uncapped.
func (w *Window) MaxFPS() int { return w.maxFPS }

// MarkDirty requests a redraw with reason forced.
func (w *Window) MarkDirty() { w.MarkDirtyReason(ReasonForced) }

// MarkDirtyReason requests a redraw with an explicit reason. A timer mark
// never downgrades a pending gate-bypassing reason.
func (w *Window) MarkDirtyReason(r RenderReason) {
	if r == ReasonNone {
		return
	}
	if r == ReasonTimer && w.pending.bypassesGate() {
		return
	}
	w.pending = r
}

// Pending returns the current pending render reason, ReasonNone when clean.
func (w *Window) Pending() RenderReason { return w.pending }

// Close requests that the scheduler tear this window down on its next tick.
func (w *Window) Close() { w.closeRequested = true }

// Resize asks the platform layer to resize the window. The resulting native
// resize event marks the window dirty and triggers swapchain recreation.
func (w *Window) Resize(width, height int) {
	w.surface.Resize(width, height)
}

// Extent returns the current drawable size.
func (w *Window) Extent() Extent { return w.surface.Extent() }

// Position returns the window position in screen coordinates.
func (w *Window) Position() (x, y int) { return w.surface.Position() }

// SetPosition moves the window.
func (w *Window) SetPosition(x, y int) { w.surface.SetPosition(x, y) }

// SetTitle changes the window title.
func (w *Window) SetTitle(title string) { w.surface.SetTitle(title) }

// State returns the native window state.
func (w *Window) State() WindowState { return w.surface.State() }

// Callback registration. A nil callback unregisters.
func (w *Window) OnFrame(fn FrameFunc)   { w.onFrame = fn }
func (w *Window) OnClose(fn CloseFunc)   { w.onClose = fn }
func (w *Window) OnResize(fn ResizeFunc) { w.onResize = fn }
func (w *Window) OnMove(fn MoveFunc)     { w.onMove = fn }
func (w *Window) OnState(fn StateFunc)   { w.onState = fn }
func (w *Window) OnKey(fn KeyFunc)       { w.onKey = fn }
func (w *Window) OnMouse(fn MouseFunc)   { w.onMouse = fn }
func (w *Window) OnFocus(fn FocusFunc)   { w.onFocus = fn }

// BeginFrame waits on the in-flight fence and acquires the next swapchain
// image. An out-of-date surface is recreated and reported; the scheduler
// skips the frame and retries next tick.
func (w *Window) BeginFrame() (Recorder, error) {
	return w.surface.Begin()
}

// Execute records the attached graph, if any, into the frame's recorder.
func (w *Window) Execute(rec Recorder) error {
	if w.graph == nil {
		return nil
	}
	return w.graph.Execute(rec, w.surface.Extent())
}

// Present submits the frame and queues it for presentation.
func (w *Window) Present(rec Recorder) error {
	return w.surface.Present(rec)
}

// tickDecision is the pre-callback phase of a scheduler tick: whether a
// render is due now, under which reason, and whether the frame callback
// runs. Keeping it a value makes the decide step testable on its own.
type tickDecision struct {
	render         bool
	reason         RenderReason
	invokeCallback bool
}

// decide evaluates the redraw state machine and FPS gate at time now.
// Under RedrawAlways the window is render-eligible regardless of the dirty
// flag; a flag-less always-render counts as a timer frame for gating.
// RedrawOnEvents always invokes the callback so user logic can mark dirty;
// other policies invoke it only when a render is pending.
func (w *Window) decide(now time.Time) tickDecision {
	reason := w.pending
	pending := reason != ReasonNone
	if w.policy == RedrawAlways {
		pending = true
		if reason == ReasonNone {
			reason = ReasonTimer
		}
	}
	return tickDecision{
		render:         pending && w.gatePasses(reason, now),
		reason:         reason,
		invokeCallback: w.policy == RedrawOnEvents || pending,
	}
}

// gatePasses applies the max-FPS gate. Only timer frames are gated.
func (w *Window) gatePasses(reason RenderReason, now time.Time) bool {
	if reason.bypassesGate() {
		return true
	}
	if w.maxFPS <= 0 {
		return true
	}
	return now.Sub(w.lastRender) >= time.Second/time.Duration(w.maxFPS)
}

// markRendered records a successful present.
func (w *Window) markRendered(now time.Time) {
	w.lastRender = now
	w.pending = ReasonNone
}

// EventSink implementation; the device backend calls these from its event
// pump on the scheduler thread.

func (w *Window) NativeResize(width, height int) {
	w.MarkDirtyReason(ReasonResize)
	if w.onResize != nil {
		w.onResize(w, width, height)
	}
}

func (w *Window) NativeExpose() {
	w.MarkDirtyReason(ReasonExpose)
}

func (w *Window) NativeMove(x, y int) {
	if w.onMove != nil {
		w.onMove(w, x, y)
	}
}

func (w *Window) NativeClose() {
	w.closeRequested = true
}

func (w *Window) NativeState(state WindowState) {
	if state == StateNormal {
		// Coming back from minimized: the contents need repainting.
		w.MarkDirtyReason(ReasonExpose)
	}
	if w.onState != nil {
		w.onState(w, state)
	}
}

func (w *Window) NativeKey(ev KeyEvent) {
	if w.onKey != nil {
		w.onKey(w, ev)
	}
}

func (w *Window) NativeMouse(ev MouseEvent) {
	if w.onMouse != nil {
		w.onMouse(w, ev)
	}
}

func (w *Window) NativeFocus(focused bool) {
	if w.onFocus != nil {
		w.onFocus(w, focused)
	}
}
