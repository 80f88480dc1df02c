package cj

import "time"

// RedrawPolicy governs when a window considers a frame due.
type RedrawPolicy int

const (
	// RedrawAlways renders every tick regardless of the dirty flag.
	RedrawAlways RedrawPolicy = iota
	// RedrawOnDirty renders only when the window has been marked dirty.
	RedrawOnDirty
	// RedrawOnEvents renders only when marked dirty, but invokes the frame
	// callback every tick so user logic can decide to mark dirty itself.
	RedrawOnEvents
)

func (p RedrawPolicy) String() string {
	switch p {
	case RedrawAlways:
		return "always"
	case RedrawOnDirty:
		return "on-dirty"
	case RedrawOnEvents:
		return "on-events"
	default:
		return "invalid"
	}
}

// RenderReason records why a frame is due. Every reason except ReasonTimer
// bypasses the FPS gate: resizes and exposes must never be starved by a
// frame-rate cap.
type RenderReason int

const (
	// ReasonNone means the window is clean.
	ReasonNone RenderReason = iota
	ReasonTimer
	ReasonResize
	ReasonExpose
	ReasonForced
	ReasonSwapchainRecreate
)

func (r RenderReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTimer:
		return "timer"
	case ReasonResize:
		return "resize"
	case ReasonExpose:
		return "expose"
	case ReasonForced:
		return "forced"
	case ReasonSwapchainRecreate:
		return "swapchain-recreate"
	default:
		return "invalid"
	}
}

// bypassesGate reports whether the reason ignores the max-FPS gate.
func (r RenderReason) bypassesGate() bool {
	return r != ReasonNone && r != ReasonTimer
}

// FrameAction is a frame callback's verdict, honored even when it
// contradicts the scheduler's pre-callback render decision.
type FrameAction int

const (
	// FrameContinue proceeds with the tick as decided.
	FrameContinue FrameAction = iota
	// FrameSkip skips rendering this tick. A frame already begun before the
	// callback still presents its acquired image as a cleared frame to keep
	// the swapchain's acquire/present pairing intact, so a skip does not
	// preserve the window's previous contents. RedrawOnDirty and
	// RedrawOnEvents avoid acquiring a frame in the first place.
	FrameSkip
	// FrameCloseWindow tears the window down immediately.
	FrameCloseWindow
	// FrameStopLoop stops the run loop after the current tick.
	FrameStopLoop
)

// FrameInfo is the timing snapshot handed to a frame callback.
type FrameInfo struct {
	// FrameIndex counts invocations of the callback for this window.
	FrameIndex uint64
	// Delta is the time since the window's last presented frame.
	Delta time.Duration
	// Elapsed is the time since the window was created.
	Elapsed time.Duration
	// RenderPending reports whether the scheduler decided a render is due
	// this tick, before the callback gets a say.
	RenderPending bool
}

// WindowState is the window's native state.
type WindowState int

const (
	StateNormal WindowState = iota
	StateMinimized
	StateMaximized
	StateFullscreen
)

// KeyEvent is a keyboard event as delivered by the platform layer.
type KeyEvent struct {
	Key      int
	Scancode int
	Pressed  bool
	Repeat   bool
	Mods     int
}

// MouseEvent is a pointer event as delivered by the platform layer.
type MouseEvent struct {
	X, Y    float64
	Button  int
	Pressed bool
	Moved   bool
}

// Per-event-type callback signatures.
type (
	FrameFunc  func(w *Window, info FrameInfo) FrameAction
	CloseFunc  func(w *Window)
	ResizeFunc func(w *Window, width, height int)
	MoveFunc   func(w *Window, x, y int)
	StateFunc  func(w *Window, state WindowState)
	KeyFunc    func(w *Window, ev KeyEvent)
	MouseFunc  func(w *Window, ev MouseEvent)
	FocusFunc  func(w *Window, focused bool)
)

// EventSink receives native window events from a Surface. *Window implements
// it; device backends call it from their event pump on the scheduler thread.
type EventSink interface {
	NativeResize(width, height int)
	NativeExpose()
	NativeMove(x, y int)
	NativeClose()
	NativeState(state WindowState)
	NativeKey(ev KeyEvent)
	NativeMouse(ev MouseEvent)
	NativeFocus(focused bool)
}
