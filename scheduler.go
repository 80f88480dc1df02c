package cj

import (
	"errors"
	"fmt"
	"time"
)

// Run drives the frame scheduler until no windows remain, Stop is called,
// a frame callback returns FrameStopLoop, or the engine is shut down.
//
// The loop is strictly single-threaded: one thread polls events and issues
// all GPU commands. Call Run from the thread the platform layer requires
// (lock the OS thread before engine creation when using the Vulkan backend).
// With a target FPS configured, each tick is padded with a pacing sleep;
// the loop sleeps to hit the interval, never to exceed it.
func (e *Engine) Run() error {
	if e.running {
		return fmt.Errorf("cj: run loop already active: %w", ErrBusy)
	}
	e.running = true
	e.stopRequested = false
	defer func() { e.running = false }()

	var interval time.Duration
	if e.targetFPS > 0 {
		interval = time.Second / time.Duration(e.targetFPS)
	}

	for !e.stopRequested && !e.shuttingDown && len(e.windows) > 0 {
		tickStart := time.Now()
		e.Tick()

		if interval > 0 {
			if elapsed := time.Since(tickStart); elapsed < interval {
				sleepStart := time.Now()
				time.Sleep(interval - elapsed)
				if e.prof != nil {
					e.note(&e.prof.PacingSleep, sleepStart)
				}
			}
		}
		if e.prof != nil {
			if total := time.Since(tickStart); total > e.tickAccounted {
				e.prof.Other += total - e.tickAccounted
			}
			e.prof.Ticks++
		}
	}
	return nil
}

// Stop requests loop termination after the current tick completes.
func (e *Engine) Stop() {
	e.stopRequested = true
}

// Tick runs one scheduler iteration: poll events, snapshot windows, gate on
// minimization, then tick each window. Exposed so hosts embedding their own
// loop can drive the scheduler manually.
func (e *Engine) Tick() {
	e.tickAccounted = 0
	now := time.Now()

	start := now
	e.dev.PollEvents()
	e.noteProf(profEventPoll, start)

	start = time.Now()
	windows := make([]*Window, len(e.windows))
	copy(windows, e.windows)
	e.noteProf(profEnumerate, start)

	for _, w := range windows {
		if !w.destroyed && (w.closeRequested || w.surface.ShouldClose()) {
			e.teardownWindow(w)
		}
	}

	start = time.Now()
	if !e.runWhenMinimized {
		live, minimized := 0, 0
		for _, w := range windows {
			if w.destroyed {
				continue
			}
			live++
			if w.surface.Minimized() {
				minimized++
			}
		}
		if live > 0 && minimized == live {
			e.noteProf(profMinimized, start)
			return
		}
	}
	e.noteProf(profMinimized, start)

	for _, w := range windows {
		if w.destroyed {
			continue
		}
		e.tickWindow(w, now)
	}
}

// tickWindow is the two-phase per-window tick: decide whether a render is
// due and whether the callback runs; invoke the callback; honor its verdict;
// re-evaluate if the callback dirtied the window; then execute and present.
func (e *Engine) tickWindow(w *Window, now time.Time) {
	decision := w.decide(now)

	var rec Recorder
	beginAttempted := false
	if decision.render {
		beginAttempted = true
		rec = e.beginWindowFrame(w)
		if rec == nil {
			// Begin-frame failure skips rendering this tick but still runs
			// the callback; transient out-of-date is expected during resize.
			decision.render = false
		}
	}

	action := FrameContinue
	if decision.invokeCallback && w.onFrame != nil {
		w.frames++
		info := FrameInfo{
			FrameIndex:    w.frames,
			Delta:         now.Sub(w.lastRender),
			Elapsed:       now.Sub(w.created),
			RenderPending: decision.render,
		}
		cbStart := time.Now()
		action = w.onFrame(w, info)
		e.noteProf(profCallback, cbStart)
	}

	switch action {
	case FrameCloseWindow:
		e.teardownWindow(w)
		return
	case FrameStopLoop:
		e.stopRequested = true
	case FrameSkip:
		if rec != nil {
			// The image is already acquired; present the empty recording to
			// keep the swapchain consistent, but leave the dirty flag alone.
			e.presentWindow(w, rec, now, false)
		}
		return
	}

	// Revision phase: the callback may have marked the window dirty when no
	// render was due, in which case the gate is re-run and a frame begun now.
	// A begin that already failed this tick is not retried; the recreate path
	// marked the window dirty and the next tick picks it up.
	if rec == nil && !beginAttempted && w.pending != ReasonNone {
		if revised := w.decide(now); revised.render {
			rec = e.beginWindowFrame(w)
		}
	}
	if rec == nil {
		return
	}

	if w.graph != nil {
		exStart := time.Now()
		err := w.graph.Execute(rec, w.surface.Extent())
		e.noteProf(profExecute, exStart)
		if err != nil {
			// The recording is partial; it must not be submitted. The surface
			// gets the begun frame back so its sync protocol stays live.
			Logger().Warn("cj: graph execute failed, frame dropped", "err", err)
			w.surface.Discard(rec)
			return
		}
	}
	e.presentWindow(w, rec, now, true)
}

// beginWindowFrame begins a frame, recreating the swapchain on out-of-date
// and deferring the render to the next tick. Returns nil when no frame
// could be begun.
func (e *Engine) beginWindowFrame(w *Window) Recorder {
	start := time.Now()
	rec, err := w.surface.Begin()
	e.noteProf(profBegin, start)
	if err == nil {
		return rec
	}
	if errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSurfaceLost) {
		if rerr := w.surface.Recreate(); rerr != nil {
			Logger().Warn("cj: swapchain recreate failed", "err", rerr)
		}
		w.MarkDirtyReason(ReasonSwapchainRecreate)
		return nil
	}
	Logger().Warn("cj: begin frame failed", "err", err)
	return nil
}

// presentWindow submits and presents the frame. clean controls whether a
// successful present resets the window's dirty state and render timestamp.
func (e *Engine) presentWindow(w *Window, rec Recorder, now time.Time, clean bool) {
	start := time.Now()
	err := w.surface.Present(rec)
	e.noteProf(profPresent, start)
	if err != nil {
		if errors.Is(err, ErrOutOfDate) {
			if rerr := w.surface.Recreate(); rerr != nil {
				Logger().Warn("cj: swapchain recreate failed", "err", rerr)
			}
			w.MarkDirtyReason(ReasonSwapchainRecreate)
			return
		}
		Logger().Warn("cj: present failed", "err", err)
		return
	}
	if clean {
		w.markRendered(now)
	} else {
		w.lastRender = now
	}
}

// teardownWindow runs the close callback and destroys the window.
func (e *Engine) teardownWindow(w *Window) {
	if w.destroyed {
		return
	}
	if w.onClose != nil {
		w.onClose(w)
	}
	w.Destroy()
}

// Profiling bucket selectors; kept as an enum so note sites stay terse while
// the Profile struct stays flat and printable.
type profBucket int

const (
	profEventPoll profBucket = iota
	profEnumerate
	profMinimized
	profBegin
	profCallback
	profExecute
	profPresent
)

func (e *Engine) noteProf(b profBucket, start time.Time) {
	if e.prof == nil {
		return
	}
	d := time.Since(start)
	switch b {
	case profEventPoll:
		e.prof.EventPoll += d
	case profEnumerate:
		e.prof.Enumerate += d
	case profMinimized:
		e.prof.MinimizedCheck += d
	case profBegin:
		e.prof.BeginFrame += d
	case profCallback:
		e.prof.Callback += d
	case profExecute:
		e.prof.Execute += d
	case profPresent:
		e.prof.Present += d
	}
	e.tickAccounted += d
}

// note adds to an arbitrary bucket pointer; used for pacing sleep where the
// bucket lives outside the tick.
func (e *Engine) note(d *time.Duration, start time.Time) {
	if e.prof == nil {
		return
	}
	delta := time.Since(start)
	*d += delta
	e.tickAccounted += delta
}
