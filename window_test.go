package cj

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindow(t *testing.T, eng *Engine) *Window {
	t.Helper()
	w, err := eng.NewWindow(WindowConfig{Title: "t", Width: 320, Height: 240})
	require.NoError(t, err)
	return w
}

func TestNewWindowValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	_, err := eng.NewWindow(WindowConfig{Width: 0, Height: 100})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = eng.NewWindow(WindowConfig{Width: 100, Height: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecideRedrawAlways(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	d := w.decide(time.Now())
	assert.True(t, d.render, "always renders even when clean")
	assert.Equal(t, ReasonTimer, d.reason, "flag-less always-render counts as a timer frame")
	assert.True(t, d.invokeCallback)
}

func TestDecideRedrawOnDirty(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetRedrawPolicy(RedrawOnDirty)

	d := w.decide(time.Now())
	assert.False(t, d.render)
	assert.False(t, d.invokeCallback, "clean on-dirty windows skip the callback too")

	w.MarkDirty()
	d = w.decide(time.Now())
	assert.True(t, d.render)
	assert.Equal(t, ReasonForced, d.reason)
	assert.True(t, d.invokeCallback)
}

func TestDecideRedrawOnEvents(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetRedrawPolicy(RedrawOnEvents)

	d := w.decide(time.Now())
	assert.False(t, d.render)
	assert.True(t, d.invokeCallback, "on-events always invokes the callback")
}

func TestFPSGateDefersTimerFrames(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetMaxFPS(30) // interval ~33ms

	now := time.Now()
	w.markRendered(now)

	// 10ms later a timer frame is deferred.
	d := w.decide(now.Add(10 * time.Millisecond))
	assert.False(t, d.render)

	// Past the interval it renders again.
	d = w.decide(now.Add(40 * time.Millisecond))
	assert.True(t, d.render)
}

func TestFPSGateNeverDefersResize(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetMaxFPS(30)

	now := time.Now()
	w.markRendered(now)
	w.MarkDirtyReason(ReasonResize)

	d := w.decide(now.Add(time.Millisecond))
	assert.True(t, d.render, "resize bypasses the FPS gate")
	assert.Equal(t, ReasonResize, d.reason)
}

func TestGateBypassByReason(t *testing.T) {
	for reason, bypasses := range map[RenderReason]bool{
		ReasonNone:              false,
		ReasonTimer:             false,
		ReasonResize:            true,
		ReasonExpose:            true,
		ReasonForced:            true,
		ReasonSwapchainRecreate: true,
	} {
		assert.Equal(t, bypasses, reason.bypassesGate(), "reason %s", reason)
	}
}

func TestMarkDirtyReasonNeverDowngrades(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	w.MarkDirtyReason(ReasonResize)
	w.MarkDirtyReason(ReasonTimer)
	assert.Equal(t, ReasonResize, w.Pending(), "timer must not replace a gate-bypassing reason")

	w.MarkDirtyReason(ReasonExpose)
	assert.Equal(t, ReasonExpose, w.Pending(), "bypassing reasons may replace each other")

	w.MarkDirtyReason(ReasonNone)
	assert.Equal(t, ReasonExpose, w.Pending())

	w.markRendered(time.Now())
	assert.Equal(t, ReasonNone, w.Pending())
	w.MarkDirtyReason(ReasonTimer)
	assert.Equal(t, ReasonTimer, w.Pending())
}

func TestNativeResizeMarksDirtyAndCallsBack(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	var gotW, gotH int
	w.OnResize(func(_ *Window, width, height int) { gotW, gotH = width, height })

	w.NativeResize(640, 480)
	assert.Equal(t, ReasonResize, w.Pending())
	assert.Equal(t, 640, gotW)
	assert.Equal(t, 480, gotH)
}

func TestNativeStateRestoreMarksExpose(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.markRendered(time.Now())

	var states []WindowState
	w.OnState(func(_ *Window, s WindowState) { states = append(states, s) })

	w.NativeState(StateMinimized)
	assert.Equal(t, ReasonNone, w.Pending(), "minimizing does not dirty the window")

	w.NativeState(StateNormal)
	assert.Equal(t, ReasonExpose, w.Pending(), "restoring repaints")
	assert.Equal(t, []WindowState{StateMinimized, StateNormal}, states)
}

func TestNativeCloseRequestsTeardown(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	w.NativeClose()
	assert.True(t, w.closeRequested)
}

func TestWindowSurfacePassthrough(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	s := dev.surfaces[0]

	w.SetTitle("renamed")
	assert.Equal(t, "renamed", s.title)

	w.SetPosition(30, 40)
	x, y := w.Position()
	assert.Equal(t, 30, x)
	assert.Equal(t, 40, y)

	w.Resize(800, 600)
	assert.Equal(t, Extent{Width: 800, Height: 600}, w.Extent())
	assert.Equal(t, ReasonResize, w.Pending(), "resize round-trips through the event sink")
}

func TestWindowDestroyIdempotent(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	w.Destroy()
	w.Destroy()
	assert.True(t, dev.surfaces[0].destroyed)
	assert.Equal(t, 0, eng.Windows())
}
