package cj

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickRendersAndPresents(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddColorNode("fill"))
	w.AttachGraph(g)

	eng.Tick()
	s := dev.surfaces[0]
	require.Len(t, s.presents, 1)
	assert.Equal(t, []string{"color1"}, s.presents[0].ops)
	assert.Equal(t, ReasonNone, w.Pending(), "a clean present resets the dirty flag")
}

func TestOnEventsThreeTickCycle(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetRedrawPolicy(RedrawOnEvents)
	s := dev.surfaces[0]

	calls := 0
	w.OnFrame(func(w *Window, info FrameInfo) FrameAction {
		calls++
		if calls == 2 {
			w.MarkDirty()
		}
		return FrameContinue
	})

	// Tick 1: callback runs, nothing rendered.
	eng.Tick()
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.presents)

	// Tick 2: the callback dirties the window; the revision phase renders
	// within the same tick.
	eng.Tick()
	assert.Equal(t, 2, calls)
	assert.Len(t, s.presents, 1)
	assert.Equal(t, ReasonNone, w.Pending())

	// Tick 3: clean again.
	eng.Tick()
	assert.Equal(t, 3, calls)
	assert.Len(t, s.presents, 1)
}

func TestOnEventsDirtyBetweenTicks(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetRedrawPolicy(RedrawOnEvents)
	s := dev.surfaces[0]

	calls := 0
	w.OnFrame(func(*Window, FrameInfo) FrameAction {
		calls++
		return FrameContinue
	})

	eng.Tick()
	eng.Tick()
	assert.Equal(t, 2, calls, "on-events invokes the callback every tick")
	assert.Empty(t, s.presents, "nothing renders while clean")

	w.MarkDirty()
	eng.Tick()
	assert.Equal(t, 3, calls)
	assert.Len(t, s.presents, 1)
}

func TestFrameInfoRenderPending(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetRedrawPolicy(RedrawOnEvents)

	var infos []FrameInfo
	w.OnFrame(func(w *Window, info FrameInfo) FrameAction {
		infos = append(infos, info)
		return FrameContinue
	})

	eng.Tick()
	w.MarkDirty()
	eng.Tick()

	require.Len(t, infos, 2)
	assert.False(t, infos[0].RenderPending)
	assert.True(t, infos[1].RenderPending)
	assert.Equal(t, uint64(1), infos[0].FrameIndex)
	assert.Equal(t, uint64(2), infos[1].FrameIndex)
}

func TestFrameSkipPresentsWithoutExecuting(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	s := dev.surfaces[0]

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddColorNode("fill"))
	w.AttachGraph(g)

	w.MarkDirty()
	w.OnFrame(func(*Window, FrameInfo) FrameAction { return FrameSkip })

	eng.Tick()
	// The acquired image is presented empty to keep the swapchain
	// consistent, and the dirty flag survives the skip.
	require.Len(t, s.presents, 1)
	assert.Empty(t, s.presents[0].ops)
	assert.Equal(t, ReasonForced, w.Pending())
}

func TestFrameCloseWindowTearsDown(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	closed := false
	w.OnClose(func(*Window) { closed = true })
	w.OnFrame(func(*Window, FrameInfo) FrameAction { return FrameCloseWindow })

	eng.Tick()
	assert.True(t, closed)
	assert.True(t, dev.surfaces[0].destroyed)
	assert.Equal(t, 0, eng.Windows())
}

func TestFrameStopLoopEndsRunWithinOneTick(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	newTestWindow(t, eng) // second window stays live

	w.OnFrame(func(*Window, FrameInfo) FrameAction { return FrameStopLoop })
	require.NoError(t, eng.Run())
	assert.Equal(t, 1, dev.pollCount, "stop-loop terminates after the current tick")
	assert.Equal(t, 2, eng.Windows(), "stop-loop leaves windows alive")
}

func TestRunExitsWhenLastWindowCloses(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	w.OnFrame(func(w *Window, _ FrameInfo) FrameAction {
		w.Close()
		return FrameContinue
	})
	require.NoError(t, eng.Run())
	assert.Equal(t, 0, eng.Windows())
}

func TestRunRejectsReentry(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)

	var reentry error
	w.OnFrame(func(*Window, FrameInfo) FrameAction {
		reentry = eng.Run()
		return FrameStopLoop
	})
	require.NoError(t, eng.Run())
	assert.ErrorIs(t, reentry, ErrBusy)
}

func TestExecuteFailureDropsFrameAndRecovers(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	s := dev.surfaces[0]

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddBlurNode("blur"))
	w.AttachGraph(g)
	dev.blurPipes[0].recordErr = errors.New("device hiccup")

	eng.Tick()
	assert.Equal(t, 1, s.begins)
	assert.Empty(t, s.presents, "a partial recording is never submitted")
	assert.Equal(t, 1, s.discards, "the begun frame goes back to the surface")

	// The drop does not wedge the window; the next tick renders normally.
	dev.blurPipes[0].recordErr = nil
	eng.Tick()
	assert.Equal(t, 2, s.begins)
	require.Len(t, s.presents, 1)
	assert.Equal(t, 1, s.discards)
}

func TestBeginFailureRecreatesAndDefers(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	s := dev.surfaces[0]
	s.beginErrs = []error{ErrOutOfDate}

	eng.Tick()
	assert.Equal(t, 1, s.recreates)
	assert.Empty(t, s.presents)
	assert.Equal(t, ReasonSwapchainRecreate, w.Pending())

	// The deferred frame lands on the next tick, bypassing any gate.
	w.SetMaxFPS(1)
	eng.Tick()
	assert.Len(t, s.presents, 1)
}

func TestPresentOutOfDateRecreates(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	s := dev.surfaces[0]
	s.presentErrs = []error{ErrOutOfDate}

	eng.Tick()
	assert.Equal(t, 1, s.recreates)
	assert.Equal(t, ReasonSwapchainRecreate, w.Pending())

	eng.Tick()
	assert.Len(t, s.presents, 1)
}

func TestMinimizedWindowsPauseTicking(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	newTestWindow(t, eng)
	s := dev.surfaces[0]
	s.minimized = true

	eng.Tick()
	assert.Zero(t, s.begins, "all-minimized skips window ticking")

	s.minimized = false
	eng.Tick()
	assert.Equal(t, 1, s.begins)
}

func TestRunWhenMinimizedKeepsTicking(t *testing.T) {
	eng, dev := newTestEngine(t, WithRunWhenMinimized(true))
	defer eng.Shutdown()
	newTestWindow(t, eng)
	s := dev.surfaces[0]
	s.minimized = true

	eng.Tick()
	assert.Equal(t, 1, s.begins)
}

func TestShouldCloseTearsDownDuringTick(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	newTestWindow(t, eng)
	dev.surfaces[0].shouldClose = true

	eng.Tick()
	assert.True(t, dev.surfaces[0].destroyed)
	assert.Equal(t, 0, eng.Windows())
}

func TestFPSGateAcrossTicks(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.SetMaxFPS(1) // one frame per second
	s := dev.surfaces[0]

	eng.Tick()
	require.Len(t, s.presents, 1)

	// Immediately after, the timer frame is gated; a forced mark is not.
	eng.Tick()
	assert.Len(t, s.presents, 1)

	w.MarkDirty()
	eng.Tick()
	assert.Len(t, s.presents, 2)
}

func TestProfilingCountsTicks(t *testing.T) {
	eng, _ := newTestEngine(t, WithProfiling())
	defer eng.Shutdown()
	w := newTestWindow(t, eng)
	w.OnFrame(func(*Window, FrameInfo) FrameAction { return FrameStopLoop })

	require.NoError(t, eng.Run())
	p := eng.Profile()
	require.NotNil(t, p)
	assert.Equal(t, uint64(1), p.Ticks)
	assert.NotEmpty(t, p.String())
}
