package vk

import (
	"github.com/vulkan-go/glfw/v3.3/glfw"

	"github.com/hellhand/cj"
)

// installCallbacks routes GLFW window callbacks into the surface's event
// sink. PollEvents on the scheduler thread is the only thing that fires
// them, so the sink needs no locking.
func (s *surface) installCallbacks() {
	s.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if s.sink != nil {
			s.sink.NativeResize(width, height)
		}
	})
	s.window.SetRefreshCallback(func(_ *glfw.Window) {
		if s.sink != nil {
			s.sink.NativeExpose()
		}
	})
	s.window.SetPosCallback(func(_ *glfw.Window, x, y int) {
		if s.sink != nil {
			s.sink.NativeMove(x, y)
		}
	})
	s.window.SetCloseCallback(func(_ *glfw.Window) {
		if s.sink != nil {
			s.sink.NativeClose()
		}
	})
	s.window.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		if s.sink == nil {
			return
		}
		if iconified {
			s.sink.NativeState(cj.StateMinimized)
		} else {
			s.sink.NativeState(cj.StateNormal)
		}
	})
	s.window.SetMaximizeCallback(func(_ *glfw.Window, maximized bool) {
		if s.sink == nil {
			return
		}
		if maximized {
			s.sink.NativeState(cj.StateMaximized)
		} else {
			s.sink.NativeState(cj.StateNormal)
		}
	})
	s.window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if s.sink == nil {
			return
		}
		s.sink.NativeKey(cj.KeyEvent{
			Key:      int(key),
			Scancode: scancode,
			Pressed:  action == glfw.Press || action == glfw.Repeat,
			Repeat:   action == glfw.Repeat,
			Mods:     int(mods),
		})
	})
	s.window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if s.sink == nil {
			return
		}
		x, y := s.window.GetCursorPos()
		s.sink.NativeMouse(cj.MouseEvent{
			X:       x,
			Y:       y,
			Button:  int(button),
			Pressed: action == glfw.Press,
		})
	})
	s.window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if s.sink == nil {
			return
		}
		s.sink.NativeMouse(cj.MouseEvent{X: x, Y: y, Moved: true})
	})
	s.window.SetFocusCallback(func(_ *glfw.Window, focused bool) {
		if s.sink != nil {
			s.sink.NativeFocus(focused)
		}
	})
}
