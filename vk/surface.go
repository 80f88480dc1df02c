package vk

import (
	"fmt"
	"math"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/cj"
)

const framesInFlight = 2

// surface is the per-window presentation object: a GLFW window, its
// swapchain, framebuffers and per-frame synchronization.
type surface struct {
	backend *Backend
	window  *glfw.Window
	surface vulkan.Surface

	swapchain    vulkan.Swapchain
	extent       vulkan.Extent2D
	images       []vulkan.Image
	views        []vulkan.ImageView
	framebuffers []vulkan.Framebuffer

	commandBuffers []vulkan.CommandBuffer
	imageAvailable []vulkan.Semaphore
	renderFinished []vulkan.Semaphore
	inFlight       []vulkan.Fence
	frame          int

	sink cj.EventSink
}

// CreateSurface creates a native window with its swapchain and sync objects.
func (b *Backend) CreateSurface(cfg cj.WindowConfig) (cj.Surface, error) {
	if !b.initialized {
		return nil, errNotInitialized
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.True)
	resizable := glfw.False
	if cfg.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vk: create window: %w", err)
	}

	s := &surface{backend: b, window: window}
	surfacePtr, err := window.CreateWindowSurface(b.instance, nil)
	if err != nil {
		window.Destroy()
		return nil, fmt.Errorf("vk: create window surface: %w", err)
	}
	s.surface = vulkan.SurfaceFromPointer(surfacePtr)

	if err := s.createSwapchain(); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := s.createSyncObjects(); err != nil {
		s.Destroy()
		return nil, err
	}
	s.installCallbacks()
	return s, nil
}

func (s *surface) createSwapchain() error {
	b := s.backend

	var caps vulkan.SurfaceCapabilities
	if res := vulkan.GetPhysicalDeviceSurfaceCapabilities(b.physicalDevice, s.surface, &caps); res != vulkan.Success {
		return wrapResult("get surface capabilities", res)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	s.extent = caps.CurrentExtent
	if s.extent.Width == math.MaxUint32 {
		fbWidth, fbHeight := s.window.GetFramebufferSize()
		s.extent = vulkan.Extent2D{
			Width:  clampU32(uint32(fbWidth), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: clampU32(uint32(fbHeight), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    imageCount,
		ImageFormat:      b.surfaceFormat.Format,
		ImageColorSpace:  b.surfaceFormat.ColorSpace,
		ImageExtent:      s.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      s.choosePresentMode(),
		Clipped:          vulkan.True,
	}
	if b.queues.graphicsFamily != b.queues.presentFamily {
		createInfo.ImageSharingMode = vulkan.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{b.queues.graphicsFamily, b.queues.presentFamily}
	} else {
		createInfo.ImageSharingMode = vulkan.SharingModeExclusive
	}

	if res := vulkan.CreateSwapchain(b.device, &createInfo, nil, &s.swapchain); res != vulkan.Success {
		return wrapResult("create swapchain", res)
	}

	var count uint32
	vulkan.GetSwapchainImages(b.device, s.swapchain, &count, nil)
	s.images = make([]vulkan.Image, count)
	vulkan.GetSwapchainImages(b.device, s.swapchain, &count, s.images)

	s.views = make([]vulkan.ImageView, count)
	s.framebuffers = make([]vulkan.Framebuffer, count)
	for i, img := range s.images {
		view, err := b.createImageView(img, b.surfaceFormat.Format)
		if err != nil {
			return err
		}
		s.views[i] = view

		fbInfo := vulkan.FramebufferCreateInfo{
			SType:           vulkan.StructureTypeFramebufferCreateInfo,
			RenderPass:      b.clearPass,
			AttachmentCount: 1,
			PAttachments:    []vulkan.ImageView{view},
			Width:           s.extent.Width,
			Height:          s.extent.Height,
			Layers:          1,
		}
		if res := vulkan.CreateFramebuffer(b.device, &fbInfo, nil, &s.framebuffers[i]); res != vulkan.Success {
			return wrapResult("create framebuffer", res)
		}
	}
	return nil
}

func (s *surface) choosePresentMode() vulkan.PresentMode {
	var count uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(s.backend.physicalDevice, s.surface, &count, nil)
	modes := make([]vulkan.PresentMode, count)
	vulkan.GetPhysicalDeviceSurfacePresentModes(s.backend.physicalDevice, s.surface, &count, modes)
	for _, m := range modes {
		if m == vulkan.PresentModeMailbox {
			return m
		}
	}
	// Fifo is the only mode guaranteed to exist.
	return vulkan.PresentModeFifo
}

func (s *surface) createSyncObjects() error {
	b := s.backend

	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: framesInFlight,
	}
	s.commandBuffers = make([]vulkan.CommandBuffer, framesInFlight)
	if res := vulkan.AllocateCommandBuffers(b.device, &allocInfo, s.commandBuffers); res != vulkan.Success {
		return wrapResult("allocate command buffers", res)
	}

	s.imageAvailable = make([]vulkan.Semaphore, framesInFlight)
	s.renderFinished = make([]vulkan.Semaphore, framesInFlight)
	s.inFlight = make([]vulkan.Fence, framesInFlight)

	semInfo := vulkan.SemaphoreCreateInfo{SType: vulkan.StructureTypeSemaphoreCreateInfo}
	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
		Flags: vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit),
	}
	for i := 0; i < framesInFlight; i++ {
		if res := vulkan.CreateSemaphore(b.device, &semInfo, nil, &s.imageAvailable[i]); res != vulkan.Success {
			return wrapResult("create semaphore", res)
		}
		if res := vulkan.CreateSemaphore(b.device, &semInfo, nil, &s.renderFinished[i]); res != vulkan.Success {
			return wrapResult("create semaphore", res)
		}
		if res := vulkan.CreateFence(b.device, &fenceInfo, nil, &s.inFlight[i]); res != vulkan.Success {
			return wrapResult("create fence", res)
		}
	}
	return nil
}

// Begin waits for the frame's fence, acquires the next swapchain image and
// returns a recorder over a freshly begun command buffer.
func (s *surface) Begin() (cj.Recorder, error) {
	b := s.backend

	vulkan.WaitForFences(b.device, 1, []vulkan.Fence{s.inFlight[s.frame]}, vulkan.True, vulkan.MaxUint64)

	var imageIndex uint32
	res := vulkan.AcquireNextImage(b.device, s.swapchain, vulkan.MaxUint64,
		s.imageAvailable[s.frame], vulkan.Fence(vulkan.NullHandle), &imageIndex)
	if res == vulkan.ErrorOutOfDate {
		return nil, wrapResult("acquire image", res)
	}
	if res != vulkan.Success && res != vulkan.Suboptimal {
		return nil, wrapResult("acquire image", res)
	}

	vulkan.ResetFences(b.device, 1, []vulkan.Fence{s.inFlight[s.frame]})

	cmd := s.commandBuffers[s.frame]
	vulkan.ResetCommandBuffer(cmd, 0)
	beginInfo := vulkan.CommandBufferBeginInfo{SType: vulkan.StructureTypeCommandBufferBeginInfo}
	if res := vulkan.BeginCommandBuffer(cmd, &beginInfo); res != vulkan.Success {
		return nil, wrapResult("begin command buffer", res)
	}

	return &recorder{
		backend:     b,
		cmd:         cmd,
		imageIndex:  imageIndex,
		framebuffer: s.framebuffers[imageIndex],
		extent:      s.extent,
	}, nil
}

// Present closes the recording, submits it and queues the image. An empty
// recording still opens the clear pass once so the image is in a
// presentable layout.
func (s *surface) Present(rec cj.Recorder) error {
	b := s.backend
	r := asRecorder(rec)

	if !r.windowStarted {
		r.beginWindowPass()
	}
	r.endPass()
	if res := vulkan.EndCommandBuffer(r.cmd); res != vulkan.Success {
		return wrapResult("end command buffer", res)
	}

	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{s.imageAvailable[s.frame]},
		PWaitDstStageMask: []vulkan.PipelineStageFlags{
			vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{r.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{s.renderFinished[s.frame]},
	}
	if res := vulkan.QueueSubmit(b.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, s.inFlight[s.frame]); res != vulkan.Success {
		return wrapResult("queue submit", res)
	}

	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{s.renderFinished[s.frame]},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{s.swapchain},
		PImageIndices:      []uint32{r.imageIndex},
	}
	res := vulkan.QueuePresent(b.presentQueue, &presentInfo)
	s.frame = (s.frame + 1) % framesInFlight
	if res == vulkan.ErrorOutOfDate || res == vulkan.Suboptimal {
		return wrapResult("queue present", vulkan.ErrorOutOfDate)
	}
	if res != vulkan.Success {
		return wrapResult("queue present", res)
	}
	return nil
}

// Discard abandons a begun frame: the partial recording is reset and an
// empty submit consumes the acquire semaphore and re-signals the frame's
// fence, which the next Begin waits on. The acquired image is never
// presented; a later acquire hands it out again.
func (s *surface) Discard(rec cj.Recorder) {
	r := asRecorder(rec)
	vulkan.ResetCommandBuffer(r.cmd, 0)

	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{s.imageAvailable[s.frame]},
		PWaitDstStageMask: []vulkan.PipelineStageFlags{
			vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit),
		},
	}
	if res := vulkan.QueueSubmit(s.backend.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, s.inFlight[s.frame]); res != vulkan.Success {
		cj.Logger().Warn("vk: discard submit failed", "err", wrapResult("queue submit", res))
	}
	s.frame = (s.frame + 1) % framesInFlight
}

// Recreate rebuilds the swapchain for the current framebuffer size. A zero
// size (minimized) leaves the old swapchain in place; the scheduler's
// minimized gate keeps it unused until the window comes back.
func (s *surface) Recreate() error {
	fbWidth, fbHeight := s.window.GetFramebufferSize()
	if fbWidth == 0 || fbHeight == 0 {
		return nil
	}
	if err := s.backend.WaitIdle(); err != nil {
		return err
	}
	s.destroySwapchain()
	return s.createSwapchain()
}

func (s *surface) destroySwapchain() {
	dev := s.backend.device
	for _, fb := range s.framebuffers {
		vulkan.DestroyFramebuffer(dev, fb, nil)
	}
	s.framebuffers = nil
	for _, view := range s.views {
		vulkan.DestroyImageView(dev, view, nil)
	}
	s.views = nil
	if s.swapchain != vulkan.Swapchain(vulkan.NullHandle) {
		vulkan.DestroySwapchain(dev, s.swapchain, nil)
		s.swapchain = vulkan.Swapchain(vulkan.NullHandle)
	}
}

func (s *surface) Resize(width, height int) {
	s.window.SetSize(width, height)
}

func (s *surface) Extent() cj.Extent {
	return cj.Extent{Width: s.extent.Width, Height: s.extent.Height}
}

func (s *surface) Minimized() bool {
	return s.window.GetAttrib(glfw.Iconified) == glfw.True
}

func (s *surface) ShouldClose() bool {
	return s.window.ShouldClose()
}

func (s *surface) Position() (int, int) {
	return s.window.GetPos()
}

func (s *surface) SetPosition(x, y int) {
	s.window.SetPos(x, y)
}

func (s *surface) SetTitle(title string) {
	s.window.SetTitle(title)
}

func (s *surface) State() cj.WindowState {
	switch {
	case s.window.GetAttrib(glfw.Iconified) == glfw.True:
		return cj.StateMinimized
	case s.window.GetAttrib(glfw.Maximized) == glfw.True:
		return cj.StateMaximized
	case s.window.GetMonitor() != nil:
		return cj.StateFullscreen
	default:
		return cj.StateNormal
	}
}

func (s *surface) SetEventSink(sink cj.EventSink) {
	s.sink = sink
}

// Destroy waits out in-flight work and tears the window down.
func (s *surface) Destroy() {
	b := s.backend
	vulkan.DeviceWaitIdle(b.device)

	for _, f := range s.inFlight {
		vulkan.DestroyFence(b.device, f, nil)
	}
	for _, sem := range s.renderFinished {
		vulkan.DestroySemaphore(b.device, sem, nil)
	}
	for _, sem := range s.imageAvailable {
		vulkan.DestroySemaphore(b.device, sem, nil)
	}
	if len(s.commandBuffers) > 0 {
		vulkan.FreeCommandBuffers(b.device, b.commandPool, uint32(len(s.commandBuffers)), s.commandBuffers)
	}
	s.destroySwapchain()
	if s.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(b.instance, s.surface, nil)
	}
	s.window.Destroy()
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
