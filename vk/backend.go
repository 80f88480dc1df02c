// Package vk is the Vulkan device backend for cj, built on vulkan-go and
// GLFW. Importing it registers the "vulkan" backend:
//
//	import _ "github.com/hellhand/cj/vk"
//
// The backend owns one instance, one logical device, one graphics/present
// queue pair, one command pool and the render pass definitions every window
// and offscreen target is compatible with.
package vk

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/cj"
)

func init() {
	cj.RegisterDevice("vulkan", func() cj.Device { return New() })
}

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

const bindlessCapacity = 1024

type queueFamilyIndices struct {
	graphicsFamily uint32
	presentFamily  uint32
	hasGraphics    bool
	hasPresent     bool
}

// Backend implements cj.Device over Vulkan. All methods are confined to the
// thread that called Init, which must be the locked main thread (GLFW).
type Backend struct {
	cfg cj.DeviceConfig

	instance       vulkan.Instance
	debugCallback  vulkan.DebugReportCallback
	physicalDevice vulkan.PhysicalDevice
	deviceIndex    int
	device         vulkan.Device
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
	queues         queueFamilyIndices
	commandPool    vulkan.CommandPool

	surfaceFormat vulkan.SurfaceFormat

	// clearPass draws into a swapchain image from scratch; loadPass resumes
	// drawing over existing contents after an offscreen excursion;
	// offscreenPass targets a sampled intermediate image.
	clearPass     vulkan.RenderPass
	loadPass      vulkan.RenderPass
	offscreenPass vulkan.RenderPass

	descriptors *descriptorTable
	shaders     *shaderCache

	initialized bool
}

// New creates an uninitialized backend. The engine calls Init exactly once.
func New() *Backend {
	return &Backend{deviceIndex: -1}
}

// Init brings up GLFW, the Vulkan instance and the logical device. Device
// selection needs a presentation surface, so a hidden probe window is
// created and destroyed during init.
func (b *Backend) Init(cfg cj.DeviceConfig) error {
	if b.initialized {
		return fmt.Errorf("vk: init called twice: %w", cj.ErrAlreadyExists)
	}
	b.cfg = cfg

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("vk: init glfw: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("vk: GLFW Vulkan loader not found: %w", cj.ErrUnsupported)
	}
	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		glfw.Terminate()
		return fmt.Errorf("vk: vulkan init: %w", err)
	}

	// Device selection and surface format choice need a presentation
	// surface, so a hidden probe window exists for the rest of init.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	probe, err := glfw.CreateWindow(1, 1, "cj-probe", nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("vk: create probe window: %w", err)
	}
	defer probe.Destroy()

	if err := b.createInstance(probe); err != nil {
		glfw.Terminate()
		return err
	}
	if err := vulkan.InitInstance(b.instance); err != nil {
		return fmt.Errorf("vk: init instance: %w", err)
	}
	if err := b.setupDebugCallback(); err != nil {
		return err
	}

	surfacePtr, err := probe.CreateWindowSurface(b.instance, nil)
	if err != nil {
		return fmt.Errorf("vk: create probe surface: %w", err)
	}
	probeSurface := vulkan.SurfaceFromPointer(surfacePtr)
	defer vulkan.DestroySurface(b.instance, probeSurface, nil)

	if err := b.pickPhysicalDevice(probeSurface); err != nil {
		return err
	}
	if err := b.createLogicalDevice(); err != nil {
		return err
	}
	b.surfaceFormat = b.chooseSurfaceFormat(probeSurface)

	if err := b.createCommandPool(); err != nil {
		return err
	}
	if err := b.createRenderPasses(); err != nil {
		return err
	}
	b.descriptors, err = newDescriptorTable(b.device, bindlessCapacity)
	if err != nil {
		return err
	}
	b.shaders = newShaderCache(b.device, cfg.ShaderDir)

	b.initialized = true
	cj.Logger().Info("vk: device ready", "index", b.deviceIndex)
	return nil
}

// Shutdown tears down every backend-owned object. Surfaces and pipelines
// handed out to the core must already be destroyed.
func (b *Backend) Shutdown() {
	if !b.initialized {
		return
	}
	b.initialized = false
	vulkan.DeviceWaitIdle(b.device)

	b.shaders.destroy()
	b.descriptors.destroy(b.device)
	for _, pass := range []vulkan.RenderPass{b.clearPass, b.loadPass, b.offscreenPass} {
		if pass != vulkan.RenderPass(vulkan.NullHandle) {
			vulkan.DestroyRenderPass(b.device, pass, nil)
		}
	}
	if b.commandPool != vulkan.CommandPool(vulkan.NullHandle) {
		vulkan.DestroyCommandPool(b.device, b.commandPool, nil)
	}
	if b.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DestroyDevice(b.device, nil)
	}
	if b.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(b.instance, b.debugCallback, nil)
	}
	if b.instance != vulkan.Instance(vulkan.NullHandle) {
		vulkan.DestroyInstance(b.instance, nil)
	}
	glfw.Terminate()
}

// WaitIdle blocks until the device finished all submitted work. A lost
// device is surfaced as ErrDeviceLost; it is not recoverable here.
func (b *Backend) WaitIdle() error {
	if res := vulkan.DeviceWaitIdle(b.device); res != vulkan.Success {
		return wrapResult("device wait idle", res)
	}
	return nil
}

// DeviceIndex reports the selected physical device's enumeration index.
func (b *Backend) DeviceIndex() int { return b.deviceIndex }

// BindlessCapacity reports the descriptor slot table size.
func (b *Backend) BindlessCapacity() uint32 { return bindlessCapacity }

// PollEvents pumps GLFW; window callbacks fire into their event sinks.
func (b *Backend) PollEvents() { glfw.PollEvents() }

func (b *Backend) createInstance(probe *glfw.Window) error {
	if b.cfg.EnableValidation && !validationLayersSupported() {
		return fmt.Errorf("vk: requested validation layers not available: %w", cj.ErrUnsupported)
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   b.cfg.AppName,
		ApplicationVersion: vulkan.MakeVersion(0, 1, 0),
		PEngineName:        "cj",
		EngineVersion:      vulkan.MakeVersion(0, 1, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := probe.GetRequiredInstanceExtensions()
	if b.cfg.EnableValidation {
		extensions = append(extensions, "VK_EXT_debug_report")
	}

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if b.cfg.EnableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if res := vulkan.CreateInstance(&createInfo, nil, &b.instance); res != vulkan.Success {
		return wrapResult("create instance", res)
	}
	return nil
}

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

func (b *Backend) setupDebugCallback() error {
	if !b.cfg.EnableValidation {
		return nil
	}
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			cj.Logger().Warn("vk: validation", "layer", layerPrefix, "code", messageCode, "message", message)
			return vulkan.False
		},
	}
	if res := vulkan.CreateDebugReportCallback(b.instance, &createInfo, nil, &b.debugCallback); res != vulkan.Success {
		return wrapResult("create debug callback", res)
	}
	return nil
}

func (b *Backend) pickPhysicalDevice(surface vulkan.Surface) error {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(b.instance, &count, nil); res != vulkan.Success {
		return wrapResult("enumerate physical devices", res)
	}
	if count == 0 {
		return fmt.Errorf("vk: no Vulkan devices present: %w", cj.ErrUnsupported)
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(b.instance, &count, devices); res != vulkan.Success {
		return wrapResult("enumerate physical devices", res)
	}

	bestScore := int32(-1)
	for i, dev := range devices {
		q := findQueueFamilies(dev, surface)
		if !q.hasGraphics || !q.hasPresent {
			continue
		}
		if !deviceExtensionsSupported(dev) {
			continue
		}
		if b.cfg.DeviceIndex >= 0 && i != b.cfg.DeviceIndex {
			continue
		}
		score := deviceScore(dev)
		if score > bestScore {
			bestScore = score
			b.physicalDevice = dev
			b.deviceIndex = i
			b.queues = q
		}
	}
	if bestScore < 0 {
		return fmt.Errorf("vk: no suitable GPU found: %w", cj.ErrUnsupported)
	}
	return nil
}

func deviceScore(device vulkan.PhysicalDevice) int32 {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(device, &props)
	props.Deref()

	switch props.DeviceType {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func deviceExtensionsSupported(device vulkan.PhysicalDevice) bool {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[ext] {
			return false
		}
	}
	return true
}

func findQueueFamilies(device vulkan.PhysicalDevice, surface vulkan.Surface) queueFamilyIndices {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
			indices.graphicsFamily = uint32(i)
			indices.hasGraphics = true
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &present)
		if present == vulkan.True {
			indices.presentFamily = uint32(i)
			indices.hasPresent = true
		}
		if indices.hasGraphics && indices.hasPresent {
			break
		}
	}
	return indices
}

func (b *Backend) createLogicalDevice() error {
	var queueInfos []vulkan.DeviceQueueCreateInfo
	uniqueFamilies := map[uint32]bool{
		b.queues.graphicsFamily: true,
		b.queues.presentFamily:  true,
	}
	priority := float32(1.0)
	for family := range uniqueFamilies {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}

	deviceFeatures := vulkan.PhysicalDeviceFeatures{}
	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{deviceFeatures},
		PpEnabledExtensionNames: deviceExtensions,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
	}
	if b.cfg.EnableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	if res := vulkan.CreateDevice(b.physicalDevice, &createInfo, nil, &b.device); res != vulkan.Success {
		return wrapResult("create logical device", res)
	}
	vulkan.GetDeviceQueue(b.device, b.queues.graphicsFamily, 0, &b.graphicsQueue)
	vulkan.GetDeviceQueue(b.device, b.queues.presentFamily, 0, &b.presentQueue)
	return nil
}

func (b *Backend) chooseSurfaceFormat(surface vulkan.Surface) vulkan.SurfaceFormat {
	var count uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(b.physicalDevice, surface, &count, nil)
	formats := make([]vulkan.SurfaceFormat, count)
	vulkan.GetPhysicalDeviceSurfaceFormats(b.physicalDevice, surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	for _, f := range formats {
		if f.Format == vulkan.FormatB8g8r8a8Srgb && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

func (b *Backend) createCommandPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: b.queues.graphicsFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vulkan.CreateCommandPool(b.device, &poolInfo, nil, &b.commandPool); res != vulkan.Success {
		return wrapResult("create command pool", res)
	}
	return nil
}

// createRenderPasses builds the three single-subpass color-only passes all
// pipelines and framebuffers in this backend are compatible with.
func (b *Backend) createRenderPasses() error {
	make1 := func(loadOp vulkan.AttachmentLoadOp, initial, final vulkan.ImageLayout) (vulkan.RenderPass, error) {
		colorAttachment := vulkan.AttachmentDescription{
			Format:         b.surfaceFormat.Format,
			Samples:        vulkan.SampleCount1Bit,
			LoadOp:         loadOp,
			StoreOp:        vulkan.AttachmentStoreOpStore,
			StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
			StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
			InitialLayout:  initial,
			FinalLayout:    final,
		}
		colorRef := vulkan.AttachmentReference{
			Attachment: 0,
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}
		subpass := vulkan.SubpassDescription{
			PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
			ColorAttachmentCount: 1,
			PColorAttachments:    []vulkan.AttachmentReference{colorRef},
		}
		dependency := vulkan.SubpassDependency{
			SrcSubpass:    vulkan.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask: 0,
			DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
			DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit),
		}
		createInfo := vulkan.RenderPassCreateInfo{
			SType:           vulkan.StructureTypeRenderPassCreateInfo,
			AttachmentCount: 1,
			PAttachments:    []vulkan.AttachmentDescription{colorAttachment},
			SubpassCount:    1,
			PSubpasses:      []vulkan.SubpassDescription{subpass},
			DependencyCount: 1,
			PDependencies:   []vulkan.SubpassDependency{dependency},
		}
		var pass vulkan.RenderPass
		if res := vulkan.CreateRenderPass(b.device, &createInfo, nil, &pass); res != vulkan.Success {
			return pass, wrapResult("create render pass", res)
		}
		return pass, nil
	}

	var err error
	if b.clearPass, err = make1(vulkan.AttachmentLoadOpClear, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutPresentSrc); err != nil {
		return err
	}
	if b.loadPass, err = make1(vulkan.AttachmentLoadOpLoad, vulkan.ImageLayoutPresentSrc, vulkan.ImageLayoutPresentSrc); err != nil {
		return err
	}
	if b.offscreenPass, err = make1(vulkan.AttachmentLoadOpClear, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutShaderReadOnlyOptimal); err != nil {
		return err
	}
	return nil
}

// wrapResult maps a Vulkan result code onto the core error taxonomy.
func wrapResult(context string, res vulkan.Result) error {
	var sentinel error
	switch res {
	case vulkan.ErrorOutOfDate:
		sentinel = cj.ErrOutOfDate
	case vulkan.ErrorSurfaceLost:
		sentinel = cj.ErrSurfaceLost
	case vulkan.ErrorDeviceLost:
		sentinel = cj.ErrDeviceLost
	case vulkan.ErrorOutOfHostMemory, vulkan.ErrorOutOfDeviceMemory:
		sentinel = cj.ErrOutOfMemory
	default:
		sentinel = cj.ErrUnknown
	}
	return fmt.Errorf("vk: %s: %v: %w", context, vulkan.Error(res), sentinel)
}

var errNotInitialized = errors.New("vk: backend not initialized")
