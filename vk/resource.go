package vk

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/vulkan-go/vulkan"
	xdraw "golang.org/x/image/draw"

	"github.com/hellhand/cj"
)

// descriptorTable is the backend-wide slot table. Every resource gets a
// stable slot number; sampled textures additionally publish their view and
// sampler under that slot so bindings can be (re)written from it. Slot 0 is
// reserved so it can mean "stale" upstream.
type descriptorTable struct {
	layout vulkan.DescriptorSetLayout
	pool   vulkan.DescriptorPool

	views    []vulkan.ImageView
	samplers []vulkan.Sampler
	used     []bool
	next     uint32
}

func newDescriptorTable(device vulkan.Device, capacity uint32) (*descriptorTable, error) {
	binding := vulkan.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vulkan.ShaderStageFlags(vulkan.ShaderStageFragmentBit),
	}
	layoutInfo := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vulkan.DescriptorSetLayoutBinding{binding},
	}
	t := &descriptorTable{
		views:    make([]vulkan.ImageView, capacity),
		samplers: make([]vulkan.Sampler, capacity),
		used:     make([]bool, capacity),
		next:     1,
	}
	if res := vulkan.CreateDescriptorSetLayout(device, &layoutInfo, nil, &t.layout); res != vulkan.Success {
		return nil, wrapResult("create descriptor set layout", res)
	}

	poolSize := vulkan.DescriptorPoolSize{
		Type:            vulkan.DescriptorTypeCombinedImageSampler,
		DescriptorCount: capacity,
	}
	poolInfo := vulkan.DescriptorPoolCreateInfo{
		SType:         vulkan.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vulkan.DescriptorPoolCreateFlags(vulkan.DescriptorPoolCreateFreeDescriptorSetBit),
		PoolSizeCount: 1,
		PPoolSizes:    []vulkan.DescriptorPoolSize{poolSize},
		MaxSets:       capacity,
	}
	if res := vulkan.CreateDescriptorPool(device, &poolInfo, nil, &t.pool); res != vulkan.Success {
		vulkan.DestroyDescriptorSetLayout(device, t.layout, nil)
		return nil, wrapResult("create descriptor pool", res)
	}
	return t, nil
}

func (t *descriptorTable) destroy(device vulkan.Device) {
	vulkan.DestroyDescriptorPool(device, t.pool, nil)
	vulkan.DestroyDescriptorSetLayout(device, t.layout, nil)
}

// alloc hands out the lowest free slot, 0 when the table is exhausted.
func (t *descriptorTable) alloc() uint32 {
	for i := uint32(1); i < uint32(len(t.used)); i++ {
		slot := (t.next + i - 1) % uint32(len(t.used))
		if slot == 0 {
			continue
		}
		if !t.used[slot] {
			t.used[slot] = true
			t.next = slot + 1
			return slot
		}
	}
	return 0
}

func (t *descriptorTable) publish(slot uint32, view vulkan.ImageView, sampler vulkan.Sampler) {
	t.views[slot] = view
	t.samplers[slot] = sampler
}

func (t *descriptorTable) release(slot uint32) {
	if slot == 0 || slot >= uint32(len(t.used)) {
		return
	}
	t.used[slot] = false
	t.views[slot] = vulkan.ImageView(vulkan.NullHandle)
	t.samplers[slot] = vulkan.Sampler(vulkan.NullHandle)
}

// newSet allocates a descriptor set and points it at the given slot's
// image. The slot must have a published view.
func (t *descriptorTable) newSet(device vulkan.Device, slot uint32) (vulkan.DescriptorSet, error) {
	allocInfo := vulkan.DescriptorSetAllocateInfo{
		SType:              vulkan.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     t.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vulkan.DescriptorSetLayout{t.layout},
	}
	var set vulkan.DescriptorSet
	if res := vulkan.AllocateDescriptorSets(device, &allocInfo, &set); res != vulkan.Success {
		return set, wrapResult("allocate descriptor set", res)
	}
	t.writeSet(device, set, slot)
	return set, nil
}

func (t *descriptorTable) writeSet(device vulkan.Device, set vulkan.DescriptorSet, slot uint32) {
	imageInfo := vulkan.DescriptorImageInfo{
		ImageLayout: vulkan.ImageLayoutShaderReadOnlyOptimal,
		ImageView:   t.views[slot],
		Sampler:     t.samplers[slot],
	}
	write := vulkan.WriteDescriptorSet{
		SType:           vulkan.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DstArrayElement: 0,
		DescriptorType:  vulkan.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		PImageInfo:      []vulkan.DescriptorImageInfo{imageInfo},
	}
	vulkan.UpdateDescriptorSets(device, 1, []vulkan.WriteDescriptorSet{write}, 0, nil)
}

func (t *descriptorTable) freeSet(device vulkan.Device, set vulkan.DescriptorSet) {
	vulkan.FreeDescriptorSets(device, t.pool, 1, &set)
}

// texture is a device-local sampled image with its own view and sampler.
// Render-target textures additionally allow color attachment usage.
type texture struct {
	backend *Backend
	image   vulkan.Image
	memory  vulkan.DeviceMemory
	view    vulkan.ImageView
	sampler vulkan.Sampler
	slot    uint32
	extent  cj.Extent
}

// CreateTexture creates a sampled texture, uploading desc.Pixels through a
// staging buffer when present. Pixels of a different size than the texture
// are scaled during RGBA conversion.
func (b *Backend) CreateTexture(desc cj.TextureDesc) (cj.Texture, error) {
	if !b.initialized {
		return nil, errNotInitialized
	}
	format := vulkan.FormatR8g8b8a8Srgb
	usage := vulkan.ImageUsageFlags(vulkan.ImageUsageTransferDstBit | vulkan.ImageUsageSampledBit)
	if desc.RenderTarget {
		format = b.surfaceFormat.Format
		usage |= vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit)
	}

	tex := &texture{backend: b, extent: cj.Extent{Width: desc.Width, Height: desc.Height}}
	tex.slot = b.descriptors.alloc()
	if tex.slot == 0 {
		return nil, fmt.Errorf("vk: descriptor table full: %w", cj.ErrOutOfMemory)
	}

	var err error
	tex.image, tex.memory, err = b.createImage(desc.Width, desc.Height, format, usage)
	if err != nil {
		b.descriptors.release(tex.slot)
		return nil, err
	}
	tex.view, err = b.createImageView(tex.image, format)
	if err != nil {
		tex.partialDestroy()
		return nil, err
	}
	tex.sampler, err = b.createSampler(cj.SamplerDesc{Linear: true, Repeat: true})
	if err != nil {
		tex.partialDestroy()
		return nil, err
	}
	b.descriptors.publish(tex.slot, tex.view, tex.sampler)

	if desc.Pixels != nil {
		if err := b.uploadPixels(tex, desc.Pixels); err != nil {
			tex.Destroy()
			return nil, err
		}
	} else if !desc.RenderTarget {
		// Leave the image in a sampleable layout even without contents.
		if err := b.transitionImageLayout(tex.image,
			vulkan.ImageLayoutUndefined, vulkan.ImageLayoutShaderReadOnlyOptimal); err != nil {
			tex.Destroy()
			return nil, err
		}
	}
	return tex, nil
}

func (t *texture) DescriptorSlot() uint32 { return t.slot }

func (t *texture) Destroy() {
	t.backend.descriptors.release(t.slot)
	if t.sampler != vulkan.Sampler(vulkan.NullHandle) {
		vulkan.DestroySampler(t.backend.device, t.sampler, nil)
	}
	t.partialDestroy()
}

func (t *texture) partialDestroy() {
	dev := t.backend.device
	if t.view != vulkan.ImageView(vulkan.NullHandle) {
		vulkan.DestroyImageView(dev, t.view, nil)
		t.view = vulkan.ImageView(vulkan.NullHandle)
	}
	if t.image != vulkan.Image(vulkan.NullHandle) {
		vulkan.DestroyImage(dev, t.image, nil)
		t.image = vulkan.Image(vulkan.NullHandle)
	}
	if t.memory != vulkan.DeviceMemory(vulkan.NullHandle) {
		vulkan.FreeMemory(dev, t.memory, nil)
		t.memory = vulkan.DeviceMemory(vulkan.NullHandle)
	}
}

// uploadPixels converts src to tightly packed RGBA at the texture's size and
// copies it in through a staging buffer.
func (b *Backend) uploadPixels(tex *texture, src image.Image) error {
	rgba := image.NewRGBA(image.Rect(0, 0, int(tex.extent.Width), int(tex.extent.Height)))
	if src.Bounds().Dx() == int(tex.extent.Width) && src.Bounds().Dy() == int(tex.extent.Height) {
		xdraw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	size := vulkan.DeviceSize(len(rgba.Pix))
	staging, stagingMem, err := b.createBuffer(size,
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
		vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	defer func() {
		vulkan.DestroyBuffer(b.device, staging, nil)
		vulkan.FreeMemory(b.device, stagingMem, nil)
	}()

	var mapped unsafe.Pointer
	if res := vulkan.MapMemory(b.device, stagingMem, 0, size, 0, &mapped); res != vulkan.Success {
		return wrapResult("map staging memory", res)
	}
	vulkan.Memcopy(mapped, rgba.Pix)
	vulkan.UnmapMemory(b.device, stagingMem)

	if err := b.transitionImageLayout(tex.image,
		vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}
	if err := b.copyBufferToImage(staging, tex.image, tex.extent.Width, tex.extent.Height); err != nil {
		return err
	}
	return b.transitionImageLayout(tex.image,
		vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutShaderReadOnlyOptimal)
}

// buffer is a host-visible GPU buffer.
type buffer struct {
	backend *Backend
	buf     vulkan.Buffer
	memory  vulkan.DeviceMemory
	slot    uint32
	size    int
}

// CreateBuffer creates a host-visible vertex/storage buffer of the given
// size. Contents are written by the pipelines that own quad geometry.
func (b *Backend) CreateBuffer(desc cj.BufferDesc) (cj.Buffer, error) {
	if !b.initialized {
		return nil, errNotInitialized
	}
	slot := b.descriptors.alloc()
	if slot == 0 {
		return nil, fmt.Errorf("vk: descriptor table full: %w", cj.ErrOutOfMemory)
	}
	buf, mem, err := b.createBuffer(vulkan.DeviceSize(desc.Size),
		vulkan.BufferUsageFlags(vulkan.BufferUsageVertexBufferBit|vulkan.BufferUsageTransferDstBit),
		vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit))
	if err != nil {
		b.descriptors.release(slot)
		return nil, err
	}
	return &buffer{backend: b, buf: buf, memory: mem, slot: slot, size: desc.Size}, nil
}

func (bu *buffer) DescriptorSlot() uint32 { return bu.slot }

func (bu *buffer) Destroy() {
	bu.backend.descriptors.release(bu.slot)
	vulkan.DestroyBuffer(bu.backend.device, bu.buf, nil)
	vulkan.FreeMemory(bu.backend.device, bu.memory, nil)
}

// write copies data into the buffer at offset 0.
func (bu *buffer) write(data []byte) error {
	var mapped unsafe.Pointer
	if res := vulkan.MapMemory(bu.backend.device, bu.memory, 0, vulkan.DeviceSize(len(data)), 0, &mapped); res != vulkan.Success {
		return wrapResult("map buffer memory", res)
	}
	vulkan.Memcopy(mapped, data)
	vulkan.UnmapMemory(bu.backend.device, bu.memory)
	return nil
}

// sampler is a standalone sampler object.
type sampler struct {
	backend *Backend
	sampler vulkan.Sampler
	slot    uint32
}

// CreateSampler creates a standalone sampler.
func (b *Backend) CreateSampler(desc cj.SamplerDesc) (cj.Sampler, error) {
	if !b.initialized {
		return nil, errNotInitialized
	}
	slot := b.descriptors.alloc()
	if slot == 0 {
		return nil, fmt.Errorf("vk: descriptor table full: %w", cj.ErrOutOfMemory)
	}
	s, err := b.createSampler(desc)
	if err != nil {
		b.descriptors.release(slot)
		return nil, err
	}
	return &sampler{backend: b, sampler: s, slot: slot}, nil
}

func (s *sampler) DescriptorSlot() uint32 { return s.slot }

func (s *sampler) Destroy() {
	s.backend.descriptors.release(s.slot)
	vulkan.DestroySampler(s.backend.device, s.sampler, nil)
}

func (b *Backend) createSampler(desc cj.SamplerDesc) (vulkan.Sampler, error) {
	filter := vulkan.FilterNearest
	if desc.Linear {
		filter = vulkan.FilterLinear
	}
	addressMode := vulkan.SamplerAddressModeClampToEdge
	if desc.Repeat {
		addressMode = vulkan.SamplerAddressModeRepeat
	}
	samplerInfo := vulkan.SamplerCreateInfo{
		SType:                   vulkan.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		AddressModeU:            addressMode,
		AddressModeV:            addressMode,
		AddressModeW:            addressMode,
		AnisotropyEnable:        vulkan.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vulkan.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vulkan.False,
		CompareEnable:           vulkan.False,
		CompareOp:               vulkan.CompareOpAlways,
		MipmapMode:              vulkan.SamplerMipmapModeLinear,
	}
	var s vulkan.Sampler
	if res := vulkan.CreateSampler(b.device, &samplerInfo, nil, &s); res != vulkan.Success {
		return s, wrapResult("create sampler", res)
	}
	return s, nil
}

func (b *Backend) createImage(width, height uint32, format vulkan.Format, usage vulkan.ImageUsageFlags) (vulkan.Image, vulkan.DeviceMemory, error) {
	imageInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Extent: vulkan.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vulkan.ImageTilingOptimal,
		InitialLayout: vulkan.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   vulkan.SharingModeExclusive,
		Samples:       vulkan.SampleCount1Bit,
	}
	var img vulkan.Image
	if res := vulkan.CreateImage(b.device, &imageInfo, nil, &img); res != vulkan.Success {
		return img, vulkan.DeviceMemory(vulkan.NullHandle), wrapResult("create image", res)
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(b.device, img, &memReq)
	memReq.Deref()

	memType, err := b.findMemoryType(memReq.MemoryTypeBits,
		vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vulkan.DestroyImage(b.device, img, nil)
		return img, vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memType,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(b.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyImage(b.device, img, nil)
		return img, memory, wrapResult("allocate image memory", res)
	}
	vulkan.BindImageMemory(b.device, img, memory, 0)
	return img, memory, nil
}

func (b *Backend) createImageView(img vulkan.Image, format vulkan.Format) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(b.device, &viewInfo, nil, &view); res != vulkan.Success {
		return view, wrapResult("create image view", res)
	}
	return view, nil
}

func (b *Backend) createBuffer(size vulkan.DeviceSize, usage vulkan.BufferUsageFlags, props vulkan.MemoryPropertyFlags) (vulkan.Buffer, vulkan.DeviceMemory, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var buf vulkan.Buffer
	if res := vulkan.CreateBuffer(b.device, &bufferInfo, nil, &buf); res != vulkan.Success {
		return buf, vulkan.DeviceMemory(vulkan.NullHandle), wrapResult("create buffer", res)
	}

	var memReq vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(b.device, buf, &memReq)
	memReq.Deref()

	memType, err := b.findMemoryType(memReq.MemoryTypeBits, props)
	if err != nil {
		vulkan.DestroyBuffer(b.device, buf, nil)
		return buf, vulkan.DeviceMemory(vulkan.NullHandle), err
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memType,
	}
	var memory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(b.device, &allocInfo, nil, &memory); res != vulkan.Success {
		vulkan.DestroyBuffer(b.device, buf, nil)
		return buf, memory, wrapResult("allocate buffer memory", res)
	}
	vulkan.BindBufferMemory(b.device, buf, memory, 0)
	return buf, memory, nil
}

func (b *Backend) findMemoryType(typeFilter uint32, props vulkan.MemoryPropertyFlags) (uint32, error) {
	var memProps vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(b.physicalDevice, &memProps)
	memProps.Deref()

	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && memProps.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vk: no suitable memory type: %w", cj.ErrOutOfMemory)
}

// beginOneShot starts a throwaway command buffer for setup work.
func (b *Backend) beginOneShot() (vulkan.CommandBuffer, error) {
	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandPool:        b.commandPool,
		CommandBufferCount: 1,
	}
	cmdBuffers := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(b.device, &allocInfo, cmdBuffers); res != vulkan.Success {
		return nil, wrapResult("allocate one-shot command buffer", res)
	}
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vulkan.BeginCommandBuffer(cmdBuffers[0], &beginInfo); res != vulkan.Success {
		vulkan.FreeCommandBuffers(b.device, b.commandPool, 1, cmdBuffers)
		return nil, wrapResult("begin one-shot command buffer", res)
	}
	return cmdBuffers[0], nil
}

// endOneShot submits the one-shot buffer and waits for it to finish.
func (b *Backend) endOneShot(cmd vulkan.CommandBuffer) error {
	vulkan.EndCommandBuffer(cmd)
	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vulkan.CommandBuffer{cmd},
	}
	defer vulkan.FreeCommandBuffers(b.device, b.commandPool, 1, []vulkan.CommandBuffer{cmd})
	if res := vulkan.QueueSubmit(b.graphicsQueue, 1, []vulkan.SubmitInfo{submitInfo}, vulkan.Fence(vulkan.NullHandle)); res != vulkan.Success {
		return wrapResult("submit one-shot command buffer", res)
	}
	if res := vulkan.QueueWaitIdle(b.graphicsQueue); res != vulkan.Success {
		return wrapResult("wait one-shot command buffer", res)
	}
	return nil
}

func (b *Backend) transitionImageLayout(img vulkan.Image, oldLayout, newLayout vulkan.ImageLayout) error {
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var srcStage, dstStage vulkan.PipelineStageFlags
	switch {
	case oldLayout == vulkan.ImageLayoutUndefined && newLayout == vulkan.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
		srcStage = vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit)
		dstStage = vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
	case oldLayout == vulkan.ImageLayoutTransferDstOptimal && newLayout == vulkan.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
		barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessShaderReadBit)
		srcStage = vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
		dstStage = vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit)
	case oldLayout == vulkan.ImageLayoutUndefined && newLayout == vulkan.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vulkan.AccessFlags(vulkan.AccessShaderReadBit)
		srcStage = vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit)
		dstStage = vulkan.PipelineStageFlags(vulkan.PipelineStageFragmentShaderBit)
	default:
		return fmt.Errorf("vk: unsupported layout transition %d -> %d: %w", oldLayout, newLayout, cj.ErrUnsupported)
	}

	cmd, err := b.beginOneShot()
	if err != nil {
		return err
	}
	vulkan.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
	return b.endOneShot(cmd)
}

func (b *Backend) copyBufferToImage(buf vulkan.Buffer, img vulkan.Image, width, height uint32) error {
	cmd, err := b.beginOneShot()
	if err != nil {
		return err
	}
	region := vulkan.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vulkan.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vulkan.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vulkan.CmdCopyBufferToImage(cmd, buf, img, vulkan.ImageLayoutTransferDstOptimal, 1, []vulkan.BufferImageCopy{region})
	return b.endOneShot(cmd)
}
