package vk

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"github.com/hellhand/cj"
)

// Quad geometry shared by every pipeline: two triangles, interleaved
// position and UV, 16 bytes per vertex.
type quadVertex struct {
	pos [2]float32
	uv  [2]float32
}

const quadVertexCount = 6

var quadVertices = []quadVertex{
	{pos: [2]float32{-1, -1}, uv: [2]float32{0, 0}},
	{pos: [2]float32{1, -1}, uv: [2]float32{1, 0}},
	{pos: [2]float32{1, 1}, uv: [2]float32{1, 1}},
	{pos: [2]float32{-1, -1}, uv: [2]float32{0, 0}},
	{pos: [2]float32{1, 1}, uv: [2]float32{1, 1}},
	{pos: [2]float32{-1, 1}, uv: [2]float32{0, 1}},
}

func quadVertexBytes() []byte {
	const stride = int(unsafe.Sizeof(quadVertex{}))
	return unsafe.Slice((*byte)(unsafe.Pointer(&quadVertices[0])), stride*len(quadVertices))
}

// shaderCache loads compiled SPIR-V modules from the shader directory once
// and keeps them alive until backend shutdown.
type shaderCache struct {
	device  vulkan.Device
	dir     string
	modules map[string]vulkan.ShaderModule
}

func newShaderCache(device vulkan.Device, dir string) *shaderCache {
	if dir == "" {
		dir = "shaders"
	}
	return &shaderCache{
		device:  device,
		dir:     dir,
		modules: make(map[string]vulkan.ShaderModule),
	}
}

func (c *shaderCache) load(name string) (vulkan.ShaderModule, error) {
	if m, ok := c.modules[name]; ok {
		return m, nil
	}
	path := filepath.Join(c.dir, name)
	code, err := os.ReadFile(path)
	if err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), fmt.Errorf("vk: read shader %s: %w", path, err)
	}
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(c.device, &createInfo, nil, &module); res != vulkan.Success {
		return module, wrapResult("create shader module "+name, res)
	}
	c.modules[name] = module
	return module, nil
}

func (c *shaderCache) destroy() {
	for _, m := range c.modules {
		vulkan.DestroyShaderModule(c.device, m, nil)
	}
	c.modules = make(map[string]vulkan.ShaderModule)
}

func sliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer(&data[0]))[:len(data)/4]
}

// buildPipeline assembles a graphics pipeline over the quad vertex layout
// with dynamic viewport and scissor. Created against clearPass; the load and
// offscreen passes are render-pass compatible (same attachment format), so
// one pipeline serves all three.
func (b *Backend) buildPipeline(vertShader, fragShader string, layout vulkan.PipelineLayout) (vulkan.Pipeline, error) {
	vert, err := b.shaders.load(vertShader)
	if err != nil {
		return vulkan.Pipeline(vulkan.NullHandle), err
	}
	frag, err := b.shaders.load(fragShader)
	if err != nil {
		return vulkan.Pipeline(vulkan.NullHandle), err
	}

	stages := []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vert,
			PName:  "main\x00",
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: frag,
			PName:  "main\x00",
		},
	}

	bindingDesc := vulkan.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(quadVertex{})),
		InputRate: vulkan.VertexInputRateVertex,
	}
	attrDescs := []vulkan.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vulkan.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(quadVertex{}.uv))},
	}
	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vulkan.VertexInputBindingDescription{bindingDesc},
		VertexAttributeDescriptionCount: uint32(len(attrDescs)),
		PVertexAttributeDescriptions:    attrDescs,
	}

	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vulkan.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vulkan.False,
	}

	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             vulkan.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vulkan.CullModeFlags(vulkan.CullModeNone),
		FrontFace:               vulkan.FrontFaceClockwise,
		DepthBiasEnable:         vulkan.False,
	}

	multisampling := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vulkan.False,
		RasterizationSamples: vulkan.SampleCount1Bit,
	}

	colorBlendAttachment := vulkan.PipelineColorBlendAttachmentState{
		ColorWriteMask: vulkan.ColorComponentFlags(
			vulkan.ColorComponentRBit | vulkan.ColorComponentGBit |
				vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
		BlendEnable:         vulkan.True,
		SrcColorBlendFactor: vulkan.BlendFactorSrcAlpha,
		DstColorBlendFactor: vulkan.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vulkan.BlendOpAdd,
		SrcAlphaBlendFactor: vulkan.BlendFactorOne,
		DstAlphaBlendFactor: vulkan.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vulkan.BlendOpAdd,
	}
	colorBlending := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vulkan.False,
		AttachmentCount: 1,
		PAttachments:    []vulkan.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicState := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates:    []vulkan.DynamicState{vulkan.DynamicStateViewport, vulkan.DynamicStateScissor},
	}

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          b.clearPass,
		Subpass:             0,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	if res := vulkan.CreateGraphicsPipelines(b.device,
		vulkan.PipelineCache(vulkan.NullHandle), 1,
		[]vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vulkan.Success {
		return pipelines[0], wrapResult("create graphics pipeline", res)
	}
	return pipelines[0], nil
}

func (b *Backend) createPipelineLayout(pushSize uint32, withDescriptors bool) (vulkan.PipelineLayout, error) {
	pushRange := vulkan.PushConstantRange{
		StageFlags: vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit | vulkan.ShaderStageFragmentBit),
		Offset:     0,
		Size:       pushSize,
	}
	layoutInfo := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vulkan.PushConstantRange{pushRange},
	}
	if withDescriptors {
		layoutInfo.SetLayoutCount = 1
		layoutInfo.PSetLayouts = []vulkan.DescriptorSetLayout{b.descriptors.layout}
	}
	var layout vulkan.PipelineLayout
	if res := vulkan.CreatePipelineLayout(b.device, &layoutInfo, nil, &layout); res != vulkan.Success {
		return layout, wrapResult("create pipeline layout", res)
	}
	return layout, nil
}

// newQuadBuffer creates a vertex buffer pre-filled with the quad.
func (b *Backend) newQuadBuffer() (*buffer, error) {
	buf, err := b.CreateBuffer(cj.BufferDesc{Size: len(quadVertexBytes())})
	if err != nil {
		return nil, err
	}
	vb := buf.(*buffer)
	if err := vb.write(quadVertexBytes()); err != nil {
		vb.Destroy()
		return nil, err
	}
	return vb, nil
}

// colorPipeline draws a solid-color quad. Each color node owns one, along
// with its own copy of the quad geometry.
type colorPipeline struct {
	backend  *Backend
	layout   vulkan.PipelineLayout
	pipeline vulkan.Pipeline
	quad     *buffer
}

// NewColorPipeline builds a pipeline for one color node.
func (b *Backend) NewColorPipeline() (cj.ColorPipeline, error) {
	if !b.initialized {
		return nil, errNotInitialized
	}
	p := &colorPipeline{backend: b}
	var err error
	if p.layout, err = b.createPipelineLayout(uint32(unsafe.Sizeof(cj.ColorPush{})), false); err != nil {
		return nil, err
	}
	if p.pipeline, err = b.buildPipeline("quad.vert.spv", "color.frag.spv", p.layout); err != nil {
		vulkan.DestroyPipelineLayout(b.device, p.layout, nil)
		return nil, err
	}
	if p.quad, err = b.newQuadBuffer(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *colorPipeline) Record(rec cj.Recorder, push cj.ColorPush) error {
	r := asRecorder(rec)
	r.beginWindowPass()
	r.bindPipeline(p.pipeline)
	r.bindVertexBuffer(p.quad.buf)
	r.pushConstants(p.layout, unsafe.Pointer(&push), uint32(unsafe.Sizeof(push)))
	r.drawQuad()
	return nil
}

func (p *colorPipeline) Destroy() {
	if p.quad != nil {
		p.quad.Destroy()
	}
	if p.pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(p.backend.device, p.pipeline, nil)
	}
	vulkan.DestroyPipelineLayout(p.backend.device, p.layout, nil)
}

// texturedPipeline is the engine-wide shared pipeline for textured quads;
// nodes hold per-node descriptor bindings against it.
type texturedPipeline struct {
	backend  *Backend
	layout   vulkan.PipelineLayout
	pipeline vulkan.Pipeline
	quad     *buffer
}

// Textured builds the shared textured pipeline.
func (b *Backend) Textured() (cj.TexturedPipeline, error) {
	if !b.initialized {
		return nil, errNotInitialized
	}
	p := &texturedPipeline{backend: b}
	var err error
	if p.layout, err = b.createPipelineLayout(uint32(unsafe.Sizeof(cj.TexturedPush{})), true); err != nil {
		return nil, err
	}
	if p.pipeline, err = b.buildPipeline("quad.vert.spv", "textured.frag.spv", p.layout); err != nil {
		vulkan.DestroyPipelineLayout(b.device, p.layout, nil)
		return nil, err
	}
	if p.quad, err = b.newQuadBuffer(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *texturedPipeline) NewBinding(slot uint32) (cj.TexturedBinding, error) {
	set, err := p.backend.descriptors.newSet(p.backend.device, slot)
	if err != nil {
		return nil, err
	}
	return &texturedBinding{pipeline: p, set: set, slot: slot}, nil
}

func (p *texturedPipeline) Destroy() {
	if p.quad != nil {
		p.quad.Destroy()
	}
	if p.pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(p.backend.device, p.pipeline, nil)
	}
	vulkan.DestroyPipelineLayout(p.backend.device, p.layout, nil)
}

type texturedBinding struct {
	pipeline *texturedPipeline
	set      vulkan.DescriptorSet
	slot     uint32
}

func (tb *texturedBinding) Record(rec cj.Recorder, push cj.TexturedPush) error {
	r := asRecorder(rec)
	r.beginWindowPass()
	p := tb.pipeline
	r.bindPipeline(p.pipeline)
	r.bindDescriptorSet(p.layout, tb.set)
	r.bindVertexBuffer(p.quad.buf)
	r.pushConstants(p.layout, unsafe.Pointer(&push), uint32(unsafe.Sizeof(push)))
	r.drawQuad()
	return nil
}

func (tb *texturedBinding) UpdateSlot(slot uint32) error {
	// Descriptor writes must not race in-flight frames.
	if err := tb.pipeline.backend.WaitIdle(); err != nil {
		return err
	}
	tb.pipeline.backend.descriptors.writeSet(tb.pipeline.backend.device, tb.set, slot)
	tb.slot = slot
	return nil
}

func (tb *texturedBinding) Destroy() {
	tb.pipeline.backend.descriptors.freeSet(tb.pipeline.backend.device, tb.set)
}

// blurTarget is the blur pipeline's intermediate render target: a sampled
// color image with a framebuffer over the offscreen pass.
type blurTarget struct {
	tex         *texture
	framebuffer vulkan.Framebuffer
	extent      cj.Extent
}

// blurPipeline runs the separable blur. The horizontal pass samples the
// source into the intermediate target; the vertical pass samples the target
// back into the window framebuffer.
type blurPipeline struct {
	backend  *Backend
	layout   vulkan.PipelineLayout
	pipeline vulkan.Pipeline
	quad     *buffer

	target *blurTarget

	sourceSet  vulkan.DescriptorSet
	sourceSlot uint32
	targetSet  vulkan.DescriptorSet
}

// NewBlurPipeline builds a pipeline for one blur node. The intermediate
// target is created lazily by EnsureTarget once the extent is known.
func (b *Backend) NewBlurPipeline() (cj.BlurPipeline, error) {
	if !b.initialized {
		return nil, errNotInitialized
	}
	p := &blurPipeline{backend: b}
	var err error
	if p.layout, err = b.createPipelineLayout(uint32(unsafe.Sizeof(cj.BlurPush{})), true); err != nil {
		return nil, err
	}
	if p.pipeline, err = b.buildPipeline("blur.vert.spv", "blur.frag.spv", p.layout); err != nil {
		vulkan.DestroyPipelineLayout(b.device, p.layout, nil)
		return nil, err
	}
	if p.quad, err = b.newQuadBuffer(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *blurPipeline) EnsureTarget(extent cj.Extent) error {
	if p.target != nil && p.target.extent == extent {
		return nil
	}
	if err := p.destroyTarget(); err != nil {
		return err
	}

	b := p.backend
	tex, err := b.CreateTexture(cj.TextureDesc{
		Width:        extent.Width,
		Height:       extent.Height,
		RenderTarget: true,
	})
	if err != nil {
		return err
	}
	t := tex.(*texture)

	fbInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      b.offscreenPass,
		AttachmentCount: 1,
		PAttachments:    []vulkan.ImageView{t.view},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vulkan.Framebuffer
	if res := vulkan.CreateFramebuffer(b.device, &fbInfo, nil, &fb); res != vulkan.Success {
		t.Destroy()
		return wrapResult("create blur framebuffer", res)
	}
	p.target = &blurTarget{tex: t, framebuffer: fb, extent: extent}

	if p.targetSet == vulkan.DescriptorSet(vulkan.NullHandle) {
		p.targetSet, err = b.descriptors.newSet(b.device, t.slot)
		if err != nil {
			return err
		}
	} else {
		b.descriptors.writeSet(b.device, p.targetSet, t.slot)
	}
	return nil
}

func (p *blurPipeline) destroyTarget() error {
	if p.target == nil {
		return nil
	}
	// The previous frame may still sample the old target.
	if err := p.backend.WaitIdle(); err != nil {
		return err
	}
	vulkan.DestroyFramebuffer(p.backend.device, p.target.framebuffer, nil)
	p.target.tex.Destroy()
	p.target = nil
	return nil
}

func (p *blurPipeline) Record(rec cj.Recorder, push cj.BlurPush, sourceSlot uint32) error {
	if p.target == nil {
		return fmt.Errorf("vk: blur target missing: %w", cj.ErrInvalidArgument)
	}
	r := asRecorder(rec)
	b := p.backend

	horizontal := push.Direction[0] != 0
	if horizontal {
		if p.sourceSet == vulkan.DescriptorSet(vulkan.NullHandle) {
			set, err := b.descriptors.newSet(b.device, sourceSlot)
			if err != nil {
				return err
			}
			p.sourceSet = set
			p.sourceSlot = sourceSlot
		} else if p.sourceSlot != sourceSlot {
			b.descriptors.writeSet(b.device, p.sourceSet, sourceSlot)
			p.sourceSlot = sourceSlot
		}

		r.beginOffscreenPass(p.target.framebuffer, vulkan.Extent2D{
			Width:  p.target.extent.Width,
			Height: p.target.extent.Height,
		})
		r.bindPipeline(p.pipeline)
		r.bindDescriptorSet(p.layout, p.sourceSet)
		r.bindVertexBuffer(p.quad.buf)
		r.pushConstants(p.layout, unsafe.Pointer(&push), uint32(unsafe.Sizeof(push)))
		r.drawQuad()
		r.endPass()
		return nil
	}

	r.beginWindowPass()
	r.bindPipeline(p.pipeline)
	r.bindDescriptorSet(p.layout, p.targetSet)
	r.bindVertexBuffer(p.quad.buf)
	r.pushConstants(p.layout, unsafe.Pointer(&push), uint32(unsafe.Sizeof(push)))
	r.drawQuad()
	return nil
}

func (p *blurPipeline) Destroy() {
	b := p.backend
	if p.sourceSet != vulkan.DescriptorSet(vulkan.NullHandle) {
		b.descriptors.freeSet(b.device, p.sourceSet)
	}
	if p.targetSet != vulkan.DescriptorSet(vulkan.NullHandle) {
		b.descriptors.freeSet(b.device, p.targetSet)
	}
	if p.target != nil {
		vulkan.DestroyFramebuffer(b.device, p.target.framebuffer, nil)
		p.target.tex.Destroy()
		p.target = nil
	}
	if p.quad != nil {
		p.quad.Destroy()
	}
	if p.pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(b.device, p.pipeline, nil)
	}
	vulkan.DestroyPipelineLayout(b.device, p.layout, nil)
}
