package vk

import (
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

// recorder is the per-frame command recording state handed to graph nodes
// through the opaque cj.Recorder. It tracks which render pass is open so the
// blur pipeline can step out into its offscreen target and back.
type recorder struct {
	backend *Backend
	cmd     vulkan.CommandBuffer

	imageIndex  uint32
	framebuffer vulkan.Framebuffer
	extent      vulkan.Extent2D

	inPass bool
	// windowStarted is set once the swapchain image has been drawn to, so
	// resuming uses the load pass instead of clearing again.
	windowStarted bool
}

var clearValue = vulkan.NewClearValue([]float32{0.0, 0.0, 0.0, 1.0})

// beginWindowPass opens (or resumes) the render pass targeting the window's
// swapchain framebuffer.
func (r *recorder) beginWindowPass() {
	if r.inPass {
		return
	}
	pass := r.backend.clearPass
	if r.windowStarted {
		pass = r.backend.loadPass
	}
	r.beginPass(pass, r.framebuffer, r.extent)
	r.windowStarted = true
}

// beginOffscreenPass suspends the window pass and opens the offscreen pass
// on the given framebuffer.
func (r *recorder) beginOffscreenPass(fb vulkan.Framebuffer, extent vulkan.Extent2D) {
	r.endPass()
	r.beginPass(r.backend.offscreenPass, fb, extent)
}

func (r *recorder) beginPass(pass vulkan.RenderPass, fb vulkan.Framebuffer, extent vulkan.Extent2D) {
	beginInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: 1,
		PClearValues:    []vulkan.ClearValue{clearValue},
	}
	vulkan.CmdBeginRenderPass(r.cmd, &beginInfo, vulkan.SubpassContentsInline)
	r.inPass = true

	viewport := vulkan.Viewport{
		X: 0, Y: 0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0, MaxDepth: 1,
	}
	vulkan.CmdSetViewport(r.cmd, 0, 1, []vulkan.Viewport{viewport})
	scissor := vulkan.Rect2D{
		Offset: vulkan.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	vulkan.CmdSetScissor(r.cmd, 0, 1, []vulkan.Rect2D{scissor})
}

func (r *recorder) endPass() {
	if !r.inPass {
		return
	}
	vulkan.CmdEndRenderPass(r.cmd)
	r.inPass = false
}

func (r *recorder) bindPipeline(p vulkan.Pipeline) {
	vulkan.CmdBindPipeline(r.cmd, vulkan.PipelineBindPointGraphics, p)
}

func (r *recorder) bindDescriptorSet(layout vulkan.PipelineLayout, set vulkan.DescriptorSet) {
	vulkan.CmdBindDescriptorSets(r.cmd, vulkan.PipelineBindPointGraphics, layout,
		0, 1, []vulkan.DescriptorSet{set}, 0, nil)
}

func (r *recorder) bindVertexBuffer(buf vulkan.Buffer) {
	vulkan.CmdBindVertexBuffers(r.cmd, 0, 1, []vulkan.Buffer{buf}, []vulkan.DeviceSize{0})
}

func (r *recorder) pushConstants(layout vulkan.PipelineLayout, data unsafe.Pointer, size uint32) {
	vulkan.CmdPushConstants(r.cmd, layout,
		vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit|vulkan.ShaderStageFragmentBit),
		0, size, data)
}

func (r *recorder) drawQuad() {
	vulkan.CmdDraw(r.cmd, quadVertexCount, 1, 0, 0)
}

// asRecorder asserts the opaque recorder back to this backend's type. A
// recorder from a different backend is a programming error.
func asRecorder(rec interface{}) *recorder {
	return rec.(*recorder)
}
