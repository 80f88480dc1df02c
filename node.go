package cj

import (
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// graphNode is the sealed node variant set. Each variant owns its GPU state
// and knows how to record itself and tear itself down.
type graphNode interface {
	nodeName() string
	record(g *Graph, rec Recorder, extent Extent) error
	destroy()
}

var fullQuadUV = mgl32.Vec4{0, 0, 1, 1}

// colorNode fills a quad with the engine's shared color. The color is read
// live at record time so Engine.SetColor affects every color node without
// touching the graph.
type colorNode struct {
	name     string
	pipeline ColorPipeline
}

func (n *colorNode) nodeName() string { return n.name }

func (n *colorNode) record(g *Graph, rec Recorder, _ Extent) error {
	return n.pipeline.Record(rec, ColorPush{
		UVRect: fullQuadUV,
		Color:  g.eng.sharedColor(),
	})
}

func (n *colorNode) destroy() {
	n.pipeline.Destroy()
}

// texturedNode draws a quad through the shared textured pipeline with its
// own descriptor binding. The binding tracks the graph's "texture" binding
// slot, repointing when a rebind changed it.
type texturedNode struct {
	name    string
	binding TexturedBinding
	slot    uint32
}

func (n *texturedNode) nodeName() string { return n.name }

func (n *texturedNode) record(g *Graph, rec Recorder, _ Extent) error {
	if slot := g.bindingSlot(TextureBindingName); slot != n.slot {
		if err := n.binding.UpdateSlot(slot); err != nil {
			return err
		}
		n.slot = slot
	}
	return n.binding.Record(rec, TexturedPush{UVRect: fullQuadUV})
}

func (n *texturedNode) destroy() {
	n.binding.Destroy()
}

// blurNode runs a horizontal then a vertical blur pass over the graph's
// "texture" binding through its own intermediate target. The cached
// blur_intensity (0..100) and time_ms parameters drive the effect when set;
// without time_ms the phase comes from a clock started at node creation.
type blurNode struct {
	name      string
	pipeline  BlurPipeline
	intensity *param
	timeMS    *param
	epoch     time.Time
}

func newBlurNode(name string, p BlurPipeline, g *Graph) *blurNode {
	return &blurNode{
		name:      name,
		pipeline:  p,
		intensity: g.paramRef(ParamBlurIntensity),
		timeMS:    g.paramRef(ParamTimeMS),
		epoch:     time.Now(),
	}
}

func (n *blurNode) record(g *Graph, rec Recorder, extent Extent) error {
	if err := n.pipeline.EnsureTarget(extent); err != nil {
		return err
	}

	intensity := float32(1)
	if v, ok := n.intensity.get(); ok {
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		intensity = float32(v) / 100
	}
	var timeMS float32
	if v, ok := n.timeMS.get(); ok {
		timeMS = float32(v)
	} else {
		timeMS = float32(time.Since(n.epoch).Milliseconds())
	}

	push := BlurPush{
		TexelSize: mgl32.Vec2{1 / float32(extent.Width), 1 / float32(extent.Height)},
		Intensity: intensity,
		TimeMS:    timeMS,
	}
	src := g.bindingSlot(TextureBindingName)

	push.Direction = mgl32.Vec2{1, 0}
	if err := n.pipeline.Record(rec, push, src); err != nil {
		return err
	}
	push.Direction = mgl32.Vec2{0, 1}
	return n.pipeline.Record(rec, push, src)
}

func (n *blurNode) nodeName() string { return n.name }

func (n *blurNode) destroy() {
	n.pipeline.Destroy()
}
