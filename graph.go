package cj

import "fmt"

// TextureBindingName is the binding the textured and blur nodes sample from.
const TextureBindingName = "texture"

// Parameter names the blur node consults. When set, they are the source of
// truth for the blur animation; otherwise the node falls back to a
// free-running clock and full intensity.
const (
	ParamBlurIntensity = "blur_intensity"
	ParamTimeMS        = "time_ms"
)

// binding is a named texture reference. The descriptor slot is resolved once
// at bind time; recreating the underlying resource requires binding again.
type binding struct {
	name   string
	handle Handle
	slot   uint32
}

// param is a named i32 parameter. Nodes cache pointers to params, so params
// are heap-allocated and updated in place on re-set.
type param struct {
	name  string
	value int32
	set   bool
}

func (p *param) get() (int32, bool) {
	return p.value, p.set
}

type nodeEntry struct {
	node graphNode
	next *nodeEntry
}

// Graph is an ordered collection of render nodes plus the named bindings and
// parameters they resolve against. Nodes are prepended on add, so execution
// order is the reverse of insertion order; that ordering is a documented
// property, not an accident.
//
// A Graph is confined to the scheduler thread.
type Graph struct {
	eng      *Engine
	head     *nodeEntry
	nodes    int
	bindings []binding
	params   []*param
	compiled bool
}

// NewGraph creates an empty render graph owned by the caller. Destroy it
// before shutting the engine down.
func (e *Engine) NewGraph() *Graph {
	return &Graph{eng: e}
}

// Destroy releases every node in list order, then the binding and parameter
// storage. The graph must not be executed afterwards.
func (g *Graph) Destroy() {
	for e := g.head; e != nil; e = e.next {
		e.node.destroy()
	}
	g.head = nil
	g.nodes = 0
	g.bindings = nil
	g.params = nil
}

// Recompile marks the graph for recompilation. Node pipelines are currently
// built eagerly at add time, so this only flips the compiled marker; it
// exists to keep the API stable for pipeline-variant recompilation.
func (g *Graph) Recompile() {
	g.compiled = false
}

// BindTexture upserts a named texture binding, resolving the handle's
// descriptor slot now. Binding the same name again replaces the previous
// entry in place. A stale handle resolves to the reserved slot 0.
func (g *Graph) BindTexture(name string, h Handle) error {
	if name == "" {
		return fmt.Errorf("cj: bind texture: empty name: %w", ErrInvalidArgument)
	}
	slot := g.eng.resources.SlotOf(h)
	if slot == 0 {
		Logger().Warn("cj: texture binding resolves to reserved slot", "name", name)
	}
	for i := range g.bindings {
		if g.bindings[i].name == name {
			g.bindings[i].handle = h
			g.bindings[i].slot = slot
			return nil
		}
	}
	g.bindings = append(g.bindings, binding{name: name, handle: h, slot: slot})
	return nil
}

// SetInt32 upserts a named i32 parameter.
func (g *Graph) SetInt32(name string, value int32) error {
	if name == "" {
		return fmt.Errorf("cj: set parameter: empty name: %w", ErrInvalidArgument)
	}
	p := g.paramRef(name)
	p.value = value
	p.set = true
	return nil
}

// paramRef finds or creates the parameter entry. Created entries stay
// "unset" until SetInt32 touches them, which is how nodes tell a default
// apart from a caller-provided value.
func (g *Graph) paramRef(name string) *param {
	for _, p := range g.params {
		if p.name == name {
			return p
		}
	}
	p := &param{name: name}
	g.params = append(g.params, p)
	return p
}

// bindingSlot returns the cached descriptor slot for a binding name, or the
// reserved slot 0 when the name is not bound.
func (g *Graph) bindingSlot(name string) uint32 {
	for i := range g.bindings {
		if g.bindings[i].name == name {
			return g.bindings[i].slot
		}
	}
	return 0
}

func (g *Graph) prepend(n graphNode) {
	g.head = &nodeEntry{node: n, next: g.head}
	g.nodes++
}

// AddColorNode adds a color fill node, building its pipeline and vertex
// state eagerly. The node's draw color comes from the engine's shared color
// state at execute time.
func (g *Graph) AddColorNode(name string) error {
	p, err := g.eng.dev.NewColorPipeline()
	if err != nil {
		return fmt.Errorf("cj: build color node %q: %w", name, err)
	}
	g.prepend(&colorNode{name: name, pipeline: p})
	return nil
}

// AddTexturedNode adds a textured quad node. It shares the engine-wide
// textured pipeline and owns only its descriptor binding, pointed at the
// graph's "texture" binding.
func (g *Graph) AddTexturedNode(name string) error {
	tp, err := g.eng.texturedPipeline()
	if err != nil {
		return fmt.Errorf("cj: build textured node %q: %w", name, err)
	}
	slot := g.bindingSlot(TextureBindingName)
	b, err := tp.NewBinding(slot)
	if err != nil {
		return fmt.Errorf("cj: build textured node %q: %w", name, err)
	}
	g.prepend(&texturedNode{name: name, binding: b, slot: slot})
	return nil
}

// AddBlurNode adds a multi-pass blur node with its own pipeline and an
// off-screen intermediate target created lazily at first execute. The node
// caches the blur_intensity and time_ms parameters.
func (g *Graph) AddBlurNode(name string) error {
	p, err := g.eng.dev.NewBlurPipeline()
	if err != nil {
		return fmt.Errorf("cj: build blur node %q: %w", name, err)
	}
	g.prepend(newBlurNode(name, p, g))
	return nil
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return g.nodes }

// BindingCount returns the number of distinct texture bindings.
func (g *Graph) BindingCount() int { return len(g.bindings) }

// ParamCount returns the number of distinct parameters.
func (g *Graph) ParamCount() int { return len(g.params) }

// Execute walks the node list front to back, recording each node into the
// command target. On failure it aborts with the partial recording left in
// the target; the caller must discard it rather than submit.
func (g *Graph) Execute(rec Recorder, extent Extent) error {
	if rec == nil {
		return fmt.Errorf("cj: graph execute: nil recorder: %w", ErrInvalidArgument)
	}
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("cj: graph execute: zero extent: %w", ErrInvalidArgument)
	}
	g.compiled = true
	for e := g.head; e != nil; e = e.next {
		if err := e.node.record(g, rec, extent); err != nil {
			return fmt.Errorf("cj: graph node %q: %w", e.node.nodeName(), err)
		}
	}
	return nil
}
