package cj

// slot is one entry in a resource table. Once a slot has been used its
// generation is never reset, so a handle minted for a previous occupant can
// always be told apart from the current one.
type slot struct {
	generation uint32
	refcount   uint32
	descriptor uint32
	inUse      bool
	payload    Resource
}

// Registry hands out generation-counted handles over fixed-capacity slot
// tables, one table per resource kind. It is confined to the scheduler
// thread; it is not safe for concurrent mutation.
type Registry struct {
	tables [kindCount][]slot
}

// NewRegistry creates a registry with the given per-kind capacity. Index 0
// of every table is reserved so that the zero handle is always invalid.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	r := &Registry{}
	for k := range r.tables {
		r.tables[k] = make([]slot, capacity+1)
	}
	return r
}

// Alloc claims the first free slot of the kind's table, scanning from index
// 1, and returns a handle with refcount 1 and an advanced generation.
// Returns the nil handle when the table is full. The GPU payload is attached
// separately via bind; if that creation step fails the caller must Release
// the handle to avoid leaking the slot.
func (r *Registry) Alloc(kind Kind) Handle {
	table := r.tables[kind]
	for i := 1; i < len(table); i++ {
		if table[i].inUse {
			continue
		}
		table[i].generation++
		if table[i].generation == 0 { // generation 0 is reserved for nil
			table[i].generation = 1
		}
		table[i].inUse = true
		table[i].refcount = 1
		table[i].descriptor = 0
		table[i].payload = nil
		return Handle{Index: uint32(i), Generation: table[i].generation, Kind: kind}
	}
	Logger().Warn("cj: resource table full", "kind", kind.String(), "capacity", len(table)-1)
	return Handle{}
}

// bind attaches the created GPU payload and its descriptor slot to a live
// handle. No-op on a stale handle.
func (r *Registry) bind(h Handle, payload Resource, descriptorSlot uint32) {
	s := r.lookup(h)
	if s == nil {
		return
	}
	s.payload = payload
	s.descriptor = descriptorSlot
}

// Retain increments the handle's refcount. Stale handles are ignored: a
// handle may legitimately outlive its resource across asynchronous GPU use.
func (r *Registry) Retain(h Handle) {
	if s := r.lookup(h); s != nil {
		s.refcount++
	}
}

// Release decrements the refcount and, on reaching zero, destroys the GPU
// payload and frees the slot. The generation is left advanced so old handles
// never alias a reused slot. Stale handles are ignored.
func (r *Registry) Release(h Handle) {
	s := r.lookup(h)
	if s == nil {
		return
	}
	s.refcount--
	if s.refcount > 0 {
		return
	}
	if s.payload != nil {
		s.payload.Destroy()
		s.payload = nil
	}
	s.descriptor = 0
	s.inUse = false
}

// SlotOf returns the handle's descriptor slot, or 0 for a stale or nil
// handle. Slot 0 is reserved and never assigned to a live resource.
func (r *Registry) SlotOf(h Handle) uint32 {
	if s := r.lookup(h); s != nil {
		return s.descriptor
	}
	return 0
}

// Live reports whether the handle currently resolves to an in-use slot.
func (r *Registry) Live(h Handle) bool {
	return r.lookup(h) != nil
}

func (r *Registry) lookup(h Handle) *slot {
	if h.IsNil() || h.Kind >= kindCount {
		return nil
	}
	table := r.tables[h.Kind]
	if int(h.Index) >= len(table) {
		return nil
	}
	s := &table[h.Index]
	if !s.inUse || s.generation != h.Generation {
		return nil
	}
	return s
}

// destroyAll force-frees every live slot at engine shutdown. Samplers go
// first, then textures, then buffers, respecting reverse dependency order
// between kinds; per-object teardown ordering is the payload's business.
func (r *Registry) destroyAll() {
	for _, kind := range []Kind{KindSampler, KindTexture, KindBuffer} {
		table := r.tables[kind]
		for i := 1; i < len(table); i++ {
			s := &table[i]
			if !s.inUse {
				continue
			}
			if s.refcount > 1 {
				Logger().Warn("cj: resource leaked at shutdown",
					"kind", kind.String(), "index", i, "refcount", s.refcount)
			}
			if s.payload != nil {
				s.payload.Destroy()
				s.payload = nil
			}
			s.descriptor = 0
			s.refcount = 0
			s.inUse = false
		}
	}
}
