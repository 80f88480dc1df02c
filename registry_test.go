package cj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllocReleaseReuse(t *testing.T) {
	r := NewRegistry(4)

	h := r.Alloc(KindTexture)
	require.False(t, h.IsNil())
	assert.Equal(t, uint32(1), h.Index)
	assert.Equal(t, uint32(1), h.Generation)
	assert.True(t, r.Live(h))

	r.Release(h)
	assert.False(t, r.Live(h))

	// The slot is reused with an advanced generation, so the old handle
	// stays stale forever.
	h2 := r.Alloc(KindTexture)
	assert.Equal(t, h.Index, h2.Index)
	assert.Equal(t, uint32(2), h2.Generation)
	assert.False(t, r.Live(h))
	assert.True(t, r.Live(h2))
}

func TestRegistryZeroHandleInvalid(t *testing.T) {
	r := NewRegistry(4)
	assert.False(t, r.Live(Handle{}))
	assert.Equal(t, uint32(0), r.SlotOf(Handle{}))

	// Stale operations are silent no-ops.
	r.Retain(Handle{})
	r.Release(Handle{})
}

func TestRegistryRetainRelease(t *testing.T) {
	r := NewRegistry(4)
	res := &fakeResource{dev: newFakeDevice(), slot: 7}

	h := r.Alloc(KindBuffer)
	r.bind(h, res, res.slot)
	assert.Equal(t, uint32(7), r.SlotOf(h))

	r.Retain(h)
	r.Release(h)
	assert.True(t, r.Live(h), "refcount 1 remains after retain+release")
	assert.False(t, res.destroyed)

	r.Release(h)
	assert.False(t, r.Live(h))
	assert.True(t, res.destroyed)
	assert.Equal(t, uint32(0), r.SlotOf(h))
}

func TestRegistryTableFull(t *testing.T) {
	r := NewRegistry(2)
	h1 := r.Alloc(KindSampler)
	h2 := r.Alloc(KindSampler)
	require.False(t, h1.IsNil())
	require.False(t, h2.IsNil())

	h3 := r.Alloc(KindSampler)
	assert.True(t, h3.IsNil())

	// Other kinds have their own tables and are unaffected.
	assert.False(t, r.Alloc(KindTexture).IsNil())

	r.Release(h1)
	h4 := r.Alloc(KindSampler)
	assert.False(t, h4.IsNil())
	assert.Equal(t, h1.Index, h4.Index)
}

func TestRegistryKindsIsolated(t *testing.T) {
	r := NewRegistry(4)
	ht := r.Alloc(KindTexture)
	hb := r.Alloc(KindBuffer)

	// Same index, different kinds; a handle only resolves in its own table.
	assert.Equal(t, ht.Index, hb.Index)
	forged := Handle{Index: ht.Index, Generation: ht.Generation, Kind: KindSampler}
	assert.False(t, r.Live(forged))
}

func TestRegistryDestroyAll(t *testing.T) {
	r := NewRegistry(4)
	dev := newFakeDevice()

	var handles []Handle
	for _, k := range []Kind{KindTexture, KindBuffer, KindSampler} {
		h := r.Alloc(k)
		r.bind(h, dev.newResource(), 0)
		handles = append(handles, h)
	}
	// Leak one refcount on purpose; destroyAll still frees it.
	r.Retain(handles[0])

	r.destroyAll()
	assert.Equal(t, 3, dev.destroyedResources)
	for _, h := range handles {
		assert.False(t, r.Live(h))
	}
}

func TestRegistryGenerationWrapSkipsZero(t *testing.T) {
	r := NewRegistry(1)
	// Force the slot's generation to the wrap point.
	r.tables[KindTexture][1].generation = ^uint32(0)

	h := r.Alloc(KindTexture)
	assert.Equal(t, uint32(1), h.Generation, "generation wraps past the reserved 0")
}
