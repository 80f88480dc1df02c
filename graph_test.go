package cj

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphExecutesInReverseInsertionOrder(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddColorNode("first"))
	require.NoError(t, g.AddColorNode("second"))
	require.NoError(t, g.AddColorNode("third"))
	assert.Equal(t, 3, g.NodeCount())

	rec := &fakeRecorder{}
	require.NoError(t, g.Execute(rec, Extent{Width: 10, Height: 10}))
	assert.Equal(t, []string{"color3", "color2", "color1"}, rec.ops)
}

func TestGraphExecuteValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	defer g.Destroy()

	err := g.Execute(nil, Extent{Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = g.Execute(&fakeRecorder{}, Extent{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGraphExecuteAbortsOnNodeError(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddColorNode("under"))
	require.NoError(t, g.AddBlurNode("broken"))
	require.NoError(t, g.AddColorNode("over"))

	boom := errors.New("boom")
	// Node order is over, broken, under; the failure must stop the walk.
	blur := findBlurPipeline(dev, 1)
	blur.recordErr = boom

	rec := &fakeRecorder{}
	err := g.Execute(rec, Extent{Width: 10, Height: 10})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"color2"}, rec.ops)
}

func TestGraphBindTextureUpsert(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	h1, err := eng.CreateTexture(TextureDesc{Width: 4, Height: 4})
	require.NoError(t, err)
	h2, err := eng.CreateTexture(TextureDesc{Width: 4, Height: 4})
	require.NoError(t, err)

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.BindTexture(TextureBindingName, h1))
	require.NoError(t, g.BindTexture(TextureBindingName, h2))
	assert.Equal(t, 1, g.BindingCount(), "rebinding the same name replaces in place")
	assert.Equal(t, eng.SlotOf(h2), g.bindingSlot(TextureBindingName))

	assert.Error(t, g.BindTexture("", h1))
}

func TestGraphBindTextureStaleHandle(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	h, err := eng.CreateTexture(TextureDesc{Width: 4, Height: 4})
	require.NoError(t, err)
	eng.Release(h)

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.BindTexture(TextureBindingName, h))
	assert.Equal(t, uint32(0), g.bindingSlot(TextureBindingName))
}

func TestGraphParamsUpsert(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.SetInt32(ParamBlurIntensity, 10))
	require.NoError(t, g.SetInt32(ParamBlurIntensity, 20))
	assert.Equal(t, 1, g.ParamCount())

	v, ok := g.paramRef(ParamBlurIntensity).get()
	assert.True(t, ok)
	assert.Equal(t, int32(20), v)

	assert.Error(t, g.SetInt32("", 1))
}

func TestTexturedNodeFollowsRebind(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	h1, err := eng.CreateTexture(TextureDesc{Width: 4, Height: 4})
	require.NoError(t, err)
	h2, err := eng.CreateTexture(TextureDesc{Width: 4, Height: 4})
	require.NoError(t, err)

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.BindTexture(TextureBindingName, h1))
	require.NoError(t, g.AddTexturedNode("pic"))

	extent := Extent{Width: 10, Height: 10}
	rec := &fakeRecorder{}
	require.NoError(t, g.Execute(rec, extent))
	slot1 := eng.SlotOf(h1)
	assert.Equal(t, []string{texturedOp(slot1)}, rec.ops)

	// Rebind: the node repoints its descriptor binding on the next execute.
	require.NoError(t, g.BindTexture(TextureBindingName, h2))
	rec = &fakeRecorder{}
	require.NoError(t, g.Execute(rec, extent))
	slot2 := eng.SlotOf(h2)
	assert.Equal(t, []string{texturedOp(slot2)}, rec.ops)
}

func TestBlurNodeRunsTwoPasses(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	h, err := eng.CreateTexture(TextureDesc{Width: 4, Height: 4})
	require.NoError(t, err)

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.BindTexture(TextureBindingName, h))
	require.NoError(t, g.AddBlurNode("blur"))

	rec := &fakeRecorder{}
	require.NoError(t, g.Execute(rec, Extent{Width: 100, Height: 50}))

	slot := eng.SlotOf(h)
	require.Len(t, rec.ops, 2)
	assert.Contains(t, rec.ops[0], "h")
	assert.Contains(t, rec.ops[1], "v")

	hPush := rec.pushes[0].(BlurPush)
	vPush := rec.pushes[1].(BlurPush)
	assert.Equal(t, float32(1)/100, hPush.TexelSize[0])
	assert.Equal(t, float32(1)/50, hPush.TexelSize[1])
	assert.Equal(t, float32(1), hPush.Direction[0])
	assert.Equal(t, float32(1), vPush.Direction[1])
	assert.Contains(t, rec.ops[0], texSlotSuffix(slot))
}

func TestBlurNodeHonorsParams(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddBlurNode("blur"))

	// Parameters set after the node was added still apply: the node caches
	// pointers, not values.
	require.NoError(t, g.SetInt32(ParamBlurIntensity, 250)) // clamped to 100
	require.NoError(t, g.SetInt32(ParamTimeMS, 1234))

	rec := &fakeRecorder{}
	require.NoError(t, g.Execute(rec, Extent{Width: 10, Height: 10}))

	push := rec.pushes[0].(BlurPush)
	assert.Equal(t, float32(1), push.Intensity)
	assert.Equal(t, float32(1234), push.TimeMS)

	require.NoError(t, g.SetInt32(ParamBlurIntensity, -5)) // clamped to 0
	rec = &fakeRecorder{}
	require.NoError(t, g.Execute(rec, Extent{Width: 10, Height: 10}))
	assert.Equal(t, float32(0), rec.pushes[0].(BlurPush).Intensity)
}

func TestBlurNodeDefaultsWithoutParams(t *testing.T) {
	eng, _ := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddBlurNode("blur"))

	rec := &fakeRecorder{}
	require.NoError(t, g.Execute(rec, Extent{Width: 10, Height: 10}))

	push := rec.pushes[0].(BlurPush)
	assert.Equal(t, float32(1), push.Intensity, "unset intensity means full strength")
	// Unset time falls back to a clock started at node creation; only its
	// sign is predictable here.
	assert.GreaterOrEqual(t, push.TimeMS, float32(0))
}

func TestBlurTargetFollowsExtent(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	defer g.Destroy()
	require.NoError(t, g.AddBlurNode("blur"))
	blur := findBlurPipeline(dev, 1)

	require.NoError(t, g.Execute(&fakeRecorder{}, Extent{Width: 100, Height: 100}))
	require.NoError(t, g.Execute(&fakeRecorder{}, Extent{Width: 100, Height: 100}))
	assert.Len(t, blur.ensures, 1, "same extent does not recreate the target")

	require.NoError(t, g.Execute(&fakeRecorder{}, Extent{Width: 200, Height: 150}))
	require.Len(t, blur.ensures, 2)
	assert.Equal(t, Extent{Width: 200, Height: 150}, blur.ensures[1])
}

func TestGraphDestroyReleasesNodes(t *testing.T) {
	eng, dev := newTestEngine(t)
	defer eng.Shutdown()

	g := eng.NewGraph()
	require.NoError(t, g.AddColorNode("a"))
	require.NoError(t, g.AddBlurNode("b"))

	g.Destroy()
	assert.Equal(t, 0, g.NodeCount())
	assert.True(t, findBlurPipeline(dev, 1).destroyed)
}

// test helpers

func texturedOp(slot uint32) string {
	return "textured@" + strconv.FormatUint(uint64(slot), 10)
}

func texSlotSuffix(slot uint32) string {
	return "@" + strconv.FormatUint(uint64(slot), 10)
}

// findBlurPipeline returns the nth blur pipeline the fake device handed out.
func findBlurPipeline(dev *fakeDevice, id int) *fakeBlurPipeline {
	return dev.blurPipes[id-1]
}
