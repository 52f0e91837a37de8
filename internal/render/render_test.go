package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forage/internal/sim"
)

func testSnapshot() *sim.Snapshot {
	return &sim.Snapshot{
		Width:      10,
		Height:     5,
		Resolution: 0.5,
		Nests:      []sim.RegionSnapshot{{X: 2, Y: 2.5, Width: 2, Height: 2}},
		Clusters:   []sim.RegionSnapshot{{X: 8, Y: 2.5, Width: 2, Height: 2}},
		Caches:     []sim.CacheSnapshot{{ID: 0, X: 5.25, Y: 2.25, Dim: 1.5, Blocks: 3}},
		Blocks: []sim.BlockSnapshot{
			{ID: 0, X: 5.25, Y: 2.25, Width: 0.5, Height: 0.5, Shape: "cube", Cache: 0},
			{ID: 1, X: 7.75, Y: 4.25, Width: 1, Height: 0.5, Shape: "ramp", Cache: -1},
		},
		Robots: []sim.RobotSnapshot{{ID: 0, X: 1, Y: 1, Carrying: -1}, {ID: 1, X: 3, Y: 4, Carrying: 1}},
	}
}

func TestRenderSizeAndPixels(t *testing.T) {
	r := New(20)
	img := r.Render(testSnapshot())
	require.Equal(t, 200, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())

	// Cache host block at (5.25, 2.25): image y is flipped.
	got := img.At(int(5.25*20), int((5-2.25)*20))
	cr, cg, cb, _ := got.RGBA()
	er, eg, eb, _ := colorCached.RGBA()
	assert.Equal(t, []uint32{er, eg, eb}, []uint32{cr, cg, cb})
}

func TestRenderClampsHugeArenas(t *testing.T) {
	snap := testSnapshot()
	snap.Width, snap.Height = 1024, 512
	w, h, scale := New(50).Size(snap)
	assert.Equal(t, MaxImageSide, w)
	assert.Equal(t, MaxImageSide/2, h)
	assert.Equal(t, 4.0, scale)
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(10).WritePNG(&buf, testSnapshot()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}
