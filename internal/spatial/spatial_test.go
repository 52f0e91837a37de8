package spatial

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"disjoint", Span{0, 1}, Span{2, 3}, false},
		{"touching", Span{0, 1}, Span{1, 2}, false},
		{"overlapping", Span{0, 1.5}, Span{1, 2}, true},
		{"nested", Span{0, 4}, Span{1, 2}, true},
		{"identical", Span{1, 2}, Span{1, 2}, true},
		{"degenerate inside", Span{1.5, 1.5}, Span{1, 2}, false},
		{"degenerate on edge", Span{1, 1}, Span{1, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestPlacementConflictPerAxis(t *testing.T) {
	other := SquareFootprint(Vec2{10, 10}, 2) // [9,11]
	dims := Vec2{3, 3}

	assert.Equal(t, Conflict{X: true, Y: true}, PlacementConflict(Vec2{10, 10}, dims, other))
	assert.Equal(t, Conflict{X: true, Y: false}, PlacementConflict(Vec2{10, 20}, dims, other))
	assert.Equal(t, Conflict{X: false, Y: true}, PlacementConflict(Vec2{20, 10}, dims, other))
	// Clear of it on both axes.
	assert.Equal(t, Conflict{}, PlacementConflict(Vec2{13, 13}, dims, other))
	// [11,14] touches [9,11] exactly.
	assert.False(t, PlacementConflict(Vec2{12.5, 10}, dims, other).X)
	assert.False(t, PlacementConflict(Vec2{10, 10}, Vec2{0, 3}, other).Both())
}

func TestPlacementConflictSymmetric(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		a := Footprint{Vec2{r.Float64() * 10, r.Float64() * 10}, Vec2{float64(r.IntN(4)), float64(r.IntN(4))}}
		b := Footprint{Vec2{r.Float64() * 10, r.Float64() * 10}, Vec2{float64(r.IntN(4)), float64(r.IntN(4))}}
		require.Equal(t, FootprintConflict(a, b), FootprintConflict(b, a), "a=%s b=%s", a, b)
	}
}

func TestDiscretization(t *testing.T) {
	assert.Equal(t, Vec2i{2, 3}, ToDiscrete(Vec2{2.99, 3.0}, 1))
	assert.Equal(t, Vec2i{4, 6}, ToDiscrete(Vec2{2.0, 3.1}, 0.5))
	assert.Equal(t, Vec2{1, 1.5}, ToReal(Vec2i{2, 3}, 0.5))
	assert.Equal(t, Vec2{2.5, 3.5}, SnapToCellCenter(Vec2{2.01, 3.99}, 1))
}

func TestCacheDimension(t *testing.T) {
	assert.Equal(t, 3.0, CacheDimension(1, 2))
	assert.Equal(t, 3.0, CacheDimension(1, 3))
	assert.Equal(t, 1.5, CacheDimension(0.5, 1.2))
	assert.Equal(t, 1.0, CacheDimension(1, 0))
}

func TestFootprintCells(t *testing.T) {
	fp := SquareFootprint(Vec2{10.5, 10.5}, 3)
	cells := fp.Cells(1)
	assert.Len(t, cells, 9)
	assert.Contains(t, cells, Vec2i{9, 9})
	assert.Contains(t, cells, Vec2i{11, 11})
	assert.NotContains(t, cells, Vec2i{12, 12})

	ramp := FootprintFromAnchor(Vec2{4, 4}, Vec2{2, 1})
	assert.ElementsMatch(t, []Vec2i{{4, 4}, {5, 4}}, ramp.Cells(1))
}

func TestGridInsertMoveRemove(t *testing.T) {
	g := NewGrid(100, 100, 10, 16)
	g.Insert(1, Vec2{5, 5})
	g.Insert(2, Vec2{15, 5})
	g.Insert(3, Vec2{95, 95})
	assert.Equal(t, 3, g.Len())

	assert.ElementsMatch(t, []uint32{1, 2}, g.QueryRadius(Vec2{10, 5}, 4))

	g.Move(1, Vec2{90, 90})
	assert.Equal(t, 3, g.Len())
	assert.ElementsMatch(t, []uint32{2}, g.QueryRadius(Vec2{10, 5}, 4))
	assert.ElementsMatch(t, []uint32{1, 3}, g.QueryRect(SquareFootprint(Vec2{92, 92}, 4)))

	g.Remove(3)
	g.Remove(42)
	assert.False(t, g.Contains(3))
	assert.Equal(t, 2, g.Stats().TotalEntities)

	g.Clear()
	assert.Zero(t, g.Len())
	assert.Empty(t, g.QueryRect(SquareFootprint(Vec2{50, 50}, 100)))
}

func TestGridClampsOutOfBounds(t *testing.T) {
	g := NewGrid(10, 10, 5, 4)
	g.Insert(7, Vec2{-3, 40})
	assert.Equal(t, []uint32{7}, g.QueryRect(SquareFootprint(Vec2{0, 10}, 1)))
	cols, rows, size := g.Dimensions()
	assert.Equal(t, 2, cols)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 5.0, size)
}

func TestSweepAndPrune(t *testing.T) {
	fps := []Footprint{
		SquareFootprint(Vec2{1.5, 1.5}, 3), // [0,3]
		SquareFootprint(Vec2{4.5, 1.5}, 3), // [3,6] touches 0
		SquareFootprint(Vec2{2.5, 2.5}, 3), // [1,4] overlaps 0 and 1
		SquareFootprint(Vec2{2.5, 9.5}, 3), // X overlaps 0,1,2 but Y apart
		{Center: Vec2{2, 2}},                // degenerate
	}
	for _, ins := range []bool{false, true} {
		s := NewSweepAndPrune(len(fps))
		s.SetInsertionSort(ins)

		assert.ElementsMatch(t, []Pair{{0, 2}, {1, 2}, {0, 3}, {1, 3}, {2, 3}}, s.Update(fps))
		assert.ElementsMatch(t, []Pair{{0, 2}, {1, 2}}, s.OverlappingPairs(fps))
	}
}
