package caches

import (
	"testing"

	"github.com/stretchr/testify/require"

	"forage/internal/arena"
	"forage/internal/rng"
	"forage/internal/spatial"
)

func newArena(t *testing.T, size float64, src rng.Source) *arena.Arena {
	t.Helper()
	if src == nil {
		src = rng.New(1)
	}
	return arena.New(arena.Config{Width: size, Height: size, Resolution: 1}, src)
}

// placeBlocks adds one cube per cell and returns their ids.
func placeBlocks(t *testing.T, a *arena.Arena, cells ...spatial.Vec2i) []arena.BlockID {
	t.Helper()
	ids := make([]arena.BlockID, 0, len(cells))
	for _, d := range cells {
		id := a.AddBlock(arena.BlockCube)
		require.NoError(t, a.PlaceBlock(id, d), "place at %s", d)
		ids = append(ids, id)
	}
	return ids
}

func cells(xys ...int) []spatial.Vec2i {
	out := make([]spatial.Vec2i, 0, len(xys)/2)
	for i := 0; i+1 < len(xys); i += 2 {
		out = append(out, spatial.Vec2i{X: xys[i], Y: xys[i+1]})
	}
	return out
}

// checkPassInvariants asserts the properties every committed cache set must
// have: no overlaps, complete membership, minimum size.
func checkPassInvariants(t *testing.T, a *arena.Arena, created []*arena.Cache, minBlocks int) {
	t.Helper()
	for i, c1 := range created {
		require.GreaterOrEqual(t, c1.NBlocks(), minBlocks, "%s too small", c1)
		for _, c2 := range created[i+1:] {
			conflict := spatial.FootprintConflict(c1.Footprint(), c2.Footprint())
			require.False(t, conflict.Both(), "%s overlaps %s", c1, c2)
		}
		for _, b := range a.Blocks() {
			if b.IsCarried() || !b.Placed {
				continue
			}
			if c1.Footprint().Overlaps(b.Footprint()) {
				require.True(t, c1.Contains(b.ID), "%s under %s but not a member", b, c1)
			}
		}
	}
	owner := map[arena.BlockID]arena.CacheID{}
	for _, c := range a.Caches() {
		for _, id := range c.Blocks() {
			prev, dup := owner[id]
			require.False(t, dup, "block%d in cache%d and cache%d", id, prev, c.ID)
			owner[id] = c.ID
		}
	}
}
