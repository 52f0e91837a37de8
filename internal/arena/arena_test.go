package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forage/internal/rng"
	"forage/internal/spatial"
)

type recorder struct {
	changes []CellState
}

func (r *recorder) CellChanged(_ spatial.Vec2i, _, to CellState) {
	r.changes = append(r.changes, to)
}

func newTestArena(t *testing.T) *Arena {
	t.Helper()
	return New(Config{Width: 20, Height: 20, Resolution: 1}, rng.New(7))
}

func TestCellTransitions(t *testing.T) {
	var c Cell
	ToBlock(&c, 3)
	assert.Equal(t, CellHasBlock, c.State)
	assert.Equal(t, BlockID(3), c.Block)

	ToCache(&c, 5, 4)
	assert.Equal(t, CellHasCache, c.State)
	assert.Equal(t, NoBlock, c.Block)
	assert.Equal(t, 4, c.BlockCount)

	ToCacheExtent(&c, 5)
	assert.Equal(t, CellCacheExtent, c.State)
	assert.Equal(t, 0, c.BlockCount)

	ToEmpty(&c)
	assert.Equal(t, CellEmpty, c.State)
	assert.Equal(t, NoCache, c.Cache)
}

func TestOutOfBoundsCellIsUnknown(t *testing.T) {
	a := newTestArena(t)
	assert.Equal(t, CellUnknown, a.Cell(spatial.Vec2i{X: -1, Y: 0}).State)
	assert.Equal(t, CellUnknown, a.Cell(spatial.Vec2i{X: 0, Y: 20}).State)
	assert.Equal(t, CellEmpty, a.Cell(spatial.Vec2i{X: 19, Y: 19}).State)
}

func TestDistributeAllFillsClustersFirst(t *testing.T) {
	a := newTestArena(t)
	cl := a.AddCluster(spatial.SquareFootprint(spatial.Vec2{X: 5, Y: 5}, 4), 6)
	a.AddNest(spatial.SquareFootprint(spatial.Vec2{X: 15, Y: 15}, 4))
	for i := 0; i < 10; i++ {
		a.AddBlock(BlockCube)
	}
	require.NoError(t, a.DistributeAll())

	assert.Equal(t, 6, a.ClusterSize(cl))
	nest := a.Nests()[0].Footprint
	for _, b := range a.Blocks() {
		require.True(t, b.Placed)
		assert.False(t, nest.Overlaps(b.Footprint()), "%s in nest", b)
		assert.Equal(t, CellHasBlock, a.Cell(b.DLoc).State)
		assert.Equal(t, b.ID, a.Cell(b.DLoc).Block)
	}
	assert.Len(t, a.FreeBlocks(), 10)

	caches, blocks := a.IndexStats()
	assert.Zero(t, caches.TotalEntities)
	assert.Equal(t, 10, blocks.TotalEntities)
}

func TestDistributeSingleBlockAvoidsCaches(t *testing.T) {
	a := New(Config{Width: 5, Height: 5, Resolution: 1}, &rng.Fixed{})
	b0, b1, b2 := a.AddBlock(BlockCube), a.AddBlock(BlockCube), a.AddBlock(BlockCube)
	require.NoError(t, a.PlaceBlock(b0, spatial.Vec2i{X: 2, Y: 2}))
	require.NoError(t, a.PlaceBlock(b1, spatial.Vec2i{X: 1, Y: 2}))
	c := a.MaterializeCache(spatial.Vec2{X: 2.5, Y: 2.5}, 3, []BlockID{b1}, 0)
	a.AddCaches([]*Cache{c})

	// Fixed{} always proposes the center cell first, which is now a cache.
	require.NoError(t, a.DistributeSingleBlock(b2))
	b := a.Block(b2)
	assert.False(t, c.Footprint().Overlaps(b.Footprint()))
}

func TestDistributeSingleBlockAvoidsPendingCache(t *testing.T) {
	a := New(Config{Width: 5, Height: 5, Resolution: 1}, &rng.Fixed{})
	b0, b1 := a.AddBlock(BlockCube), a.AddBlock(BlockCube)
	require.NoError(t, a.PlaceBlock(b0, spatial.Vec2i{X: 1, Y: 2}))
	c := a.MaterializeCache(spatial.Vec2{X: 2.5, Y: 2.5}, 3, []BlockID{b0}, 0)

	// Not registered, so no extent cells are marked around the host.
	require.Nil(t, a.Cache(c.ID))
	require.Equal(t, CellEmpty, a.Cell(spatial.Vec2i{X: 2, Y: 3}).State)

	// Random tries keep proposing the host cell; the scan that follows
	// starts at (2,2) and must skip (2,3), which is under the pending cache.
	require.NoError(t, a.DistributeSingleBlock(b1))
	b := a.Block(b1)
	assert.Equal(t, spatial.Vec2i{X: 2, Y: 4}, b.DLoc)
	assert.False(t, c.Footprint().Overlaps(b.Footprint()))
}

func TestMaterializeAbsorbsHostCellBlock(t *testing.T) {
	a := newTestArena(t)
	host, other := a.AddBlock(BlockCube), a.AddBlock(BlockCube)
	require.NoError(t, a.PlaceBlock(host, spatial.Vec2i{X: 10, Y: 10}))
	require.NoError(t, a.PlaceBlock(other, spatial.Vec2i{X: 11, Y: 10}))

	c := a.MaterializeCache(spatial.Vec2{X: 10.5, Y: 10.5}, 3, []BlockID{other}, 4)
	assert.Equal(t, []BlockID{host, other}, c.Blocks())
	assert.Equal(t, uint64(4), c.CreatedAt)

	hc := a.Cell(spatial.Vec2i{X: 10, Y: 10})
	assert.Equal(t, CellHasCache, hc.State)
	assert.Equal(t, 2, hc.BlockCount)
	assert.Equal(t, CellEmpty, a.Cell(spatial.Vec2i{X: 11, Y: 10}).State)
	for _, id := range c.Blocks() {
		assert.Equal(t, spatial.Vec2i{X: 10, Y: 10}, a.Block(id).DLoc)
		assert.Equal(t, c.ID, a.CacheOf(id))
	}

	// Pending caches are not visible yet.
	assert.Nil(t, a.Cache(c.ID))
	a.AddCaches([]*Cache{c})
	assert.Same(t, c, a.Cache(c.ID))
	assert.Equal(t, CellCacheExtent, a.Cell(spatial.Vec2i{X: 9, Y: 9}).State)
	assert.Equal(t, CellCacheExtent, a.Cell(spatial.Vec2i{X: 11, Y: 11}).State)
	assert.Equal(t, CellEmpty, a.Cell(spatial.Vec2i{X: 12, Y: 10}).State)
	assert.Len(t, a.CachesNear(spatial.Vec2{X: 10, Y: 10}, 2), 1)
}

func TestDiscardCacheRestoresGrid(t *testing.T) {
	a := newTestArena(t)
	obs := &recorder{}
	a.Observe(obs)
	b0, b1 := a.AddBlock(BlockCube), a.AddBlock(BlockCube)
	require.NoError(t, a.PlaceBlock(b0, spatial.Vec2i{X: 3, Y: 3}))
	require.NoError(t, a.PlaceBlock(b1, spatial.Vec2i{X: 4, Y: 3}))

	c := a.MaterializeCache(spatial.Vec2{X: 3.5, Y: 3.5}, 3, []BlockID{b0, b1}, 0)
	require.NoError(t, a.DiscardCache(c))

	counts := a.Grid().CountStates()
	assert.Zero(t, counts[CellHasCache])
	assert.Zero(t, counts[CellCacheExtent])
	assert.Equal(t, 2, counts[CellHasBlock])
	for _, id := range []BlockID{b0, b1} {
		assert.Equal(t, NoCache, a.CacheOf(id))
		assert.True(t, a.Block(id).Placed)
	}
	assert.Empty(t, a.Caches())
	assert.Contains(t, obs.changes, CellHasCache)
}

func TestDiscardUnknownCachePanics(t *testing.T) {
	a := newTestArena(t)
	c := NewDetachedCache(0, spatial.Vec2{X: 3.5, Y: 3.5}, 1, 3, nil)
	assert.Panics(t, func() { _ = a.DiscardCache(c) })
}

func TestPickupAndDepletion(t *testing.T) {
	a := newTestArena(t)
	b0, b1 := a.AddBlock(BlockCube), a.AddBlock(BlockCube)
	require.NoError(t, a.PlaceBlock(b0, spatial.Vec2i{X: 5, Y: 5}))
	require.NoError(t, a.PlaceBlock(b1, spatial.Vec2i{X: 6, Y: 5}))
	c := a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, []BlockID{b0, b1}, 0)
	a.AddCaches([]*Cache{c})

	got, err := a.PickupCachedBlock(c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, b0, got)
	assert.True(t, a.Block(b0).IsCarried())
	assert.Equal(t, 1, a.Cell(c.DCenter).BlockCount)
	assert.Equal(t, []CacheID{c.ID}, a.DepletedCaches())

	require.NoError(t, a.RemoveCache(c.ID))
	assert.Nil(t, a.Cache(c.ID))
	hc := a.Cell(c.DCenter)
	assert.Equal(t, CellHasBlock, hc.State)
	assert.Equal(t, b1, hc.Block)
	assert.Zero(t, a.Grid().CountStates()[CellCacheExtent])

	// Drop the carried block next to the old cache.
	require.NoError(t, a.DropBlock(b0, spatial.Vec2i{X: 8, Y: 8}))
	assert.False(t, a.Block(b0).IsCarried())
	assert.Len(t, a.FreeBlocks(), 2)
}

func TestDropOnCacheHostJoinsCache(t *testing.T) {
	a := newTestArena(t)
	b0, b1, b2 := a.AddBlock(BlockCube), a.AddBlock(BlockCube), a.AddBlock(BlockCube)
	for i, id := range []BlockID{b0, b1, b2} {
		require.NoError(t, a.PlaceBlock(id, spatial.Vec2i{X: 2 + i, Y: 12}))
	}
	c := a.MaterializeCache(spatial.Vec2{X: 2.5, Y: 12.5}, 3, []BlockID{b0, b1}, 0)
	a.AddCaches([]*Cache{c})

	require.NoError(t, a.PickupFreeBlock(b2, 0))
	assert.Equal(t, CellEmpty, a.Cell(spatial.Vec2i{X: 4, Y: 12}).State)
	require.NoError(t, a.DropBlock(b2, c.DCenter))
	assert.Equal(t, 3, c.NBlocks())
	assert.True(t, c.Contains(b2))
	assert.Equal(t, 3, a.Cell(c.DCenter).BlockCount)
}

func TestDropInNestRedistributes(t *testing.T) {
	a := newTestArena(t)
	a.AddNest(spatial.SquareFootprint(spatial.Vec2{X: 10, Y: 10}, 2))
	id := a.AddBlock(BlockRamp)
	require.NoError(t, a.DistributeAll())
	require.NoError(t, a.PickupFreeBlock(id, 2))
	require.NoError(t, a.DropInNest(id))

	b := a.Block(id)
	assert.False(t, b.IsCarried())
	assert.Equal(t, 2.0, b.Footprint().Dims.X)
	assert.False(t, a.Nests()[0].Footprint.Overlaps(b.Footprint()))
}

func TestPlaceBlockRejectsOverlap(t *testing.T) {
	a := newTestArena(t)
	ramp, cube := a.AddBlock(BlockRamp), a.AddBlock(BlockCube)
	require.NoError(t, a.PlaceBlock(ramp, spatial.Vec2i{X: 1, Y: 1}))
	// The ramp also covers (2,1).
	assert.ErrorIs(t, a.PlaceBlock(cube, spatial.Vec2i{X: 2, Y: 1}), ErrNoFreeCell)
	assert.NoError(t, a.PlaceBlock(cube, spatial.Vec2i{X: 3, Y: 1}))
}
