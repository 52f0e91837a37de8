package caches

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forage/internal/arena"
	"forage/internal/rng"
	"forage/internal/spatial"
)

func TestStaticCacheLocs(t *testing.T) {
	dims := spatial.Vec2{X: 40, Y: 20}
	nests := []arena.Nest{{Footprint: spatial.SquareFootprint(spatial.Vec2{X: 10, Y: 10}, 4)}}
	clusters := []arena.Cluster{
		{ID: 0, Footprint: spatial.SquareFootprint(spatial.Vec2{X: 30, Y: 10}, 4)},
		{ID: 1, Footprint: spatial.SquareFootprint(spatial.Vec2{X: 10, Y: 2}, 2)},
	}
	assert.Equal(t, []spatial.Vec2{{X: 20.5, Y: 10.5}, {X: 10.5, Y: 6.5}},
		StaticCacheLocs(dims, 1, nests, clusters))

	assert.Equal(t, []spatial.Vec2{
		{X: 10.5, Y: 5.5}, {X: 10.5, Y: 15.5}, {X: 30.5, Y: 5.5}, {X: 30.5, Y: 15.5},
	}, StaticCacheLocs(dims, 1, nil, nil))
}

func TestStaticCreateAndRefill(t *testing.T) {
	a := newArena(t, 40, rng.New(9))
	for i := 0; i < 60; i++ {
		a.AddBlock(arena.BlockCube)
	}
	require.NoError(t, a.DistributeAll())

	m := NewStaticManager(a, StaticParams{Dimension: 3, Size: 5})
	require.Len(t, m.Locations(), 4)

	created := m.Create(0)
	require.Len(t, created, 4)
	for i, c := range created {
		assert.GreaterOrEqual(t, c.NBlocks(), 5)
		assert.Equal(t, m.Locations()[i], c.Center)
	}
	checkPassInvariants(t, a, a.Caches(), 5)
	assert.Empty(t, m.CreateMissing(1))

	// Drain one cache until it is depleted and removed.
	victim := created[0]
	for victim.NBlocks() >= arena.MinCacheBlocks {
		id, err := a.PickupCachedBlock(victim.ID, 0)
		require.NoError(t, err)
		require.NoError(t, a.DropInNest(id))
	}
	require.NoError(t, a.RemoveCache(victim.ID))
	require.Len(t, a.Caches(), 3)

	refilled := m.CreateMissing(2)
	require.Len(t, refilled, 1)
	assert.Equal(t, victim.Center, refilled[0].Center)
	assert.Equal(t, uint64(2), refilled[0].CreatedAt)
	assert.Len(t, a.Caches(), 4)
	checkPassInvariants(t, a, a.Caches(), 2)
}

func TestStaticSkipsBlockedLocation(t *testing.T) {
	a := newArena(t, 40, rng.New(9))
	a.AddNest(spatial.SquareFootprint(spatial.Vec2{X: 10.5, Y: 10.5}, 2))
	for i := 0; i < 40; i++ {
		a.AddBlock(arena.BlockCube)
	}
	require.NoError(t, a.DistributeAll())

	// Without clusters the quarter points are used; one sits on the nest.
	m := NewStaticManager(a, StaticParams{Dimension: 3, Size: 3})
	created := m.Create(0)
	assert.Len(t, created, 3)
	for _, c := range created {
		assert.False(t, c.Footprint().Overlaps(a.Nests()[0].Footprint))
	}
}
