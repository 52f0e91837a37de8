package caches

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forage/internal/arena"
	"forage/internal/spatial"
)

func TestFilters(t *testing.T) {
	a := newArena(t, 20, nil)
	cl := a.AddCluster(spatial.SquareFootprint(spatial.Vec2{X: 15, Y: 15}, 4), 10)
	ids := placeBlocks(t, a, cells(2, 2, 3, 2, 5, 5, 15, 15, 8, 8)...)
	require.Equal(t, cl, a.Block(ids[3]).Cluster)

	c := a.MaterializeCache(spatial.Vec2{X: 2.5, Y: 2.5}, 3, ids[:2], 0)
	a.AddCaches([]*arena.Cache{c})
	require.NoError(t, a.PickupFreeBlock(ids[4], 0))

	snap := a.Snapshot(1)
	alloc := AllocateCreationBlocks(snap)
	assert.Equal(t, []arena.BlockID{ids[2]}, blockIDs(alloc.Usable))
	assert.Equal(t, []arena.BlockID{ids[2], ids[3]}, blockIDs(alloc.Absorbable))

	// Pure: a second application over the same snapshot agrees.
	again := AllocateCreationBlocks(snap)
	assert.Equal(t, alloc, again)
}

func TestAllocateGroupMeasuresFromAnchor(t *testing.T) {
	// b is within 3 of the anchor, c is within 3 of b but not of the anchor.
	// Measuring a block's distance to itself would put all three together.
	usable := []*arena.Block{blockAt(0, 0, 0), blockAt(1, 2, 0), blockAt(2, 4, 0)}
	claimed := map[arena.BlockID]bool{}

	group := AllocateGroup(usable, claimed, 0, 3)
	assert.Equal(t, []arena.BlockID{0, 1}, blockIDs(group))
	assert.True(t, claimed[0])
	assert.True(t, claimed[1])
	assert.False(t, claimed[2])
}

func TestAllocateGroupOnClaimedAnchorPanics(t *testing.T) {
	usable := []*arena.Block{blockAt(0, 0, 0)}
	assert.Panics(t, func() {
		AllocateGroup(usable, map[arena.BlockID]bool{0: true}, 0, 3)
	})
}

func TestCheckGroupRejectsDuplicates(t *testing.T) {
	b := blockAt(4, 1, 1)
	assert.Panics(t, func() { checkGroup([]*arena.Block{b, blockAt(5, 2, 2), b}) })
	assert.NotPanics(t, func() { checkGroup([]*arena.Block{b, blockAt(5, 2, 2)}) })
}

func TestGroupsPartitionUsable(t *testing.T) {
	usable := []*arena.Block{
		blockAt(0, 0, 0),
		blockAt(1, 10, 10),
		blockAt(2, 1, 1),
		blockAt(3, 11, 10),
		blockAt(4, 30, 30),
	}
	groups := Groups(usable, 2)
	require.Len(t, groups, 3)
	assert.Equal(t, []arena.BlockID{0, 2}, blockIDs(groups[0]))
	assert.Equal(t, []arena.BlockID{1, 3}, blockIDs(groups[1]))
	assert.Equal(t, []arena.BlockID{4}, blockIDs(groups[2]))

	seen := map[arena.BlockID]int{}
	for _, g := range groups {
		for _, b := range g {
			seen[b.ID]++
		}
	}
	for _, b := range usable {
		assert.Equal(t, 1, seen[b.ID], "block%d", b.ID)
	}
}

func TestAbsorbBlocks(t *testing.T) {
	group := []*arena.Block{blockAt(0, 5, 5)}
	pool := []*arena.Block{
		group[0],
		blockAt(1, 6, 6), // inside
		blockAt(2, 7, 5), // touches the right edge only
		blockAt(3, 3, 3), // outside
		blockAt(4, 4, 6), // inside
	}
	got := AbsorbBlocks(pool, group, spatial.Vec2{X: 5.5, Y: 5.5}, 3)
	assert.Equal(t, []arena.BlockID{1, 4}, blockIDs(got))
}
