package caches

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forage/internal/arena"
	"forage/internal/spatial"
)

func TestSanityChecksPass(t *testing.T) {
	a := newArena(t, 20, nil)
	ids := placeBlocks(t, a, cells(5, 5, 6, 5, 15, 15, 14, 15)...)
	c1 := a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, ids[:2], 0)
	c2 := a.MaterializeCache(spatial.Vec2{X: 14.5, Y: 14.5}, 3, ids[2:], 0)

	v := NewVerifier(a, a.Nests(), true)
	caches := []*arena.Cache{c1, c2}
	assert.NoError(t, v.SanityChecks(caches, FreeBlocks(a.Blocks(), caches), nil))
	assert.True(t, v.VerifySingle(c2, caches, a.Blocks(), nil))
}

func TestSanityChecksFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, a *arena.Arena) ([]*arena.Cache, []arena.Cluster)
		want  error
	}{
		{
			name: "nest overlap",
			setup: func(t *testing.T, a *arena.Arena) ([]*arena.Cache, []arena.Cluster) {
				a.AddNest(spatial.SquareFootprint(spatial.Vec2{X: 6.5, Y: 6.5}, 1))
				ids := placeBlocks(t, a, cells(5, 5, 6, 5)...)
				return []*arena.Cache{a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, ids, 0)}, nil
			},
			want: ErrNestOverlap,
		},
		{
			name: "cluster overlap",
			setup: func(t *testing.T, a *arena.Arena) ([]*arena.Cache, []arena.Cluster) {
				a.AddCluster(spatial.SquareFootprint(spatial.Vec2{X: 7.5, Y: 5}, 2), 0)
				ids := placeBlocks(t, a, cells(5, 5, 5, 4)...)
				return []*arena.Cache{a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, ids, 0)}, a.Clusters()
			},
			want: ErrClusterOverlap,
		},
		{
			name: "free block under footprint",
			setup: func(t *testing.T, a *arena.Arena) ([]*arena.Cache, []arena.Cluster) {
				ids := placeBlocks(t, a, cells(5, 5, 6, 5, 4, 4)...)
				return []*arena.Cache{a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, ids[:2], 0)}, nil
			},
			want: ErrFreeBlockOverlap,
		},
		{
			name: "cache overlap",
			setup: func(t *testing.T, a *arena.Arena) ([]*arena.Cache, []arena.Cluster) {
				ids := placeBlocks(t, a, cells(5, 5, 5, 6, 8, 5, 8, 6)...)
				c1 := a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, ids[:2], 0)
				c2 := a.MaterializeCache(spatial.Vec2{X: 7.5, Y: 5.5}, 3, ids[2:], 0)
				return []*arena.Cache{c1, c2}, nil
			},
			want: ErrCacheOverlap,
		},
		{
			name: "too few blocks",
			setup: func(t *testing.T, a *arena.Arena) ([]*arena.Cache, []arena.Cluster) {
				ids := placeBlocks(t, a, cells(5, 5, 6, 5)...)
				c := a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, ids, 0)
				a.AddCaches([]*arena.Cache{c})
				_, err := a.PickupCachedBlock(c.ID, 0)
				require.NoError(t, err)
				return []*arena.Cache{c}, nil
			},
			want: ErrInternalConsistency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newArena(t, 20, nil)
			caches, clusters := tt.setup(t, a)
			v := NewVerifier(a, a.Nests(), true)
			err := v.SanityChecks(caches, FreeBlocks(a.Blocks(), caches), clusters)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCrossConsistency(t *testing.T) {
	c1 := arena.NewDetachedCache(0, spatial.Vec2{X: 2.5, Y: 2.5}, 1, 3, []arena.BlockID{1, 2})
	c2 := arena.NewDetachedCache(1, spatial.Vec2{X: 9.5, Y: 9.5}, 1, 3, []arena.BlockID{3, 2})
	assert.ErrorIs(t, crossConsistency([]*arena.Cache{c1, c2}), ErrCrossConsistency)

	dup := arena.NewDetachedCache(2, spatial.Vec2{X: 2.5, Y: 2.5}, 1, 3, []arena.BlockID{4, 4})
	assert.ErrorIs(t, crossConsistency([]*arena.Cache{dup}), ErrCrossConsistency)

	c3 := arena.NewDetachedCache(3, spatial.Vec2{X: 9.5, Y: 9.5}, 1, 3, []arena.BlockID{5, 6})
	assert.NoError(t, crossConsistency([]*arena.Cache{c1, c3}))
}

func TestVerifySinglePolicy(t *testing.T) {
	for _, strict := range []bool{true, false} {
		a := newArena(t, 20, nil)
		a.AddNest(spatial.SquareFootprint(spatial.Vec2{X: 6.5, Y: 6.5}, 1))
		ids := placeBlocks(t, a, cells(5, 5, 6, 5)...)
		c := a.MaterializeCache(spatial.Vec2{X: 5.5, Y: 5.5}, 3, ids, 0)

		v := NewVerifier(a, a.Nests(), strict)
		assert.Equal(t, !strict, v.VerifySingle(c, []*arena.Cache{c}, a.Blocks(), nil), "strict=%v", strict)
	}
}

func TestVerifyRequiresCaches(t *testing.T) {
	a := newArena(t, 20, nil)
	v := NewVerifier(a, nil, true)
	c := arena.NewDetachedCache(0, spatial.Vec2{X: 2.5, Y: 2.5}, 1, 3, nil)
	assert.Panics(t, func() { v.VerifySingle(c, nil, nil, nil) })
	assert.Panics(t, func() { v.VerifyAll(nil, nil, nil) })
}
