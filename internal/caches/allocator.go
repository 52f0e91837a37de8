package caches

import (
	"forage/internal/arena"
	"forage/internal/spatial"
)

// CreationBlocks is the partition of an arena snapshot's blocks used by one
// creation pass.
type CreationBlocks struct {
	// Usable blocks may seed a new cache.
	Usable []*arena.Block
	// Absorbable blocks may be swept into a cache placed over them.
	Absorbable []*arena.Block
}

func inAnyCache(b *arena.Block, existing []*arena.Cache) bool {
	for _, c := range existing {
		if c.Contains(b.ID) {
			return true
		}
	}
	return false
}

// UsableFilter reports whether b can seed a new cache: it is not carried, not
// in an existing cache and not a cluster member.
func UsableFilter(b *arena.Block, existing []*arena.Cache, clusters []arena.Cluster) bool {
	if b.IsCarried() || !b.Placed || inAnyCache(b, existing) {
		return false
	}
	if b.Cluster == arena.NoCluster {
		return true
	}
	for i := range clusters {
		if clusters[i].ID == b.Cluster {
			return false
		}
	}
	return true
}

// AbsorbableFilter reports whether b can be absorbed into a new cache.
func AbsorbableFilter(b *arena.Block, existing []*arena.Cache) bool {
	return !b.IsCarried() && b.Placed && !inAnyCache(b, existing)
}

// AllocateCreationBlocks applies both filters to snap. It does not modify
// anything, so calling it twice on the same snapshot gives the same result.
func AllocateCreationBlocks(snap arena.Snapshot) CreationBlocks {
	var out CreationBlocks
	for _, b := range snap.Blocks {
		if UsableFilter(b, snap.Caches, snap.Clusters) {
			out.Usable = append(out.Usable, b)
		}
		if AbsorbableFilter(b, snap.Caches) {
			out.Absorbable = append(out.Absorbable, b)
		}
	}
	return out
}

// AllocateGroup builds the candidate group anchored at usable[anchor]: the
// anchor plus every later unclaimed block whose center is within minDist of
// the anchor's. Every block placed in the group is marked claimed.
func AllocateGroup(usable []*arena.Block, claimed map[arena.BlockID]bool, anchor int, minDist float64) []*arena.Block {
	a := usable[anchor]
	assertf(!claimed[a.ID], "anchor %s already claimed", a)

	group := []*arena.Block{a}
	claimed[a.ID] = true
	for _, b := range usable[anchor+1:] {
		if claimed[b.ID] {
			continue
		}
		if a.Center().Dist(b.Center()) <= minDist {
			group = append(group, b)
			claimed[b.ID] = true
		}
	}
	checkGroup(group)
	return group
}

func checkGroup(group []*arena.Block) {
	seen := make(map[arena.BlockID]struct{}, len(group))
	for _, b := range group {
		_, dup := seen[b.ID]
		assertf(!dup, "%s appears twice in one candidate group", b)
		seen[b.ID] = struct{}{}
	}
}

// Groups partitions usable into candidate groups, greedily in list order.
// Groups may be smaller than any minimum size; callers filter.
func Groups(usable []*arena.Block, minDist float64) [][]*arena.Block {
	claimed := make(map[arena.BlockID]bool, len(usable))
	var out [][]*arena.Block
	for i, b := range usable {
		if claimed[b.ID] {
			continue
		}
		out = append(out, AllocateGroup(usable, claimed, i, minDist))
	}
	return out
}

// AbsorbBlocks returns the blocks of pool that lie under a cache of side dim
// centered at center and are not already in group.
func AbsorbBlocks(pool, group []*arena.Block, center spatial.Vec2, dim float64) []*arena.Block {
	inGroup := make(map[arena.BlockID]struct{}, len(group))
	for _, b := range group {
		inGroup[b.ID] = struct{}{}
	}
	dims := spatial.Vec2{X: dim, Y: dim}
	var out []*arena.Block
	for _, b := range pool {
		if _, ok := inGroup[b.ID]; ok {
			continue
		}
		if spatial.PlacementConflict(center, dims, b.Footprint()).Both() {
			out = append(out, b)
		}
	}
	return out
}

func blockIDs(bs ...[]*arena.Block) []arena.BlockID {
	n := 0
	for _, s := range bs {
		n += len(s)
	}
	ids := make([]arena.BlockID, 0, n)
	for _, s := range bs {
		for _, b := range s {
			ids = append(ids, b.ID)
		}
	}
	return ids
}
