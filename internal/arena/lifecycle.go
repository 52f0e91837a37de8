package arena

import (
	"fmt"
	"slices"

	"forage/internal/spatial"
)

// MaterializeCache moves blocks into the cell containing center, marks that
// cell as a cache host and returns the new cache. A free block already
// sitting in the host cell is absorbed at the front of the list.
//
// The cache is pending: it is an obstacle for block distribution but is not
// visible through Cache/Caches until AddCaches registers it, or it is given
// back with DiscardCache.
func (a *Arena) MaterializeCache(center spatial.Vec2, dim float64, blocks []BlockID, t uint64) *Cache {
	host := spatial.ToDiscrete(center, a.res)
	hc := a.grid.At(host)
	assertf(hc.State == CellEmpty || hc.State == CellHasBlock,
		"host cell %s for cache at %s is %s", host, center, hc.State)

	ids := blocks
	if hc.State == CellHasBlock && !slices.Contains(blocks, hc.Block) {
		ids = append([]BlockID{hc.Block}, blocks...)
	}

	id := CacheID(len(a.caches))
	a.caches = append(a.caches, nil)

	for _, bid := range ids {
		b := a.Block(bid)
		assertf(!b.IsCarried(), "cannot cache carried %s", b)
		assertf(a.owner[bid] == NoCache, "%s already in cache%d", b, a.owner[bid])
		a.unplace(b)
		b.Anchor = spatial.ToReal(host, a.res)
		b.DLoc = host
		b.Placed = true
		a.owner[bid] = id
		a.blockIndex.Insert(uint32(bid), b.Center())
	}
	c := newCache(id, center, host, dim, ids, t)
	a.grid.toCache(host, id, len(ids))
	a.pending = append(a.pending, c)
	return c
}

// DiscardCache undoes MaterializeCache: the host cell and any extent become
// empty and every member block is redistributed.
func (a *Arena) DiscardCache(c *Cache) error {
	i := slices.Index(a.pending, c)
	assertf(i >= 0, "discard of %s which is not pending", c)
	a.pending = slices.Delete(a.pending, i, i+1)

	a.ClearCacheExtent(c)
	a.grid.toEmpty(c.DCenter)
	for _, bid := range c.blocks {
		a.owner[bid] = NoCache
		a.Block(bid).Placed = false
		a.blockIndex.Remove(uint32(bid))
	}
	for _, bid := range c.blocks {
		if err := a.DistributeSingleBlock(bid); err != nil {
			return fmt.Errorf("discard %s: %w", c, err)
		}
	}
	return nil
}

// AddCaches registers pending caches: their extent cells are marked and they
// enter the cache index.
func (a *Arena) AddCaches(cs []*Cache) {
	for _, c := range cs {
		i := slices.Index(a.pending, c)
		assertf(i >= 0, "add of %s which is not pending", c)
		a.pending = slices.Delete(a.pending, i, i+1)
		a.caches[c.ID] = c
		a.SetCacheExtent(c)
		a.cacheIndex.Insert(uint32(c.ID), c.Center)
		for _, bid := range c.blocks {
			a.blockIndex.Move(uint32(bid), a.Block(bid).Center())
		}
	}
}

// SetCacheExtent marks every cell under the cache footprint except the host
// cell as cache extent. Cells holding a free block keep it.
func (a *Arena) SetCacheExtent(c *Cache) {
	for _, d := range c.Footprint().Cells(a.res) {
		if d == c.DCenter || !a.grid.InBounds(d) {
			continue
		}
		if a.grid.At(d).State == CellHasBlock {
			continue
		}
		a.grid.toCacheExtent(d, c.ID)
	}
}

// ClearCacheExtent empties the cells marked as extent of c.
func (a *Arena) ClearCacheExtent(c *Cache) {
	for _, d := range c.Footprint().Cells(a.res) {
		if !a.grid.InBounds(d) {
			continue
		}
		if cell := a.grid.At(d); cell.State == CellCacheExtent && cell.Cache == c.ID {
			a.grid.toEmpty(d)
		}
	}
}

// RemoveCache destroys a registered cache. The first remaining block stays in
// the host cell as a free block; any others are redistributed.
func (a *Arena) RemoveCache(id CacheID) error {
	c := a.Cache(id)
	if c == nil {
		return fmt.Errorf("remove cache%d: no such cache", id)
	}
	a.ClearCacheExtent(c)
	a.cacheIndex.Remove(uint32(id))
	a.caches[id] = nil
	a.grid.toEmpty(c.DCenter)

	for _, bid := range c.blocks {
		a.owner[bid] = NoCache
	}
	for i, bid := range c.blocks {
		b := a.Block(bid)
		if i == 0 {
			b.Placed = false
			a.place(b, c.DCenter)
			continue
		}
		if err := a.DistributeSingleBlock(bid); err != nil {
			return fmt.Errorf("remove %s: %w", c, err)
		}
	}
	return nil
}

// DepletedCaches returns the ids of live caches holding fewer than
// MinCacheBlocks blocks.
func (a *Arena) DepletedCaches() []CacheID {
	var out []CacheID
	for _, c := range a.caches {
		if c != nil && c.NBlocks() < MinCacheBlocks {
			out = append(out, c.ID)
		}
	}
	return out
}

// PickupFreeBlock hands a free block to robot r.
func (a *Arena) PickupFreeBlock(id BlockID, r RobotID) error {
	b := a.Block(id)
	if !b.Placed || b.IsCarried() || a.owner[id] != NoCache {
		return fmt.Errorf("pickup %s: block is not free", b)
	}
	a.unplace(b)
	b.Carrier = r
	return nil
}

// PickupCachedBlock hands the next block of cache cid to robot r. The caller
// is responsible for removing the cache if it is now depleted.
func (a *Arena) PickupCachedBlock(cid CacheID, r RobotID) (BlockID, error) {
	c := a.Cache(cid)
	if c == nil {
		return NoBlock, fmt.Errorf("pickup from cache%d: no such cache", cid)
	}
	id, ok := c.pop()
	if !ok {
		return NoBlock, fmt.Errorf("pickup from %s: cache is empty", c)
	}
	b := a.Block(id)
	a.owner[id] = NoCache
	a.blockIndex.Remove(uint32(id))
	b.Placed = false
	b.Carrier = r
	a.grid.toCache(c.DCenter, cid, c.NBlocks())
	return id, nil
}

// DropBlock releases a carried block in cell d. Dropping on a cache host cell
// adds the block to that cache.
func (a *Arena) DropBlock(id BlockID, d spatial.Vec2i) error {
	b := a.Block(id)
	if !b.IsCarried() {
		return fmt.Errorf("drop %s: not carried", b)
	}
	if cell := a.grid.At(d); cell.State == CellHasCache {
		c := a.Cache(cell.Cache)
		assertf(c != nil, "host cell %s names dead cache%d", d, cell.Cache)
		b.Carrier = NoRobot
		b.Anchor = spatial.ToReal(d, a.res)
		b.DLoc = d
		b.Placed = true
		c.add(id)
		a.owner[id] = c.ID
		a.blockIndex.Insert(uint32(id), b.Center())
		a.grid.toCache(d, c.ID, c.NBlocks())
		return nil
	}
	cluster := a.clusterContaining(d, b)
	if !a.placeable(d, b, cluster) {
		return fmt.Errorf("drop %s at %s: %w", b, d, ErrNoFreeCell)
	}
	b.Carrier = NoRobot
	a.place(b, d)
	b.Cluster = cluster
	return nil
}

// DropInNest delivers a carried block. The block goes back into the arena at
// a random free cell.
func (a *Arena) DropInNest(id BlockID) error {
	b := a.Block(id)
	if !b.IsCarried() {
		return fmt.Errorf("nest drop %s: not carried", b)
	}
	b.Carrier = NoRobot
	return a.DistributeSingleBlock(id)
}
