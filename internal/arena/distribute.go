package arena

import (
	"errors"
	"fmt"

	"forage/internal/spatial"
)

// ErrNoFreeCell is returned when a block cannot be placed anywhere.
var ErrNoFreeCell = errors.New("no free cell")

const randomPlacementTries = 256

// DistributeAll places every unplaced, uncarried block. Clusters are filled
// round-robin up to capacity first; the rest go to random free cells.
func (a *Arena) DistributeAll() error {
	next := 0
	for _, b := range a.blocks {
		if b.Placed || b.IsCarried() {
			continue
		}
		placed := false
		for i := 0; i < len(a.clusters) && !placed; i++ {
			cl := &a.clusters[(next+i)%len(a.clusters)]
			if a.ClusterSize(cl.ID) >= cl.Capacity {
				continue
			}
			if d, ok := a.findCell(b, cl.Footprint.Cells(a.res), cl.ID); ok {
				a.place(b, d)
				b.Cluster = cl.ID
				placed = true
				next = (next + i + 1) % len(a.clusters)
			}
		}
		if placed {
			continue
		}
		if err := a.DistributeSingleBlock(b.ID); err != nil {
			return err
		}
	}
	return nil
}

// DistributeSingleBlock moves a non-carried block to a random empty cell that
// does not overlap any cache (registered or pending), cluster, nest or other
// block. This is the path rolled-back caches use to give their blocks back.
func (a *Arena) DistributeSingleBlock(id BlockID) error {
	b := a.Block(id)
	assertf(!b.IsCarried(), "cannot distribute carried %s", b)
	assertf(a.owner[id] == NoCache, "cannot distribute %s held by cache%d", b, a.owner[id])

	a.unplace(b)
	xd, yd := a.grid.Dims()
	for i := 0; i < randomPlacementTries; i++ {
		d := spatial.Vec2i{X: a.rng.IntN(xd), Y: a.rng.IntN(yd)}
		if a.placeable(d, b, NoCluster) {
			a.place(b, d)
			return nil
		}
	}
	// Dense arena: fall back to a full scan from a random start.
	start := a.rng.IntN(xd * yd)
	for k := 0; k < xd*yd; k++ {
		i := (start + k) % (xd * yd)
		d := spatial.Vec2i{X: i / yd, Y: i % yd}
		if a.placeable(d, b, NoCluster) {
			a.place(b, d)
			return nil
		}
	}
	return fmt.Errorf("distribute %s: %w", b, ErrNoFreeCell)
}

// PlaceBlock puts an unplaced or free block at cell d.
func (a *Arena) PlaceBlock(id BlockID, d spatial.Vec2i) error {
	b := a.Block(id)
	if b.IsCarried() || a.owner[id] != NoCache {
		return fmt.Errorf("place %s: block is not free", b)
	}
	a.unplace(b)
	if !a.placeable(d, b, a.clusterContaining(d, b)) {
		return fmt.Errorf("place %s at %s: %w", b, d, ErrNoFreeCell)
	}
	a.place(b, d)
	b.Cluster = a.clusterContaining(d, b)
	return nil
}

func (a *Arena) findCell(b *Block, cells []spatial.Vec2i, cluster ClusterID) (spatial.Vec2i, bool) {
	if len(cells) == 0 {
		return spatial.Vec2i{}, false
	}
	for i := 0; i < len(cells); i++ {
		d := cells[a.rng.IntN(len(cells))]
		if a.placeable(d, b, cluster) {
			return d, true
		}
	}
	for _, d := range cells {
		if a.placeable(d, b, cluster) {
			return d, true
		}
	}
	return spatial.Vec2i{}, false
}

// placeable reports whether b could sit with its anchor in cell d. A block
// may only overlap cluster `inside`, and then must lie entirely within it.
func (a *Arena) placeable(d spatial.Vec2i, b *Block, inside ClusterID) bool {
	fp := spatial.FootprintFromAnchor(spatial.ToReal(d, a.res), b.Dims)
	for _, c := range fp.Cells(a.res) {
		if a.grid.At(c).State != CellEmpty {
			return false
		}
	}
	for i := range a.nests {
		if a.nests[i].Footprint.Overlaps(fp) {
			return false
		}
	}
	for i := range a.clusters {
		cl := &a.clusters[i]
		if cl.ID == inside {
			if !within(fp, cl.Footprint) {
				return false
			}
			continue
		}
		if cl.Footprint.Overlaps(fp) {
			return false
		}
	}
	for _, c := range a.caches {
		if c != nil && c.Footprint().Overlaps(fp) {
			return false
		}
	}
	for _, c := range a.pending {
		if c.Footprint().Overlaps(fp) {
			return false
		}
	}
	query := spatial.Footprint{Center: fp.Center, Dims: fp.Dims.Add(spatial.Vec2{X: 2 * a.res, Y: 2 * a.res})}
	for _, other := range a.blockIndex.QueryRect(query) {
		ob := a.blocks[other]
		if ob.ID != b.ID && ob.Footprint().Overlaps(fp) {
			return false
		}
	}
	return true
}

func (a *Arena) clusterContaining(d spatial.Vec2i, b *Block) ClusterID {
	fp := spatial.FootprintFromAnchor(spatial.ToReal(d, a.res), b.Dims)
	for i := range a.clusters {
		if within(fp, a.clusters[i].Footprint) {
			return a.clusters[i].ID
		}
	}
	return NoCluster
}

func within(inner, outer spatial.Footprint) bool {
	ix, iy := inner.XSpan(), inner.YSpan()
	ox, oy := outer.XSpan(), outer.YSpan()
	return ix.Lo >= ox.Lo && ix.Hi <= ox.Hi && iy.Lo >= oy.Lo && iy.Hi <= oy.Hi
}

// place puts a free block in cell d and indexes it.
func (a *Arena) place(b *Block, d spatial.Vec2i) {
	b.Anchor = spatial.ToReal(d, a.res)
	b.DLoc = d
	b.Placed = true
	b.Cluster = NoCluster
	a.grid.toBlock(d, b.ID)
	a.blockIndex.Insert(uint32(b.ID), b.Center())
}

// unplace takes a free block off the grid and out of the index.
func (a *Arena) unplace(b *Block) {
	if !b.Placed {
		return
	}
	if c := a.grid.At(b.DLoc); c.State == CellHasBlock && c.Block == b.ID {
		a.grid.toEmpty(b.DLoc)
	}
	a.blockIndex.Remove(uint32(b.ID))
	b.Placed = false
	b.Cluster = NoCluster
}
