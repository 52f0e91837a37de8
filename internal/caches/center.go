package caches

import (
	"forage/internal/arena"
	"forage/internal/rng"
	"forage/internal/spatial"
)

// MaxPlacementTries bounds the deconfliction loop of CenterCalculator.
const MaxPlacementTries = 20

// CenterCalculator picks a conflict-free center for a new cache.
type CenterCalculator struct {
	Resolution float64
	CacheDim   float64
	ArenaDims  spatial.Vec2
	Nests      []arena.Nest
	Clusters   []arena.Cluster
	// MaxTries defaults to MaxPlacementTries when zero.
	MaxTries int
}

// Calc starts from the centroid of blocks and nudges it away from the arena
// boundary, every nest, every cluster and every cache in avoid. It returns false if no
// conflict-free center was found within the try budget; that is a normal
// outcome, not an error.
func (cc *CenterCalculator) Calc(blocks []*arena.Block, avoid []*arena.Cache, src rng.Source) (spatial.Vec2, bool) {
	assertf(len(blocks) > 0, "center of an empty block set")

	var sum spatial.Vec2
	for _, b := range blocks {
		sum = sum.Add(b.Center())
	}
	center := spatial.SnapToCellCenter(sum.Scale(1/float64(len(blocks))), cc.Resolution)
	center = cc.clamp(center)

	tries := cc.MaxTries
	if tries <= 0 {
		tries = MaxPlacementTries
	}
	for i := 0; i < tries; i++ {
		if cc.outOfBounds(center) {
			center = cc.clamp(center)
			continue
		}
		conflict, found := cc.firstConflict(center, avoid)
		if !found {
			debugf("center %s found after %d tries", center, i)
			return center, true
		}
		if conflict.X {
			center.X += cc.Resolution * rng.Sign(src)
		}
		if conflict.Y {
			center.Y += cc.Resolution * rng.Sign(src)
		}
	}
	warnf("no conflict-free center for %d blocks after %d tries", len(blocks), tries)
	return spatial.Vec2{}, false
}

func (cc *CenterCalculator) bounds() (spatial.Span, spatial.Span) {
	h := cc.CacheDim / 2
	return spatial.Span{Lo: h, Hi: cc.ArenaDims.X - h}, spatial.Span{Lo: h, Hi: cc.ArenaDims.Y - h}
}

func (cc *CenterCalculator) clamp(c spatial.Vec2) spatial.Vec2 {
	xs, ys := cc.bounds()
	return spatial.Vec2{X: xs.Clamp(c.X), Y: ys.Clamp(c.Y)}
}

func (cc *CenterCalculator) outOfBounds(c spatial.Vec2) bool {
	xs, ys := cc.bounds()
	return !xs.Contains(c.X) || !ys.Contains(c.Y)
}

// firstConflict returns the per-axis conflict with the first nest, cluster
// or cache the candidate footprint overlaps, checked in that order.
func (cc *CenterCalculator) firstConflict(center spatial.Vec2, avoid []*arena.Cache) (spatial.Conflict, bool) {
	dims := spatial.Vec2{X: cc.CacheDim, Y: cc.CacheDim}
	for i := range cc.Nests {
		if c := spatial.PlacementConflict(center, dims, cc.Nests[i].Footprint); c.Both() {
			debugf("center %s conflicts with nest%d", center, cc.Nests[i].ID)
			return c, true
		}
	}
	for i := range cc.Clusters {
		if c := spatial.PlacementConflict(center, dims, cc.Clusters[i].Footprint); c.Both() {
			debugf("center %s conflicts with cluster%d", center, cc.Clusters[i].ID)
			return c, true
		}
	}
	for _, other := range avoid {
		if c := spatial.PlacementConflict(center, dims, other.Footprint()); c.Both() {
			debugf("center %s conflicts with %s", center, other)
			return c, true
		}
	}
	return spatial.Conflict{}, false
}
