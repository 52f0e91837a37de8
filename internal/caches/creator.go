package caches

import (
	"fmt"
	"slices"

	"forage/internal/arena"
	"forage/internal/rng"
	"forage/internal/spatial"
)

// Arena is the arena behavior the cache core drives. *arena.Arena
// implements it.
type Arena interface {
	CellReader
	Resolution() float64
	Dims() spatial.Vec2
	Nests() []arena.Nest
	Clusters() []arena.Cluster
	Caches() []*arena.Cache
	FreeBlocks() []*arena.Block
	RNG() rng.Source
	Snapshot(t uint64) arena.Snapshot
	MaterializeCache(center spatial.Vec2, dim float64, blocks []arena.BlockID, t uint64) *arena.Cache
	DiscardCache(c *arena.Cache) error
	AddCaches(cs []*arena.Cache)
}

// CreateParams is the per-pass input to Creator.CreateAll.
type CreateParams struct {
	Timestep uint64
	Existing []*arena.Cache
	Nests    []arena.Nest
	Clusters []arena.Cluster
}

// CreationResult is what one creation pass produced. Created caches are
// materialized but not yet registered with the arena.
type CreationResult struct {
	Created   []*arena.Cache
	Discarded int
}

// Creator runs one creation pass over the usable block pool.
type Creator struct {
	arena     Arena
	verifier  *Verifier
	cacheDim  float64
	minBlocks int
	minDist   float64
}

// NewCreator creates a creator. cacheDim must already be a valid cache
// dimension (see spatial.CacheDimension).
func NewCreator(a Arena, v *Verifier, cacheDim float64, minBlocks int, minDist float64) *Creator {
	return &Creator{
		arena:     a,
		verifier:  v,
		cacheDim:  cacheDim,
		minBlocks: minBlocks,
		minDist:   minDist,
	}
}

// CreateAll builds at most one cache per candidate group. Groups are formed
// lazily in usable order, so blocks swept into an earlier cache of the same
// pass never seed a later one. A failed group never aborts the pass.
func (cr *Creator) CreateAll(p CreateParams, usable, absorbable []*arena.Block) CreationResult {
	var res CreationResult

	calc := &CenterCalculator{
		Resolution: cr.arena.Resolution(),
		CacheDim:   cr.cacheDim,
		ArenaDims:  cr.arena.Dims(),
		Nests:      p.Nests,
		Clusters:   p.Clusters,
	}
	all := slices.Clone(absorbable)
	pool := slices.Clone(absorbable)
	claimed := make(map[arena.BlockID]bool, len(usable))

	for i, anchor := range usable {
		if claimed[anchor.ID] {
			continue
		}
		group := AllocateGroup(usable, claimed, i, cr.minDist)
		if len(group) < cr.minBlocks {
			debugf("group at %s has %d blocks, need %d", anchor, len(group), cr.minBlocks)
			continue
		}

		avoid := append(slices.Clone(p.Existing), res.Created...)
		center, ok := calc.Calc(group, avoid, cr.arena.RNG())
		if !ok {
			res.Discarded++
			continue
		}

		extra := AbsorbBlocks(pool, group, center, cr.cacheDim)
		c := cr.arena.MaterializeCache(center, cr.cacheDim, blockIDs(group, extra), p.Timestep)
		debugf("candidate %s: %d group + %d absorbed blocks", c, len(group), len(extra))

		candidates := append(slices.Clone(res.Created), c)
		if !cr.verifier.VerifySingle(c, candidates, all, p.Clusters) {
			if err := cr.arena.DiscardCache(c); err != nil {
				panic(fmt.Sprintf("caches: rollback failed: %v", err))
			}
			res.Discarded++
			continue
		}

		res.Created = append(res.Created, c)
		for _, id := range c.Blocks() {
			claimed[id] = true
		}
		pool = slices.DeleteFunc(pool, func(b *arena.Block) bool { return c.Contains(b.ID) })
	}
	return res
}
