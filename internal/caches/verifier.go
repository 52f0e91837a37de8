package caches

import (
	"errors"
	"fmt"

	"forage/internal/arena"
	"forage/internal/spatial"
)

// Sanity check failures. SanityChecks wraps exactly one of these.
var (
	ErrInternalConsistency = errors.New("internal consistency")
	ErrFreeBlockOverlap    = errors.New("free block overlap")
	ErrClusterOverlap      = errors.New("cluster overlap")
	ErrNestOverlap         = errors.New("nest overlap")
	ErrCrossConsistency    = errors.New("cross consistency")
	ErrCacheOverlap        = errors.New("cache overlap")
)

// CellReader is the arena view the verifier needs.
type CellReader interface {
	Cell(d spatial.Vec2i) arena.Cell
	Block(id arena.BlockID) *arena.Block
}

// Verifier is the final arbiter of whether a set of caches is consistent
// with the arena around it.
type Verifier struct {
	Arena  CellReader
	Nests  []arena.Nest
	Strict bool

	sap *spatial.SweepAndPrune
}

// NewVerifier creates a verifier. strict selects whether a failed check
// discards the candidate or is only logged.
func NewVerifier(a CellReader, nests []arena.Nest, strict bool) *Verifier {
	return &Verifier{
		Arena:  a,
		Nests:  nests,
		Strict: strict,
		sap:    spatial.NewSweepAndPrune(32),
	}
}

// FreeBlocks returns the non-carried blocks of all that no cache in caches
// holds.
func FreeBlocks(all []*arena.Block, caches []*arena.Cache) []*arena.Block {
	out := make([]*arena.Block, 0, len(all))
	for _, b := range all {
		if b.IsCarried() || !b.Placed || inAnyCache(b, caches) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// VerifySingle checks candidate together with every cache created before it
// in this pass (caches must end with candidate) and applies the strict or
// loose policy. It returns whether the candidate should be kept.
func (v *Verifier) VerifySingle(candidate *arena.Cache, caches []*arena.Cache, all []*arena.Block, clusters []arena.Cluster) bool {
	assertf(len(caches) > 0, "verify %s against an empty cache list", candidate)
	assertf(caches[len(caches)-1] == candidate, "%s is not the last cache verified", candidate)

	err := v.SanityChecks(caches, FreeBlocks(all, caches), clusters)
	if err == nil {
		return true
	}
	if v.Strict {
		warnf("discarding %s: %v", candidate, err)
		return false
	}
	warnf("keeping %s despite failed check: %v", candidate, err)
	return true
}

// VerifyAll runs SanityChecks over caches and panics on failure. It is used
// after static cache construction, where a failure is a configuration bug.
func (v *Verifier) VerifyAll(caches []*arena.Cache, free []*arena.Block, clusters []arena.Cluster) {
	assertf(len(caches) > 0, "verify against an empty cache list")
	if err := v.SanityChecks(caches, free, clusters); err != nil {
		panic(fmt.Sprintf("caches: static caches failed sanity checks: %v", err))
	}
}

// SanityChecks validates caches against each other, the free blocks, the
// clusters and the nests. Every cache but the last is assumed to have passed
// already, so a failure is attributable to the last one.
func (v *Verifier) SanityChecks(caches []*arena.Cache, free []*arena.Block, clusters []arena.Cluster) error {
	for _, c := range caches {
		if err := v.internalConsistency(c); err != nil {
			return err
		}
		if err := freeBlockOverlap(c, free); err != nil {
			return err
		}
		if err := clusterOverlap(c, clusters); err != nil {
			return err
		}
		if err := v.nestOverlap(c); err != nil {
			return err
		}
	}
	if err := crossConsistency(caches); err != nil {
		return err
	}
	return v.cacheOverlap(caches)
}

func (v *Verifier) internalConsistency(c *arena.Cache) error {
	if c.NBlocks() < arena.MinCacheBlocks {
		return fmt.Errorf("%w: %s has %d blocks, need %d", ErrInternalConsistency, c, c.NBlocks(), arena.MinCacheBlocks)
	}
	cell := v.Arena.Cell(c.DCenter)
	if cell.State != arena.CellHasCache || cell.Cache != c.ID {
		return fmt.Errorf("%w: host cell of %s is %s (cache%d)", ErrInternalConsistency, c, cell.State, cell.Cache)
	}
	if cell.BlockCount != c.NBlocks() {
		return fmt.Errorf("%w: host cell of %s counts %d blocks, cache has %d", ErrInternalConsistency, c, cell.BlockCount, c.NBlocks())
	}
	fp := c.Footprint()
	under := 0
	for _, id := range c.Blocks() {
		b := v.Arena.Block(id)
		if b.IsCarried() || b.DLoc != c.DCenter {
			return fmt.Errorf("%w: member %s of %s is not in the host cell", ErrInternalConsistency, b, c)
		}
		if fp.Overlaps(b.Footprint()) {
			under++
		}
	}
	if under != c.NBlocks() {
		return fmt.Errorf("%w: %s has %d members but %d blocks under its footprint", ErrInternalConsistency, c, c.NBlocks(), under)
	}
	return nil
}

func freeBlockOverlap(c *arena.Cache, free []*arena.Block) error {
	for _, b := range free {
		if spatial.FootprintConflict(c.Footprint(), b.Footprint()).Both() {
			return fmt.Errorf("%w: %s under %s", ErrFreeBlockOverlap, b, c)
		}
	}
	return nil
}

func clusterOverlap(c *arena.Cache, clusters []arena.Cluster) error {
	for i := range clusters {
		if spatial.FootprintConflict(c.Footprint(), clusters[i].Footprint).Both() {
			return fmt.Errorf("%w: %s overlaps cluster%d %s", ErrClusterOverlap, c, clusters[i].ID, clusters[i].Footprint)
		}
	}
	return nil
}

func (v *Verifier) nestOverlap(c *arena.Cache) error {
	for i := range v.Nests {
		if spatial.FootprintConflict(c.Footprint(), v.Nests[i].Footprint).Both() {
			return fmt.Errorf("%w: %s overlaps nest%d %s", ErrNestOverlap, c, v.Nests[i].ID, v.Nests[i].Footprint)
		}
	}
	return nil
}

func crossConsistency(caches []*arena.Cache) error {
	owner := make(map[arena.BlockID]arena.CacheID)
	for _, c := range caches {
		seen := make(map[arena.BlockID]struct{}, c.NBlocks())
		for _, id := range c.Blocks() {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: block%d listed twice in %s", ErrCrossConsistency, id, c)
			}
			seen[id] = struct{}{}
			if prev, ok := owner[id]; ok {
				return fmt.Errorf("%w: block%d in cache%d and cache%d", ErrCrossConsistency, id, prev, c.ID)
			}
			owner[id] = c.ID
		}
	}
	return nil
}

func (v *Verifier) cacheOverlap(caches []*arena.Cache) error {
	if len(caches) < 2 {
		return nil
	}
	fps := make([]spatial.Footprint, len(caches))
	for i, c := range caches {
		fps[i] = c.Footprint()
	}
	if v.sap == nil {
		v.sap = spatial.NewSweepAndPrune(len(caches))
	}
	if pairs := v.sap.OverlappingPairs(fps); len(pairs) > 0 {
		return fmt.Errorf("%w: %s and %s", ErrCacheOverlap, caches[pairs[0].A], caches[pairs[0].B])
	}
	return nil
}
