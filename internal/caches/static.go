package caches

import (
	"log"
	"slices"

	"forage/internal/arena"
	"forage/internal/spatial"
)

// StaticParams configures caches at fixed locations.
type StaticParams struct {
	Dimension float64
	Size      int // blocks allocated to each cache, hidden blocks aside
}

// StaticCacheLocs returns the fixed cache centers for an arena: halfway
// between the (first) nest and each cluster, or the four quarter points of the
// arena when there is nothing to go between. Centers are snapped to cells.
func StaticCacheLocs(dims spatial.Vec2, res float64, nests []arena.Nest, clusters []arena.Cluster) []spatial.Vec2 {
	var raw []spatial.Vec2
	if len(nests) > 0 && len(clusters) > 0 {
		nc := nests[0].Footprint.Center
		for i := range clusters {
			raw = append(raw, nc.Add(clusters[i].Footprint.Center).Scale(0.5))
		}
	} else {
		for _, fx := range []float64{0.25, 0.75} {
			for _, fy := range []float64{0.25, 0.75} {
				raw = append(raw, spatial.Vec2{X: dims.X * fx, Y: dims.Y * fy})
			}
		}
	}
	locs := make([]spatial.Vec2, 0, len(raw))
	for _, p := range raw {
		c := spatial.SnapToCellCenter(p, res)
		if !slices.Contains(locs, c) {
			locs = append(locs, c)
		}
	}
	return locs
}

// StaticManager keeps caches alive at fixed locations.
type StaticManager struct {
	arena    Arena
	clusters []arena.Cluster
	locs     []spatial.Vec2
	cacheDim float64
	size     int
}

// NewStaticManager computes the static locations for a and returns a manager
// for them.
func NewStaticManager(a Arena, p StaticParams) *StaticManager {
	res := a.Resolution()
	return &StaticManager{
		arena:    a,
		clusters: a.Clusters(),
		locs:     StaticCacheLocs(a.Dims(), res, a.Nests(), a.Clusters()),
		cacheDim: spatial.CacheDimension(res, p.Dimension),
		size:     p.Size,
	}
}

// Locations returns the static cache centers.
func (m *StaticManager) Locations() []spatial.Vec2 { return m.locs }

// Create builds a cache at every static location. The result is checked as a
// whole and a failure panics: static placement comes from configuration, so
// an inconsistent layout is not something to run with.
func (m *StaticManager) Create(t uint64) []*arena.Cache {
	return m.create(t, m.locs)
}

// CreateMissing re-creates the caches whose location currently has none,
// e.g. after robots depleted them.
func (m *StaticManager) CreateMissing(t uint64) []*arena.Cache {
	live := m.arena.Caches()
	var missing []spatial.Vec2
	for _, loc := range m.locs {
		d := spatial.ToDiscrete(loc, m.arena.Resolution())
		if !slices.ContainsFunc(live, func(c *arena.Cache) bool { return c.DCenter == d }) {
			missing = append(missing, loc)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return m.create(t, missing)
}

func (m *StaticManager) create(t uint64, locs []spatial.Vec2) []*arena.Cache {
	snap := m.arena.Snapshot(t)
	var avail []*arena.Block
	for _, b := range snap.Blocks {
		if AbsorbableFilter(b, snap.Caches) {
			avail = append(avail, b)
		}
	}

	var created []*arena.Cache
	for _, loc := range locs {
		fp := spatial.SquareFootprint(loc, m.cacheDim)
		if reason, ok := m.blocked(fp, snap, created); !ok {
			debugf("static location %s skipped: %s", loc, reason)
			continue
		}

		var hidden, rest []*arena.Block
		for _, b := range avail {
			if fp.Overlaps(b.Footprint()) {
				hidden = append(hidden, b)
			} else {
				rest = append(rest, b)
			}
		}
		slices.SortStableFunc(rest, func(a, b *arena.Block) int {
			da, db := a.Center().Dist(loc), b.Center().Dist(loc)
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			return 0
		})
		take := max(min(m.size-len(hidden), len(rest)), 0)
		members := append(hidden, rest[:take]...)
		if len(members) < arena.MinCacheBlocks {
			warnf("static location %s: only %d blocks available", loc, len(members))
			continue
		}

		c := m.arena.MaterializeCache(loc, m.cacheDim, blockIDs(members), t)
		created = append(created, c)
		avail = slices.DeleteFunc(avail, func(b *arena.Block) bool { return c.Contains(b.ID) })
	}
	if len(created) == 0 {
		return nil
	}

	m.arena.AddCaches(created)
	v := NewVerifier(m.arena, snap.Nests, true)
	v.VerifyAll(created, m.arena.FreeBlocks(), m.clusters)

	CachesCreated.WithLabelValues("static").Add(float64(len(created)))
	CachesActive.Set(float64(len(m.arena.Caches())))
	log.Printf("🏗️ t=%d: %d static caches created", t, len(created))
	return created
}

// blocked reports why a static footprint cannot be used right now.
func (m *StaticManager) blocked(fp spatial.Footprint, snap arena.Snapshot, created []*arena.Cache) (string, bool) {
	xs, ys := fp.XSpan(), fp.YSpan()
	if xs.Lo < 0 || ys.Lo < 0 || xs.Hi > snap.Dims.X || ys.Hi > snap.Dims.Y {
		return "out of bounds", false
	}
	for _, c := range append(slices.Clone(snap.Caches), created...) {
		if c.Footprint().Overlaps(fp) {
			return "overlaps " + c.String(), false
		}
	}
	for i := range m.clusters {
		if m.clusters[i].Footprint.Overlaps(fp) {
			return "overlaps a cluster", false
		}
	}
	for i := range snap.Nests {
		if snap.Nests[i].Footprint.Overlaps(fp) {
			return "overlaps a nest", false
		}
	}
	return "", true
}
