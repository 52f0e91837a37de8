// Package arena holds the foraging arena's state: the occupancy grid, the
// dense entity stores (blocks, caches, clusters, nests) and the location
// indexes used for neighbor queries.
//
// The arena is not safe for concurrent use. The simulation engine serialises
// every access under its own lock.
package arena

import (
	"math"

	"forage/internal/rng"
	"forage/internal/spatial"
)

// Config sizes a new arena.
type Config struct {
	Width      float64
	Height     float64
	Resolution float64
	// IndexCellSize is the bucket size of the location indexes. Zero picks
	// a default based on the resolution.
	IndexCellSize float64
}

// Arena owns every block, cache, cluster and nest.
type Arena struct {
	width, height float64
	res           float64
	grid          *OccupancyGrid

	blocks   []*Block
	owner    []CacheID // block id -> cache holding it
	caches   []*Cache  // cache id -> cache, nil once destroyed or not yet registered
	pending  []*Cache  // materialized but not yet registered
	clusters []Cluster
	nests    []Nest

	cacheIndex *spatial.Grid
	blockIndex *spatial.Grid

	rng rng.Source
}

// New creates an empty arena. src drives every random placement.
func New(cfg Config, src rng.Source) *Arena {
	assertf(cfg.Resolution > 0, "resolution must be positive, got %f", cfg.Resolution)
	cell := cfg.IndexCellSize
	if cell <= 0 {
		cell = math.Max(cfg.Resolution*4, 1)
	}
	return &Arena{
		width:      cfg.Width,
		height:     cfg.Height,
		res:        cfg.Resolution,
		grid:       NewOccupancyGrid(cfg.Width, cfg.Height, cfg.Resolution),
		cacheIndex: spatial.NewGrid(cfg.Width, cfg.Height, cell, 64),
		blockIndex: spatial.NewGrid(cfg.Width, cfg.Height, cell, 1024),
		rng:        src,
	}
}

// AddNest registers a nest footprint.
func (a *Arena) AddNest(fp spatial.Footprint) NestID {
	id := NestID(len(a.nests))
	a.nests = append(a.nests, Nest{ID: id, Footprint: fp})
	return id
}

// AddCluster registers a block cluster.
func (a *Arena) AddCluster(fp spatial.Footprint, capacity int) ClusterID {
	id := ClusterID(len(a.clusters))
	a.clusters = append(a.clusters, Cluster{ID: id, Footprint: fp, Capacity: capacity})
	return id
}

// AddBlock creates an unplaced block. Call DistributeAll or PlaceBlock to put
// it in the arena.
func (a *Arena) AddBlock(shape BlockShape) BlockID {
	id := BlockID(len(a.blocks))
	dims := spatial.Vec2{X: a.res, Y: a.res}
	if shape == BlockRamp {
		dims.X = 2 * a.res
	}
	a.blocks = append(a.blocks, &Block{
		ID:      id,
		Shape:   shape,
		Dims:    dims,
		Carrier: NoRobot,
		Cluster: NoCluster,
	})
	a.owner = append(a.owner, NoCache)
	return id
}

// Observe registers a cell transition observer.
func (a *Arena) Observe(o CellObserver) { a.grid.Observe(o) }

// Resolution returns the grid resolution.
func (a *Arena) Resolution() float64 { return a.res }

// Dims returns the arena's real size.
func (a *Arena) Dims() spatial.Vec2 { return spatial.Vec2{X: a.width, Y: a.height} }

// Grid exposes the occupancy grid for read access.
func (a *Arena) Grid() *OccupancyGrid { return a.grid }

// Cell returns a copy of the cell at d.
func (a *Arena) Cell(d spatial.Vec2i) Cell { return a.grid.At(d) }

// RNG returns the arena's random source.
func (a *Arena) RNG() rng.Source { return a.rng }

// Block returns the block with the given id.
func (a *Arena) Block(id BlockID) *Block {
	assertf(id >= 0 && int(id) < len(a.blocks), "bad block id %d", id)
	return a.blocks[id]
}

// Blocks returns every block, indexed by id.
func (a *Arena) Blocks() []*Block { return a.blocks }

// Cache returns the live cache with the given id, or nil.
func (a *Arena) Cache(id CacheID) *Cache {
	if id < 0 || int(id) >= len(a.caches) {
		return nil
	}
	return a.caches[id]
}

// Caches returns the registered caches in id order.
func (a *Arena) Caches() []*Cache {
	out := make([]*Cache, 0, len(a.caches))
	for _, c := range a.caches {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// CacheOf returns the cache holding block id, or NoCache.
func (a *Arena) CacheOf(id BlockID) CacheID { return a.owner[id] }

// Clusters returns the block clusters.
func (a *Arena) Clusters() []Cluster { return a.clusters }

// Nests returns the nests.
func (a *Arena) Nests() []Nest { return a.nests }

// ClusterSize returns the number of blocks currently in cluster id.
func (a *Arena) ClusterSize(id ClusterID) int {
	n := 0
	for _, b := range a.blocks {
		if b.Cluster == id {
			n++
		}
	}
	return n
}

// FreeBlocks returns every placed block that is neither carried nor held by a
// cache.
func (a *Arena) FreeBlocks() []*Block {
	out := make([]*Block, 0, len(a.blocks))
	for _, b := range a.blocks {
		if b.Placed && !b.IsCarried() && a.owner[b.ID] == NoCache {
			out = append(out, b)
		}
	}
	return out
}

// CachesNear returns the live caches whose center is within radius of p.
func (a *Arena) CachesNear(p spatial.Vec2, radius float64) []*Cache {
	var out []*Cache
	for _, id := range a.cacheIndex.QueryRadius(p, radius) {
		c := a.caches[id]
		if c != nil && c.Center.Dist(p) <= radius {
			out = append(out, c)
		}
	}
	return out
}

// FreeBlocksNear returns free blocks whose center is within radius of p.
func (a *Arena) FreeBlocksNear(p spatial.Vec2, radius float64) []*Block {
	var out []*Block
	for _, id := range a.blockIndex.QueryRadius(p, radius) {
		b := a.blocks[id]
		if a.owner[b.ID] == NoCache && !b.IsCarried() && b.Center().Dist(p) <= radius {
			out = append(out, b)
		}
	}
	return out
}

// Snapshot is a consistent view of the arena taken at the start of a cache
// creation pass. The pointers alias arena state; it is only valid while the
// caller holds the arena.
type Snapshot struct {
	Timestep   uint64
	Resolution float64
	Dims       spatial.Vec2
	Blocks     []*Block
	Caches     []*Cache
	Clusters   []Cluster
	Nests      []Nest
}

// Snapshot captures the current state for timestep t.
func (a *Arena) Snapshot(t uint64) Snapshot {
	return Snapshot{
		Timestep:   t,
		Resolution: a.res,
		Dims:       a.Dims(),
		Blocks:     a.blocks,
		Caches:     a.Caches(),
		Clusters:   a.clusters,
		Nests:      a.nests,
	}
}

// IndexStats reports the location index occupancy.
func (a *Arena) IndexStats() (caches, blocks spatial.GridStats) {
	return a.cacheIndex.Stats(), a.blockIndex.Stats()
}
