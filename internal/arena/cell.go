package arena

import (
	"fmt"

	"forage/internal/spatial"
)

// CellState is the occupancy of one grid cell.
type CellState uint8

const (
	CellUnknown CellState = iota
	CellEmpty
	CellHasBlock
	CellHasCache
	CellCacheExtent
)

func (s CellState) String() string {
	switch s {
	case CellEmpty:
		return "empty"
	case CellHasBlock:
		return "block"
	case CellHasCache:
		return "cache"
	case CellCacheExtent:
		return "cache-extent"
	default:
		return "unknown"
	}
}

// Cell is one square of the occupancy grid.
type Cell struct {
	Loc        spatial.Vec2i
	State      CellState
	Block      BlockID // valid in CellHasBlock
	Cache      CacheID // valid in CellHasCache and CellCacheExtent
	BlockCount int     // blocks in the cell; >1 only for cache hosts
}

// CellObserver is told about every cell state transition. Perception models
// hook in here.
type CellObserver interface {
	CellChanged(loc spatial.Vec2i, from, to CellState)
}

// ToEmpty clears a cell.
func ToEmpty(c *Cell) {
	c.State = CellEmpty
	c.Block = NoBlock
	c.Cache = NoCache
	c.BlockCount = 0
}

// ToBlock puts a single free block in a cell.
func ToBlock(c *Cell, id BlockID) {
	c.State = CellHasBlock
	c.Block = id
	c.Cache = NoCache
	c.BlockCount = 1
}

// ToCache makes a cell the host cell of a cache holding n blocks.
func ToCache(c *Cell, id CacheID, n int) {
	c.State = CellHasCache
	c.Block = NoBlock
	c.Cache = id
	c.BlockCount = n
}

// ToCacheExtent marks a cell as covered by, but not hosting, a cache.
func ToCacheExtent(c *Cell, id CacheID) {
	c.State = CellCacheExtent
	c.Block = NoBlock
	c.Cache = id
	c.BlockCount = 0
}

// OccupancyGrid is the discretised arena. Every mutation goes through one of
// the transition methods so observers see it.
type OccupancyGrid struct {
	xdim, ydim int
	res        float64
	cells      []Cell
	observers  []CellObserver
}

// NewOccupancyGrid creates an all-empty grid covering width x height at
// resolution res.
func NewOccupancyGrid(width, height, res float64) *OccupancyGrid {
	g := &OccupancyGrid{
		xdim: int(width/res + 0.5),
		ydim: int(height/res + 0.5),
		res:  res,
	}
	g.cells = make([]Cell, g.xdim*g.ydim)
	for x := 0; x < g.xdim; x++ {
		for y := 0; y < g.ydim; y++ {
			c := &g.cells[g.index(spatial.Vec2i{X: x, Y: y})]
			c.Loc = spatial.Vec2i{X: x, Y: y}
			ToEmpty(c)
		}
	}
	return g
}

func (g *OccupancyGrid) index(d spatial.Vec2i) int { return d.X*g.ydim + d.Y }

// Dims returns the grid size in cells.
func (g *OccupancyGrid) Dims() (int, int) { return g.xdim, g.ydim }

// Resolution returns the cell side length.
func (g *OccupancyGrid) Resolution() float64 { return g.res }

// InBounds reports whether d addresses a cell.
func (g *OccupancyGrid) InBounds(d spatial.Vec2i) bool {
	return d.X >= 0 && d.Y >= 0 && d.X < g.xdim && d.Y < g.ydim
}

// At returns a copy of the cell at d. Out-of-bounds cells are CellUnknown.
func (g *OccupancyGrid) At(d spatial.Vec2i) Cell {
	if !g.InBounds(d) {
		return Cell{Loc: d, State: CellUnknown, Block: NoBlock, Cache: NoCache}
	}
	return g.cells[g.index(d)]
}

// Observe registers o for transition notifications.
func (g *OccupancyGrid) Observe(o CellObserver) {
	g.observers = append(g.observers, o)
}

func (g *OccupancyGrid) mutate(d spatial.Vec2i, fn func(*Cell)) {
	assertf(g.InBounds(d), "cell %s out of bounds", d)
	c := &g.cells[g.index(d)]
	from := c.State
	fn(c)
	for _, o := range g.observers {
		o.CellChanged(d, from, c.State)
	}
}

func (g *OccupancyGrid) toEmpty(d spatial.Vec2i) { g.mutate(d, ToEmpty) }

func (g *OccupancyGrid) toBlock(d spatial.Vec2i, id BlockID) {
	g.mutate(d, func(c *Cell) { ToBlock(c, id) })
}

func (g *OccupancyGrid) toCache(d spatial.Vec2i, id CacheID, n int) {
	g.mutate(d, func(c *Cell) { ToCache(c, id, n) })
}

func (g *OccupancyGrid) toCacheExtent(d spatial.Vec2i, id CacheID) {
	g.mutate(d, func(c *Cell) { ToCacheExtent(c, id) })
}

// CountStates tallies the grid by state.
func (g *OccupancyGrid) CountStates() map[CellState]int {
	out := make(map[CellState]int, 5)
	for i := range g.cells {
		out[g.cells[i].State]++
	}
	return out
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("arena: "+format, args...))
	}
}
