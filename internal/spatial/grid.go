package spatial

import (
	"math"
)

// Grid is the arena's entity location index: a uniform grid hash giving
// O(1) average insert/remove and cheap rectangle and radius queries.
// Entities are referred to by their integer ids (not pointers).
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col]).
// An entity is indexed by a single point (its center); callers querying by
// area must pad the query by the largest entity half-extent they index.
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	where       map[uint32]int // entity id -> cell index
	scratch     []uint32       // reusable buffer for query results
}

// NewGrid creates an index for the given world bounds.
// cellSize should be close to the typical query radius.
// maxEntities is used to preallocate cell capacity.
func NewGrid(worldWidth, worldHeight, cellSize float64, maxEntities int) *Grid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]uint32, 0, avgPerCell)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		where:       make(map[uint32]int, maxEntities),
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0] // Keep capacity, reset length
	}
	clear(g.where)
}

// Len returns the number of indexed entities.
func (g *Grid) Len() int { return len(g.where) }

// Contains reports whether id is indexed.
func (g *Grid) Contains(id uint32) bool {
	_, ok := g.where[id]
	return ok
}

// Insert adds an entity at position p. Re-inserting an indexed id moves it.
func (g *Grid) Insert(id uint32, p Vec2) {
	if _, ok := g.where[id]; ok {
		g.Remove(id)
	}
	idx := g.cellIndex(p.X, p.Y)
	g.cells[idx] = append(g.cells[idx], id)
	g.where[id] = idx
}

// Move relocates an indexed entity; unknown ids are inserted.
func (g *Grid) Move(id uint32, p Vec2) {
	g.Insert(id, p)
}

// Remove drops an entity from the index. Unknown ids are ignored.
func (g *Grid) Remove(id uint32) {
	idx, ok := g.where[id]
	if !ok {
		return
	}
	cell := g.cells[idx]
	for i, e := range cell {
		if e == id {
			// Swap with last and truncate
			cell[i] = cell[len(cell)-1]
			g.cells[idx] = cell[:len(cell)-1]
			break
		}
	}
	delete(g.where, id)
}

// cellIndex computes the cell index for a position, with bounds clamping.
func (g *Grid) cellIndex(x, y float64) int {
	col, row := g.colRow(x, y)
	return row*g.cols + col
}

func (g *Grid) colRow(x, y float64) (int, int) {
	col := int(x * g.invCellSize)
	row := int(y * g.invCellSize)

	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// QueryRect returns all entity IDs indexed inside the cells touched by f.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Copy the results if you need to persist them.
//
// The result is a broad-phase candidate set; callers do the exact test.
func (g *Grid) QueryRect(f Footprint) []uint32 {
	xs, ys := f.XSpan(), f.YSpan()
	minCol, minRow := g.colRow(xs.Lo, ys.Lo)
	maxCol, maxRow := g.colRow(xs.Hi, ys.Hi)

	g.scratch = g.scratch[:0]
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

// QueryRadius returns all entity IDs potentially within radius of c.
// Same reuse and broad-phase caveats as QueryRect.
func (g *Grid) QueryRadius(c Vec2, radius float64) []uint32 {
	return g.QueryRect(SquareFootprint(c, 2*radius))
}

// Stats returns grid statistics for debugging/profiling.
func (g *Grid) Stats() GridStats {
	var totalEntities, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		totalEntities += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}

	avgPerCell := 0.0
	if nonEmpty > 0 {
		avgPerCell = float64(totalEntities) / float64(nonEmpty)
	}

	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  totalEntities,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	TotalCells     int     `json:"totalCells"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	TotalEntities  int     `json:"totalEntities"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
