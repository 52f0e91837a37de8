// Package spatial provides the geometry shared by the arena and the cache
// core: real/discrete vectors, axis spans, square footprints, the placement
// conflict checker and broad-phase structures for neighbor queries.
//
// Everything in this package is a value type or a preallocated structure
// addressed by integer ids (not pointers).
package spatial

import (
	"fmt"
	"math"
)

// Vec2 is a real-valued 2D vector (arena units).
type Vec2 struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v*s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Length returns the euclidean norm of v.
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Length() }

func (v Vec2) String() string { return fmt.Sprintf("(%.3f,%.3f)", v.X, v.Y) }

// Vec2i is a discrete grid coordinate (cell column X, row Y).
type Vec2i struct {
	X, Y int
}

func (v Vec2i) String() string { return fmt.Sprintf("(%d,%d)", v.X, v.Y) }

// ToDiscrete converts a real position to the cell that contains it.
func ToDiscrete(v Vec2, res float64) Vec2i {
	return Vec2i{int(math.Floor(v.X / res)), int(math.Floor(v.Y / res))}
}

// ToReal returns the lower-left corner of cell d.
func ToReal(d Vec2i, res float64) Vec2 {
	return Vec2{float64(d.X) * res, float64(d.Y) * res}
}

// CellCenter returns the real center of cell d.
func CellCenter(d Vec2i, res float64) Vec2 {
	return ToReal(d, res).Add(Vec2{res / 2, res / 2})
}

// SnapToCellCenter moves v to the center of the cell containing it.
func SnapToCellCenter(v Vec2, res float64) Vec2 {
	return CellCenter(ToDiscrete(v, res), res)
}

// Span is a closed interval [Lo, Hi] on one axis.
type Span struct {
	Lo, Hi float64
}

// Length returns Hi-Lo.
func (s Span) Length() float64 { return s.Hi - s.Lo }

// Center returns the midpoint of the span.
func (s Span) Center() float64 { return (s.Lo + s.Hi) / 2 }

// Contains reports whether v lies in [Lo, Hi].
func (s Span) Contains(v float64) bool { return v >= s.Lo && v <= s.Hi }

// Overlaps reports whether the open interiors of s and o intersect.
// Degenerate spans never overlap anything, and spans that only share an
// endpoint do not overlap.
func (s Span) Overlaps(o Span) bool {
	if s.Length() <= 0 || o.Length() <= 0 {
		return false
	}
	return s.Lo < o.Hi && o.Lo < s.Hi
}

// Clamp returns v limited to [Lo, Hi].
func (s Span) Clamp(v float64) float64 {
	return math.Max(s.Lo, math.Min(s.Hi, v))
}

func (s Span) String() string { return fmt.Sprintf("[%.3f-%.3f]", s.Lo, s.Hi) }

// Footprint is the axis-aligned rectangle an entity occupies.
type Footprint struct {
	Center Vec2
	Dims   Vec2
}

// FootprintFromAnchor builds a footprint from its lower-left corner.
func FootprintFromAnchor(anchor, dims Vec2) Footprint {
	return Footprint{Center: anchor.Add(dims.Scale(0.5)), Dims: dims}
}

// SquareFootprint builds a square footprint of side dim around center.
func SquareFootprint(center Vec2, dim float64) Footprint {
	return Footprint{Center: center, Dims: Vec2{dim, dim}}
}

// Anchor returns the lower-left corner.
func (f Footprint) Anchor() Vec2 { return f.Center.Sub(f.Dims.Scale(0.5)) }

// XSpan returns the footprint's extent on the X axis.
func (f Footprint) XSpan() Span {
	return Span{f.Center.X - f.Dims.X/2, f.Center.X + f.Dims.X/2}
}

// YSpan returns the footprint's extent on the Y axis.
func (f Footprint) YSpan() Span {
	return Span{f.Center.Y - f.Dims.Y/2, f.Center.Y + f.Dims.Y/2}
}

// Overlaps reports whether f and o share any interior area.
func (f Footprint) Overlaps(o Footprint) bool {
	return f.XSpan().Overlaps(o.XSpan()) && f.YSpan().Overlaps(o.YSpan())
}

// ContainsPoint reports whether p lies inside f (edges included).
func (f Footprint) ContainsPoint(p Vec2) bool {
	return f.XSpan().Contains(p.X) && f.YSpan().Contains(p.Y)
}

// Cells returns the discrete cells covered by f at resolution res.
func (f Footprint) Cells(res float64) []Vec2i {
	xs, ys := f.XSpan(), f.YSpan()
	// Nudge the upper bounds inward so a footprint ending exactly on a cell
	// boundary does not claim the next cell.
	lo := ToDiscrete(Vec2{xs.Lo, ys.Lo}, res)
	hi := ToDiscrete(Vec2{xs.Hi - res*1e-9, ys.Hi - res*1e-9}, res)
	cells := make([]Vec2i, 0, (hi.X-lo.X+1)*(hi.Y-lo.Y+1))
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			cells = append(cells, Vec2i{x, y})
		}
	}
	return cells
}

func (f Footprint) String() string {
	return fmt.Sprintf("center=%s,xspan=%s,yspan=%s", f.Center, f.XSpan(), f.YSpan())
}

// CacheDimension converts a configured cache side length into one that is a
// multiple of res and covers an odd number of cells, so that every cache has
// a single well-defined host cell at its center.
func CacheDimension(res, dim float64) float64 {
	cells := int(math.Round(dim / res))
	if cells < 1 {
		cells = 1
	}
	if cells%2 == 0 {
		cells++
	}
	return float64(cells) * res
}
