package spatial

// Conflict reports per-axis overlap between a candidate placement and an
// existing entity.
type Conflict struct {
	X bool
	Y bool
}

// Both is true when the two footprints actually share area.
func (c Conflict) Both() bool { return c.X && c.Y }

// Any is true when the footprints overlap on at least one axis.
func (c Conflict) Any() bool { return c.X || c.Y }

// PlacementConflict checks a candidate footprint centered at center with the
// given dims against other, one axis at a time. It allocates nothing and is
// symmetric: swapping the two footprints yields the same result.
func PlacementConflict(center, dims Vec2, other Footprint) Conflict {
	cand := Footprint{Center: center, Dims: dims}
	return Conflict{
		X: cand.XSpan().Overlaps(other.XSpan()),
		Y: cand.YSpan().Overlaps(other.YSpan()),
	}
}

// FootprintConflict is PlacementConflict for two footprints.
func FootprintConflict(a, b Footprint) Conflict {
	return PlacementConflict(a.Center, a.Dims, b)
}
