package spatial

import (
	"sort"
)

// SweepAndPrune is a 1-axis broad phase over footprints. It projects every
// footprint onto the X axis, sorts the endpoints and reports every pair whose
// X spans overlap; callers confirm the Y axis themselves.
//
// Buffers are reused between calls, so an instance must not be shared
// between goroutines.
type SweepAndPrune struct {
	endpoints  []SAPEndpoint // All min/max endpoints
	pairs      []Pair        // Output buffer (reused)
	active     []uint32      // Active interval set (reused)
	useInsSort bool
}

// SAPEndpoint represents one end of a footprint's X span.
type SAPEndpoint struct {
	Value float64
	Index uint32 // position in the input slice
	IsMin bool   // true = start of interval, false = end
}

// Pair holds two input indices whose X spans overlap. A < B always.
type Pair struct {
	A, B uint32
}

// NewSweepAndPrune creates a broad phase sized for maxEntities footprints.
func NewSweepAndPrune(maxEntities int) *SweepAndPrune {
	return &SweepAndPrune{
		endpoints: make([]SAPEndpoint, 0, maxEntities*2),
		pairs:     make([]Pair, 0, maxEntities),
		active:    make([]uint32, 0, maxEntities/4+1),
	}
}

// SetInsertionSort switches to insertion sort, which is O(n) when the input
// order barely changes between calls (e.g. the arena's cache list).
func (s *SweepAndPrune) SetInsertionSort(enabled bool) {
	s.useInsSort = enabled
}

// Update rebuilds the endpoint list from fps and returns every pair of
// indices whose X spans overlap. Touching spans are not reported, and
// degenerate footprints never pair with anything.
//
// The returned slice is reused on subsequent calls.
func (s *SweepAndPrune) Update(fps []Footprint) []Pair {
	s.pairs = s.pairs[:0]
	s.endpoints = s.endpoints[:0]

	for i, f := range fps {
		xs := f.XSpan()
		if xs.Length() <= 0 {
			continue
		}
		s.endpoints = append(s.endpoints,
			SAPEndpoint{xs.Lo, uint32(i), true},
			SAPEndpoint{xs.Hi, uint32(i), false},
		)
	}

	// Ends sort before starts at equal values so touching spans never pair.
	less := func(a, b SAPEndpoint) bool {
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return !a.IsMin && b.IsMin
	}
	if s.useInsSort {
		insertionSortEndpoints(s.endpoints, less)
	} else {
		sort.Slice(s.endpoints, func(i, j int) bool {
			return less(s.endpoints[i], s.endpoints[j])
		})
	}

	s.active = s.active[:0]
	for _, ep := range s.endpoints {
		if ep.IsMin {
			for _, other := range s.active {
				a, b := other, ep.Index
				if a > b {
					a, b = b, a
				}
				s.pairs = append(s.pairs, Pair{a, b})
			}
			s.active = append(s.active, ep.Index)
			continue
		}
		for i, id := range s.active {
			if id == ep.Index {
				s.active[i] = s.active[len(s.active)-1]
				s.active = s.active[:len(s.active)-1]
				break
			}
		}
	}
	return s.pairs
}

// OverlappingPairs runs Update and keeps only the pairs that also overlap on
// the Y axis, i.e. footprints that really share area.
func (s *SweepAndPrune) OverlappingPairs(fps []Footprint) []Pair {
	candidates := s.Update(fps)
	out := candidates[:0]
	for _, p := range candidates {
		if fps[p.A].YSpan().Overlaps(fps[p.B].YSpan()) {
			out = append(out, p)
		}
	}
	s.pairs = out
	return out
}

// insertionSortEndpoints sorts endpoints in-place using insertion sort.
func insertionSortEndpoints(eps []SAPEndpoint, less func(a, b SAPEndpoint) bool) {
	for i := 1; i < len(eps); i++ {
		key := eps[i]
		j := i - 1
		for j >= 0 && less(key, eps[j]) {
			eps[j+1] = eps[j]
			j--
		}
		eps[j+1] = key
	}
}
