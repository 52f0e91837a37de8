// Package rng defines the injectable random source used by the arena and the
// cache core. Production code uses a seeded PCG generator; tests substitute
// fixed sequences so placement decisions are reproducible.
package rng

import "math/rand/v2"

// Source is the randomness the simulation consumes.
type Source interface {
	// Uniform returns a value in [lo, hi).
	Uniform(lo, hi float64) float64
	// IntN returns a value in [0, n). n must be > 0.
	IntN(n int) int
}

// Sign returns +1 or -1 using one draw from src.
func Sign(src Source) float64 {
	if src.Uniform(-1, 1) < 0 {
		return -1
	}
	return 1
}

// RNG is a thin wrapper around math/rand/v2 for deterministic seeding.
type RNG struct {
	r    *rand.Rand
	seed uint64
}

// New creates a deterministic RNG using the provided seed.
func New(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15)), seed: uint64(seed)}
}

// Uniform returns a value in [lo, hi).
func (r *RNG) Uniform(lo, hi float64) float64 {
	return lo + r.r.Float64()*(hi-lo)
}

// IntN returns a value in [0, n).
func (r *RNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return r.r.IntN(n)
}

// Seed returns the seed the generator was created with.
func (r *RNG) Seed() int64 { return int64(r.seed) }

// Fixed is a Source that replays a fixed list of unit values in [0,1),
// wrapping around when exhausted. An empty list always yields 0.5.
type Fixed struct {
	Values []float64
	pos    int
}

func (f *Fixed) next() float64 {
	if len(f.Values) == 0 {
		return 0.5
	}
	v := f.Values[f.pos%len(f.Values)]
	f.pos++
	return v
}

// Uniform maps the next fixed value into [lo, hi).
func (f *Fixed) Uniform(lo, hi float64) float64 {
	return lo + f.next()*(hi-lo)
}

// IntN maps the next fixed value into [0, n).
func (f *Fixed) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(f.next() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
