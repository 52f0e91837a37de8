package caches

import (
	"log"
	"sync/atomic"
	"time"

	"forage/internal/arena"
	"forage/internal/spatial"
)

// DynamicParams configures dynamic cache creation.
type DynamicParams struct {
	Dimension         float64 // cache side length before rounding
	MinBlocks         int
	MinDist           float64
	StrictConstraints bool
}

// Counts is a created/discarded tally.
type Counts struct {
	Created   uint64 `json:"created"`
	Discarded uint64 `json:"discarded"`
}

// DynamicManager is the per-tick entry point for dynamic cache creation.
type DynamicManager struct {
	arena    Arena
	params   DynamicParams
	cacheDim float64

	created           atomic.Uint64
	discarded         atomic.Uint64
	intervalCreated   atomic.Uint64
	intervalDiscarded atomic.Uint64
}

// NewDynamicManager creates a manager bound to a.
func NewDynamicManager(a Arena, p DynamicParams) *DynamicManager {
	m := &DynamicManager{
		arena:    a,
		params:   p,
		cacheDim: spatial.CacheDimension(a.Resolution(), p.Dimension),
	}
	if m.cacheDim != p.Dimension {
		log.Printf("📐 Cache dimension %.2f rounded to %.2f (resolution %.2f)", p.Dimension, m.cacheDim, a.Resolution())
	}
	return m
}

// CacheDim returns the effective cache side length.
func (m *DynamicManager) CacheDim() float64 { return m.cacheDim }

// Create runs one creation pass at timestep t and registers the caches it
// made. It returns false if there were no usable blocks, in which case no
// pass was run.
func (m *DynamicManager) Create(t uint64) (*CreationResult, bool) {
	start := time.Now()
	snap := m.arena.Snapshot(t)
	alloc := AllocateCreationBlocks(snap)

	if len(alloc.Usable) < m.params.MinBlocks {
		m.CreationBlocksCheck(alloc.Usable)
	}
	if len(alloc.Usable) == 0 {
		return nil, false
	}

	v := NewVerifier(m.arena, snap.Nests, m.params.StrictConstraints)
	cr := NewCreator(m.arena, v, m.cacheDim, m.params.MinBlocks, m.params.MinDist)
	res := cr.CreateAll(CreateParams{
		Timestep: t,
		Existing: snap.Caches,
		Nests:    snap.Nests,
		Clusters: snap.Clusters,
	}, alloc.Usable, alloc.Absorbable)

	m.arena.AddCaches(res.Created)

	n := uint64(len(res.Created))
	m.created.Add(n)
	m.intervalCreated.Add(n)
	m.discarded.Add(uint64(res.Discarded))
	m.intervalDiscarded.Add(uint64(res.Discarded))

	CachesCreated.WithLabelValues("dynamic").Add(float64(n))
	CachesDiscarded.Add(float64(res.Discarded))
	CachesActive.Set(float64(len(m.arena.Caches())))
	CreationPassDuration.Observe(time.Since(start).Seconds())

	if n > 0 || res.Discarded > 0 {
		log.Printf("📦 t=%d: created %d caches, discarded %d (usable=%d absorbable=%d)",
			t, n, res.Discarded, len(alloc.Usable), len(alloc.Absorbable))
	}
	return &res, true
}

// CreationBlocksCheck logs why too few blocks were usable this tick.
func (m *DynamicManager) CreationBlocksCheck(usable []*arena.Block) {
	if !debugEnabled {
		return
	}
	debugf("only %d usable blocks, need %d", len(usable), m.params.MinBlocks)
	for _, b := range usable {
		debugf("  usable %s carried=%v cluster=%d", b, b.IsCarried(), b.Cluster)
	}
	for _, b := range m.arena.FreeBlocks() {
		if b.Cluster != arena.NoCluster {
			debugf("  %s unusable: member of cluster%d", b, b.Cluster)
		}
	}
}

// Totals returns the cumulative counts since the manager was created.
func (m *DynamicManager) Totals() Counts {
	return Counts{Created: m.created.Load(), Discarded: m.discarded.Load()}
}

// Interval returns the counts since the last ResetMetrics.
func (m *DynamicManager) Interval() Counts {
	return Counts{Created: m.intervalCreated.Load(), Discarded: m.intervalDiscarded.Load()}
}

// ResetMetrics starts a new collection interval.
func (m *DynamicManager) ResetMetrics() {
	m.intervalCreated.Store(0)
	m.intervalDiscarded.Store(0)
}
