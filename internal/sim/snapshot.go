package sim

import (
	"slices"
	"sync/atomic"
	"time"

	"forage/internal/caches"
)

// RobotSnapshot is an immutable copy of robot state for rendering.
// Uses value types (not pointers) to ensure immutability
type RobotSnapshot struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	State    string  `json:"state"`
	Carrying int     `json:"carrying"` // block id, -1 when empty-handed
}

// BlockSnapshot is a placed block. Carried blocks are shown on their robot.
type BlockSnapshot struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"` // footprint center
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Shape  string  `json:"shape"`
	Cache  int     `json:"cache"` // -1 when free
}

// CacheSnapshot is a live cache.
type CacheSnapshot struct {
	ID        int     `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Dim       float64 `json:"dim"`
	Blocks    int     `json:"blocks"`
	CreatedAt uint64  `json:"createdAt"`
}

// RegionSnapshot is a nest or cluster rectangle.
type RegionSnapshot struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Stats are the aggregate counters published with every snapshot.
type Stats struct {
	Tick          uint64        `json:"tick"`
	RunID         string        `json:"runId"`
	Robots        int           `json:"robots"`
	FreeBlocks    int           `json:"freeBlocks"`
	CachedBlocks  int           `json:"cachedBlocks"`
	CarriedBlocks int           `json:"carriedBlocks"`
	Caches        int           `json:"caches"`
	Collected     uint64        `json:"collected"` // blocks delivered to a nest
	Depleted      uint64        `json:"depleted"`
	StaticCreated uint64        `json:"staticCreated"`
	Dynamic       caches.Counts `json:"dynamic"`
	Interval      caches.Counts `json:"interval"`
}

// Snapshot is an immutable copy of the arena for rendering and the API.
type Snapshot struct {
	Sequence   uint64           `json:"sequence"`
	Timestamp  time.Time        `json:"timestamp"`
	Width      float64          `json:"width"`
	Height     float64          `json:"height"`
	Resolution float64          `json:"resolution"`
	Robots     []RobotSnapshot  `json:"robots"`
	Blocks     []BlockSnapshot  `json:"blocks"`
	Caches     []CacheSnapshot  `json:"caches"`
	Nests      []RegionSnapshot `json:"nests"`
	Clusters   []RegionSnapshot `json:"clusters"`
	Stats      Stats            `json:"stats"`
}

// Clone returns a deep copy that stays valid after the pool reuses the slot.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Robots = slices.Clone(s.Robots)
	c.Blocks = slices.Clone(s.Blocks)
	c.Caches = slices.Clone(s.Caches)
	c.Nests = slices.Clone(s.Nests)
	c.Clusters = slices.Clone(s.Clusters)
	return &c
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure.
// Uses triple buffering; the engine writes under its lock.
type SnapshotPool struct {
	snapshots [3]Snapshot
	writeIdx  atomic.Uint32
	readIdx   atomic.Uint32
	sequence  atomic.Uint64
}

// NewSnapshotPool creates a pool sized for the given entity counts.
func NewSnapshotPool(robots, blocks int) *SnapshotPool {
	pool := &SnapshotPool{}
	for i := range pool.snapshots {
		pool.snapshots[i] = Snapshot{
			Robots: make([]RobotSnapshot, 0, robots),
			Blocks: make([]BlockSnapshot, 0, blocks),
		}
	}
	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the tick).
// Returns a snapshot with reset slices but preserved capacity
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := p.writeIdx.Add(1) % 3
	snap := &p.snapshots[idx]

	snap.Robots = snap.Robots[:0]
	snap.Blocks = snap.Blocks[:0]
	snap.Caches = snap.Caches[:0]
	snap.Nests = snap.Nests[:0]
	snap.Clusters = snap.Clusters[:0]
	snap.Stats = Stats{}

	snap.Sequence = p.sequence.Add(1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite marks write complete and advances read pointer
func (p *SnapshotPool) PublishWrite() {
	p.readIdx.Store(p.writeIdx.Load())
}

// AcquireRead gets the latest complete snapshot. Before the first publish it
// is an empty snapshot with sequence 0.
func (p *SnapshotPool) AcquireRead() *Snapshot {
	return &p.snapshots[p.readIdx.Load()%3]
}
