package sim

import (
	"errors"
	"fmt"
	"log"
	"math"

	"forage/internal/arena"
	"forage/internal/spatial"
)

// Robot movement and sensing, in arena units.
const (
	RobotSpeed     = 0.35 // per tick
	SenseRadius    = 2.5
	SiteDropChance = 0.5 // share of free-block pickups dropped part way home
	siteSearchRing = 2   // cells around a drop site tried before giving up
)

// RobotState is what a robot is currently doing.
type RobotState uint8

const (
	StateSearching RobotState = iota
	StateToSite               // carrying a block to an intermediate drop site
	StateToNest               // carrying a block home
)

func (s RobotState) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateToSite:
		return "to_site"
	case StateToNest:
		return "to_nest"
	default:
		return "unknown"
	}
}

// Robot is a simple forager: it wanders until it senses a cache or a free
// block, picks up a block and carries it either to a nest or to a drop site
// half way there. Blocks dropped at nearby sites are what dynamic cache
// creation turns into caches.
type Robot struct {
	ID       arena.RobotID
	Pos      spatial.Vec2
	State    RobotState
	Carrying arena.BlockID
	Target   spatial.Vec2

	wandering bool

	Pickups   int
	SiteDrops int
	Delivered int
}

func newRobot(id arena.RobotID, pos spatial.Vec2) *Robot {
	return &Robot{ID: id, Pos: pos, Carrying: arena.NoBlock}
}

func (r *Robot) source() string { return fmt.Sprintf("robot-%d", r.ID) }

// moveTo steps toward target and reports whether it was reached.
func (r *Robot) moveTo(target spatial.Vec2, speed float64) bool {
	d := target.Sub(r.Pos)
	dist := d.Length()
	if dist <= speed {
		r.Pos = target
		return true
	}
	r.Pos = r.Pos.Add(d.Scale(speed / dist))
	return false
}

// stepRobot advances r by one tick and reports whether it dropped a block in
// the arena (not in a nest).
func (e *Engine) stepRobot(r *Robot) bool {
	switch r.State {
	case StateSearching:
		e.search(r)
	case StateToSite:
		if r.moveTo(r.Target, RobotSpeed) {
			return e.dropAtSite(r)
		}
	case StateToNest:
		if e.inNest(r.Pos) {
			e.deliver(r)
		} else {
			r.moveTo(r.Target, RobotSpeed)
		}
	}
	return false
}

func (e *Engine) search(r *Robot) {
	a := e.arena
	reach := a.Resolution()

	if c := nearestCache(a.CachesNear(r.Pos, SenseRadius), r.Pos); c != nil {
		r.wandering = false
		if r.Pos.Dist(c.Center) > reach {
			r.moveTo(c.Center, RobotSpeed)
			return
		}
		id, err := a.PickupCachedBlock(c.ID, r.ID)
		if err != nil {
			return
		}
		r.Carrying = id
		r.Pickups++
		r.State = StateToNest
		r.Target = e.nearestNest(r.Pos)
		e.eventLog.EmitSimple(EventTypeBlockPickup, e.tickCount, r.source(),
			BlockPayload{RobotID: int(r.ID), BlockID: int(id), CacheID: int(c.ID), X: r.Pos.X, Y: r.Pos.Y})
		return
	}

	if b := nearestBlock(a.FreeBlocksNear(r.Pos, SenseRadius), r.Pos); b != nil {
		r.wandering = false
		if r.Pos.Dist(b.Center()) > reach {
			r.moveTo(b.Center(), RobotSpeed)
			return
		}
		if err := a.PickupFreeBlock(b.ID, r.ID); err != nil {
			return
		}
		r.Carrying = b.ID
		r.Pickups++
		home := e.nearestNest(r.Pos)
		if len(a.Nests()) == 0 || a.RNG().Uniform(0, 1) < SiteDropChance {
			r.State = StateToSite
			r.Target = spatial.SnapToCellCenter(r.Pos.Add(home.Sub(r.Pos).Scale(0.5)), a.Resolution())
		} else {
			r.State = StateToNest
			r.Target = home
		}
		e.eventLog.EmitSimple(EventTypeBlockPickup, e.tickCount, r.source(),
			BlockPayload{RobotID: int(r.ID), BlockID: int(b.ID), CacheID: int(arena.NoCache), X: r.Pos.X, Y: r.Pos.Y})
		return
	}

	if !r.wandering {
		dims := a.Dims()
		r.Target = spatial.Vec2{X: a.RNG().Uniform(0, dims.X), Y: a.RNG().Uniform(0, dims.Y)}
		r.wandering = true
	}
	if r.moveTo(r.Target, RobotSpeed) {
		r.wandering = false
	}
}

// dropAtSite releases the carried block at the first placeable cell around
// the site. Dropping on a cache host adds the block to that cache.
func (e *Engine) dropAtSite(r *Robot) bool {
	a := e.arena
	site := spatial.ToDiscrete(r.Target, a.Resolution())
	for ring := 0; ring <= siteSearchRing; ring++ {
		for _, d := range ringCells(site, ring) {
			if !a.Grid().InBounds(d) {
				continue
			}
			err := a.DropBlock(r.Carrying, d)
			if errors.Is(err, arena.ErrNoFreeCell) {
				continue
			}
			if err != nil {
				log.Printf("⚠️ %s drop failed: %v", r.source(), err)
				return false
			}
			e.eventLog.EmitSimple(EventTypeBlockDrop, e.tickCount, r.source(),
				BlockPayload{RobotID: int(r.ID), BlockID: int(r.Carrying), CacheID: int(a.CacheOf(r.Carrying)),
					X: r.Target.X, Y: r.Target.Y})
			r.Carrying = arena.NoBlock
			r.SiteDrops++
			r.State = StateSearching
			return true
		}
	}

	// Site is crowded; take the block home instead.
	r.State = StateToNest
	r.Target = e.nearestNest(r.Pos)
	if len(a.Nests()) == 0 {
		dims := a.Dims()
		r.State = StateToSite
		r.Target = spatial.Vec2{X: a.RNG().Uniform(0, dims.X), Y: a.RNG().Uniform(0, dims.Y)}
	}
	return false
}

func (e *Engine) deliver(r *Robot) {
	id := r.Carrying
	if err := e.arena.DropInNest(id); err != nil {
		log.Printf("⚠️ %s nest drop failed: %v", r.source(), err)
		return
	}
	e.collected++
	r.Delivered++
	r.Carrying = arena.NoBlock
	r.State = StateSearching
	e.eventLog.EmitSimple(EventTypeNestDrop, e.tickCount, r.source(),
		BlockPayload{RobotID: int(r.ID), BlockID: int(id), CacheID: int(arena.NoCache), X: r.Pos.X, Y: r.Pos.Y})
}

func (e *Engine) inNest(p spatial.Vec2) bool {
	for _, n := range e.arena.Nests() {
		if n.Footprint.ContainsPoint(p) {
			return true
		}
	}
	return false
}

// nearestNest returns the center of the closest nest, or the arena center if
// there are none.
func (e *Engine) nearestNest(p spatial.Vec2) spatial.Vec2 {
	best := e.arena.Dims().Scale(0.5)
	bestDist := math.Inf(1)
	for _, n := range e.arena.Nests() {
		if d := p.Dist(n.Footprint.Center); d < bestDist {
			best, bestDist = n.Footprint.Center, d
		}
	}
	return best
}

func nearestCache(cs []*arena.Cache, p spatial.Vec2) *arena.Cache {
	var best *arena.Cache
	for _, c := range cs {
		if best == nil || p.Dist(c.Center) < p.Dist(best.Center) {
			best = c
		}
	}
	return best
}

func nearestBlock(bs []*arena.Block, p spatial.Vec2) *arena.Block {
	var best *arena.Block
	for _, b := range bs {
		if best == nil || p.Dist(b.Center()) < p.Dist(best.Center()) {
			best = b
		}
	}
	return best
}

// ringCells returns the cells at Chebyshev distance ring from c.
func ringCells(c spatial.Vec2i, ring int) []spatial.Vec2i {
	if ring == 0 {
		return []spatial.Vec2i{c}
	}
	var out []spatial.Vec2i
	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			if max(abs(dx), abs(dy)) == ring {
				out = append(out, spatial.Vec2i{X: c.X + dx, Y: c.Y + dy})
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
