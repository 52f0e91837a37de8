// Package sim runs the foraging simulation: robots moving blocks around the
// arena, with cache creation and depletion handled once per tick.
package sim

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"forage/internal/arena"
	"forage/internal/caches"
	"forage/internal/config"
	"forage/internal/rng"
	"forage/internal/spatial"
)

// StaticRefillTicks is how often static locations are re-checked when no
// cache was depleted in between.
const StaticRefillTicks = 50

// ErrDynamicDisabled is returned by CreateCaches when dynamic caches are off.
var ErrDynamicDisabled = errors.New("dynamic cache creation is disabled")

// Engine owns the arena and advances it at a fixed tick rate.
type Engine struct {
	mu sync.RWMutex

	cfg     config.AppConfig
	arena   *arena.Arena
	src     *rng.RNG
	dynamic *caches.DynamicManager // nil when disabled
	static  *caches.StaticManager  // nil when disabled
	robots  []*Robot

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	tickCount     uint64
	collected     uint64
	depleted      uint64
	staticCreated uint64

	snapshotPool *SnapshotPool
	eventLog     *EventLog
	runID        uuid.UUID
}

// BuildArena creates the arena described by cfg and distributes its blocks.
func BuildArena(cfg config.AppConfig, src rng.Source) (*arena.Arena, error) {
	ac := cfg.Arena
	a := arena.New(arena.Config{
		Width:         ac.Width,
		Height:        ac.Height,
		Resolution:    ac.Resolution,
		IndexCellSize: cfg.Spatial.IndexCellSize,
	}, src)
	for _, n := range ac.Nests {
		a.AddNest(regionFootprint(n))
	}
	for _, c := range ac.Clusters {
		a.AddCluster(regionFootprint(c.Region), c.Capacity)
	}

	ramps := int(float64(ac.NBlocks) * ac.RampFraction)
	for i := 0; i < ac.NBlocks; i++ {
		shape := arena.BlockCube
		if i < ramps {
			shape = arena.BlockRamp
		}
		a.AddBlock(shape)
	}
	if err := a.DistributeAll(); err != nil {
		return nil, fmt.Errorf("distribute %d blocks: %w", ac.NBlocks, err)
	}
	return a, nil
}

func regionFootprint(r config.Region) spatial.Footprint {
	return spatial.Footprint{
		Center: spatial.Vec2{X: r.X, Y: r.Y},
		Dims:   spatial.Vec2{X: r.Width, Y: r.Height},
	}
}

// NewEngine builds the arena from cfg, places the robots and creates the
// initial static caches.
func NewEngine(cfg config.AppConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	src := rng.New(cfg.Arena.Seed)
	a, err := BuildArena(cfg, src)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		arena:        a,
		src:          src,
		tickRate:     cfg.Server.TickRate,
		stopChan:     make(chan struct{}),
		snapshotPool: NewSnapshotPool(cfg.Arena.Robots, cfg.Arena.NBlocks),
		eventLog:     NewEventLog(),
		runID:        uuid.New(),
	}

	cc := cfg.Caches
	if cc.Dynamic.Enable {
		e.dynamic = caches.NewDynamicManager(a, caches.DynamicParams{
			Dimension:         cc.Dimension,
			MinBlocks:         cc.Dynamic.MinBlocks,
			MinDist:           cc.Dynamic.MinDist,
			StrictConstraints: cc.StrictConstraints,
		})
	}
	if cc.Static.Enable {
		e.static = caches.NewStaticManager(a, caches.StaticParams{
			Dimension: cc.Dimension,
			Size:      cc.Static.Size,
		})
		e.staticCreated += uint64(len(e.static.Create(0)))
	}

	for i := 0; i < cfg.Arena.Robots; i++ {
		e.robots = append(e.robots, newRobot(arena.RobotID(i), e.spawnPoint()))
	}

	e.produceSnapshot()
	log.Printf("🤖 Engine ready: run %s, %d robots, %d blocks, seed %d",
		e.runID, len(e.robots), len(a.Blocks()), src.Seed())
	return e, nil
}

// spawnPoint picks a random point in the first nest, or anywhere in the
// arena if there is none.
func (e *Engine) spawnPoint() spatial.Vec2 {
	fp := spatial.Footprint{Center: e.arena.Dims().Scale(0.5), Dims: e.arena.Dims()}
	if nests := e.arena.Nests(); len(nests) > 0 {
		fp = nests[0].Footprint
	}
	xs, ys := fp.XSpan(), fp.YSpan()
	return spatial.Vec2{X: e.src.Uniform(xs.Lo, xs.Hi), Y: e.src.Uniform(ys.Lo, ys.Hi)}
}

// Start begins the simulation loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	ticks := e.ticker.C
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticks:
				e.Step()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Simulation started at %d TPS", e.tickRate)
}

// Stop stops the simulation loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Simulation stopped")
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++
	t := e.tickCount

	e.eventLog.EmitSimple(EventTypeTick, t, "", TickPayload{
		RunID:  e.runID.String(),
		Seed:   e.src.Seed(),
		Robots: len(e.robots),
		Caches: len(e.arena.Caches()),
	})

	dropped := false
	for _, r := range e.robots {
		if e.stepRobot(r) {
			dropped = true
		}
	}

	removed := e.removeDepleted(t)

	if e.dynamic != nil && (!e.cfg.Caches.Dynamic.RobotDropOnly || dropped) {
		e.runDynamic(t)
	}
	if e.static != nil && (removed > 0 || t%StaticRefillTicks == 0) {
		e.runStatic(t)
	}

	e.produceSnapshot()
}

// removeDepleted destroys caches that robots emptied below the minimum size.
func (e *Engine) removeDepleted(t uint64) int {
	ids := e.arena.DepletedCaches()
	for _, id := range ids {
		c := e.arena.Cache(id)
		payload := CachePayload{CacheID: int(id), X: c.Center.X, Y: c.Center.Y}
		if err := e.arena.RemoveCache(id); err != nil {
			log.Printf("⚠️ t=%d: %v", t, err)
			continue
		}
		e.depleted++
		caches.CachesDepleted.Inc()
		e.eventLog.EmitSimple(EventTypeCacheDepleted, t, "", payload)
	}
	if len(ids) > 0 {
		caches.CachesActive.Set(float64(len(e.arena.Caches())))
	}
	return len(ids)
}

func (e *Engine) runDynamic(t uint64) (*caches.CreationResult, bool) {
	res, ok := e.dynamic.Create(t)
	if !ok {
		return nil, false
	}
	for _, c := range res.Created {
		e.eventLog.EmitSimple(EventTypeCacheCreated, t, "", cachePayload(c, "dynamic"))
	}
	if res.Discarded > 0 {
		e.eventLog.EmitSimple(EventTypeCacheDiscarded, t, "", DiscardPayload{Count: res.Discarded})
	}
	return res, true
}

func (e *Engine) runStatic(t uint64) {
	created := e.static.CreateMissing(t)
	e.staticCreated += uint64(len(created))
	for _, c := range created {
		e.eventLog.EmitSimple(EventTypeCacheCreated, t, "", cachePayload(c, "static"))
	}
}

func cachePayload(c *arena.Cache, kind string) CachePayload {
	p := CachePayload{CacheID: int(c.ID), Kind: kind, X: c.Center.X, Y: c.Center.Y}
	for _, id := range c.Blocks() {
		p.Blocks = append(p.Blocks, int(id))
	}
	return p
}

// CreationReport is the outcome of an on-demand creation pass.
type CreationReport struct {
	Tick      uint64          `json:"tick"`
	Ran       bool            `json:"ran"` // false when no block was usable
	Created   []CacheSnapshot `json:"created"`
	Discarded int             `json:"discarded"`
}

// CreateCaches runs a dynamic creation pass now, outside the tick schedule.
func (e *Engine) CreateCaches() (CreationReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := CreationReport{Tick: e.tickCount, Created: []CacheSnapshot{}}
	if e.dynamic == nil {
		return report, ErrDynamicDisabled
	}
	res, ok := e.runDynamic(e.tickCount)
	if !ok {
		return report, nil
	}
	report.Ran = true
	report.Discarded = res.Discarded
	for _, c := range res.Created {
		report.Created = append(report.Created, cacheSnapshot(c))
	}
	e.produceSnapshot()
	return report, nil
}

// ResetMetrics starts a new interval for the dynamic creation counters.
func (e *Engine) ResetMetrics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dynamic != nil {
		e.dynamic.ResetMetrics()
	}
}

// produceSnapshot copies the arena into the next pool slot. Caller holds mu.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	a := e.arena
	dims := a.Dims()
	snap.Width, snap.Height, snap.Resolution = dims.X, dims.Y, a.Resolution()

	for _, r := range e.robots {
		snap.Robots = append(snap.Robots, RobotSnapshot{
			ID:       int(r.ID),
			X:        r.Pos.X,
			Y:        r.Pos.Y,
			State:    r.State.String(),
			Carrying: int(r.Carrying),
		})
	}

	st := &snap.Stats
	for _, b := range a.Blocks() {
		if b.IsCarried() {
			st.CarriedBlocks++
			continue
		}
		if !b.Placed {
			continue
		}
		owner := a.CacheOf(b.ID)
		if owner == arena.NoCache {
			st.FreeBlocks++
		} else {
			st.CachedBlocks++
		}
		fp := b.Footprint()
		snap.Blocks = append(snap.Blocks, BlockSnapshot{
			ID:     int(b.ID),
			X:      fp.Center.X,
			Y:      fp.Center.Y,
			Width:  fp.Dims.X,
			Height: fp.Dims.Y,
			Shape:  b.Shape.String(),
			Cache:  int(owner),
		})
	}

	live := a.Caches()
	for _, c := range live {
		snap.Caches = append(snap.Caches, cacheSnapshot(c))
	}
	for _, n := range a.Nests() {
		snap.Nests = append(snap.Nests, regionSnapshot(int(n.ID), n.Footprint))
	}
	for _, cl := range a.Clusters() {
		snap.Clusters = append(snap.Clusters, regionSnapshot(int(cl.ID), cl.Footprint))
	}

	st.Tick = e.tickCount
	st.RunID = e.runID.String()
	st.Robots = len(e.robots)
	st.Caches = len(live)
	st.Collected = e.collected
	st.Depleted = e.depleted
	st.StaticCreated = e.staticCreated
	if e.dynamic != nil {
		st.Dynamic = e.dynamic.Totals()
		st.Interval = e.dynamic.Interval()
	}

	e.snapshotPool.PublishWrite()
}

func cacheSnapshot(c *arena.Cache) CacheSnapshot {
	return CacheSnapshot{
		ID:        int(c.ID),
		X:         c.Center.X,
		Y:         c.Center.Y,
		Dim:       c.Dim,
		Blocks:    c.NBlocks(),
		CreatedAt: c.CreatedAt,
	}
}

func regionSnapshot(id int, fp spatial.Footprint) RegionSnapshot {
	return RegionSnapshot{ID: id, X: fp.Center.X, Y: fp.Center.Y, Width: fp.Dims.X, Height: fp.Dims.Y}
}

// GetSnapshot returns a private copy of the latest snapshot.
func (e *Engine) GetSnapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotPool.AcquireRead().Clone()
}

// GetStats returns the counters of the latest snapshot.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotPool.AcquireRead().Stats
}

// TickCount returns the number of ticks run so far.
func (e *Engine) TickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// RunID identifies this engine run in event logs.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// WithArena runs fn with exclusive access to the arena.
func (e *Engine) WithArena(fn func(a *arena.Arena)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.arena)
}

// StartEventLog opens an event log named after the run id in dir.
func (e *Engine) StartEventLog(dir string, compress bool) (string, error) {
	name := fmt.Sprintf("events-%s.jsonl", e.runID)
	if compress {
		name += ".zst"
	}
	path := filepath.Join(dir, name)
	if err := e.eventLog.Start(path, compress); err != nil {
		return "", err
	}
	return path, nil
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() EventLogStats {
	return e.eventLog.GetStats()
}
