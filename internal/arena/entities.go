package arena

import (
	"fmt"

	"forage/internal/spatial"
)

// Stable integer ids. The arena owns every entity; everything else refers to
// entities by id.
type (
	BlockID   int
	CacheID   int
	ClusterID int
	NestID    int
	RobotID   int
)

// Sentinels for "no such entity".
const (
	NoBlock   BlockID   = -1
	NoCache   CacheID   = -1
	NoCluster ClusterID = -1
	NoRobot   RobotID   = -1
)

// MinCacheBlocks is the smallest number of blocks a cache can hold and still
// be a cache. Below it the cache is depleted.
const MinCacheBlocks = 2

// BlockShape selects a block's footprint.
type BlockShape uint8

const (
	BlockCube BlockShape = iota // 1x1 cells
	BlockRamp                   // 2x1 cells
)

func (s BlockShape) String() string {
	if s == BlockRamp {
		return "ramp"
	}
	return "cube"
}

// Block is a single resource unit.
type Block struct {
	ID      BlockID
	Shape   BlockShape
	Anchor  spatial.Vec2  // lower-left corner, meaningless while carried
	DLoc    spatial.Vec2i // host cell
	Dims    spatial.Vec2
	Carrier RobotID
	Cluster ClusterID
	Placed  bool // false until first distributed
}

// IsCarried reports whether a robot currently holds the block.
func (b *Block) IsCarried() bool { return b.Carrier != NoRobot }

// Footprint returns the block's extent in the arena.
func (b *Block) Footprint() spatial.Footprint {
	return spatial.FootprintFromAnchor(b.Anchor, b.Dims)
}

// Center returns the real center of the block.
func (b *Block) Center() spatial.Vec2 { return b.Footprint().Center }

func (b *Block) String() string {
	return fmt.Sprintf("block%d@%s/%s", b.ID, b.Anchor, b.DLoc)
}

// Cache is a multi-block depot. Blocks held by a cache all sit in its host
// cell (DCenter); the rest of its footprint is cache extent.
type Cache struct {
	ID        CacheID
	Center    spatial.Vec2
	DCenter   spatial.Vec2i
	Dim       float64
	CreatedAt uint64

	blocks  []BlockID
	members map[BlockID]struct{}
}

func newCache(id CacheID, center spatial.Vec2, dcenter spatial.Vec2i, dim float64, blocks []BlockID, t uint64) *Cache {
	c := &Cache{
		ID:        id,
		Center:    center,
		DCenter:   dcenter,
		Dim:       dim,
		CreatedAt: t,
		blocks:    make([]BlockID, 0, len(blocks)),
		members:   make(map[BlockID]struct{}, len(blocks)),
	}
	for _, b := range blocks {
		c.add(b)
	}
	return c
}

// NewDetachedCache builds a cache that is not hosted by any arena. It is only
// useful for pure geometry/membership checks.
func NewDetachedCache(id CacheID, center spatial.Vec2, res, dim float64, blocks []BlockID) *Cache {
	return newCache(id, center, spatial.ToDiscrete(center, res), dim, blocks, 0)
}

func (c *Cache) add(id BlockID) {
	c.blocks = append(c.blocks, id)
	c.members[id] = struct{}{}
}

// pop removes and returns the first block (the one robots pick up next).
func (c *Cache) pop() (BlockID, bool) {
	if len(c.blocks) == 0 {
		return NoBlock, false
	}
	id := c.blocks[0]
	c.blocks = c.blocks[1:]
	delete(c.members, id)
	return id, true
}

// Blocks returns the member block ids. The slice must not be modified.
func (c *Cache) Blocks() []BlockID { return c.blocks }

// NBlocks returns the number of member blocks.
func (c *Cache) NBlocks() int { return len(c.blocks) }

// Contains reports whether block id is a member.
func (c *Cache) Contains(id BlockID) bool {
	_, ok := c.members[id]
	return ok
}

// Footprint returns the cache's full extent.
func (c *Cache) Footprint() spatial.Footprint {
	return spatial.SquareFootprint(c.Center, c.Dim)
}

func (c *Cache) String() string {
	return fmt.Sprintf("cache%d@%s/%s", c.ID, c.Center, c.DCenter)
}

// Cluster is a static block distribution region.
type Cluster struct {
	ID        ClusterID
	Footprint spatial.Footprint
	Capacity  int
}

// Nest is a fixed drop-off zone.
type Nest struct {
	ID        NestID
	Footprint spatial.Footprint
}
