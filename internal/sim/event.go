package sim

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with RNG seed
	EventTypeCacheCreated
	EventTypeCacheDiscarded
	EventTypeCacheDepleted
	EventTypeBlockPickup
	EventTypeBlockDrop
	EventTypeNestDrop
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tickNum"`
	Source    string          `json:"source,omitempty"` // emitting robot, for rate limiting
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeCacheCreated:
		return "cache_created"
	case EventTypeCacheDiscarded:
		return "cache_discarded"
	case EventTypeCacheDepleted:
		return "cache_depleted"
	case EventTypeBlockPickup:
		return "block_pickup"
	case EventTypeBlockDrop:
		return "block_drop"
	case EventTypeNestDrop:
		return "nest_drop"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// TickPayload marks a tick boundary. RunID ties a log to one engine run.
type TickPayload struct {
	RunID  string `json:"runId"`
	Seed   int64  `json:"seed"`
	Robots int    `json:"robots"`
	Caches int    `json:"caches"`
}

// CachePayload describes a cache lifecycle event.
type CachePayload struct {
	CacheID int     `json:"cacheId"`
	Kind    string  `json:"kind,omitempty"` // dynamic or static
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Blocks  []int   `json:"blocks,omitempty"`
}

// DiscardPayload reports how many candidates a creation pass threw away.
type DiscardPayload struct {
	Count int `json:"count"`
}

// BlockPayload describes a robot moving a block.
type BlockPayload struct {
	RobotID int     `json:"robotId"`
	BlockID int     `json:"blockId"`
	CacheID int     `json:"cacheId"` // -1 when no cache was involved
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, source string, payload any) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}
