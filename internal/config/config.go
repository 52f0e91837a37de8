// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for arena, cache and server settings.
//
// Values come from Default*(), then an optional YAML file, then environment
// variables, which take precedence over both.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// Region is an axis-aligned rectangle given by its center and size.
type Region struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// ClusterConfig is a block distribution region.
type ClusterConfig struct {
	Region   `yaml:",inline"`
	Capacity int `yaml:"capacity"`
}

// ArenaConfig describes the world the robots forage in.
type ArenaConfig struct {
	Width        float64         `yaml:"width"`
	Height       float64         `yaml:"height"`
	Resolution   float64         `yaml:"resolution"` // grid cell side length
	NBlocks      int             `yaml:"n_blocks"`
	RampFraction float64         `yaml:"ramp_fraction"` // share of blocks that are 2x1 ramps
	Robots       int             `yaml:"robots"`
	Seed         int64           `yaml:"seed"`
	Nests        []Region        `yaml:"nests"`
	Clusters     []ClusterConfig `yaml:"clusters"`
}

// DefaultArena returns the default arena: a 32x32 world with one nest in the
// middle and no clusters, so every block starts loose.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:        32,
		Height:       32,
		Resolution:   0.5,
		NBlocks:      120,
		RampFraction: 0.2,
		Robots:       16,
		Seed:         1,
		Nests:        []Region{{X: 16, Y: 16, Width: 3, Height: 3}},
	}
}

// =============================================================================
// CACHE CONFIGURATION
// =============================================================================

// DynamicCacheConfig controls runtime cache creation.
type DynamicCacheConfig struct {
	Enable        bool    `yaml:"enable"`
	MinBlocks     int     `yaml:"min_blocks"`
	MinDist       float64 `yaml:"min_dist"`
	RobotDropOnly bool    `yaml:"robot_drop_only"` // only run after a robot dropped a block
}

// StaticCacheConfig controls caches at fixed locations.
type StaticCacheConfig struct {
	Enable bool `yaml:"enable"`
	Size   int  `yaml:"size"`
}

// CacheConfig holds every cache option.
type CacheConfig struct {
	Dimension         float64            `yaml:"dimension"`
	StrictConstraints bool               `yaml:"strict_constraints"`
	Dynamic           DynamicCacheConfig `yaml:"dynamic"`
	Static            StaticCacheConfig  `yaml:"static"`
}

// DefaultCaches returns the default cache configuration.
func DefaultCaches() CacheConfig {
	return CacheConfig{
		Dimension:         1.5,
		StrictConstraints: true,
		Dynamic: DynamicCacheConfig{
			Enable:    true,
			MinBlocks: 3,
			MinDist:   1.5,
		},
		Static: StaticCacheConfig{
			Enable: false,
			Size:   4,
		},
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server and engine loop settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	DebugPort    int    `yaml:"debug_port"` // pprof + /metrics, 0 disables
	TickRate     int    `yaml:"tick_rate"`  // simulation ticks per second
	EventLogDir  string `yaml:"event_log_dir"`
	EventLogZstd bool   `yaml:"event_log_zstd"`

	// CORSOrigins also gates WebSocket upgrades. Empty allows localhost only.
	CORSOrigins []string `yaml:"cors_origins"`

	// CreateRate is the per-IP rate for POST /api/caches/create, per second.
	CreateRate  float64 `yaml:"create_rate"`
	CreateBurst int     `yaml:"create_burst"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        3000,
		DebugPort:   6060,
		TickRate:    10,
		EventLogDir: "logs",
		CreateRate:  0.5,
		CreateBurst: 2,
	}
}

// =============================================================================
// SPATIAL CONFIGURATION
// =============================================================================

// SpatialConfig holds spatial indexing settings.
type SpatialConfig struct {
	IndexCellSize float64 `yaml:"index_cell_size"` // entity location index bucket size
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		IndexCellSize: 2, // arena units, about one robot sensing radius
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Arena   ArenaConfig   `yaml:"arena"`
	Caches  CacheConfig   `yaml:"caches"`
	Server  ServerConfig  `yaml:"server"`
	Spatial SpatialConfig `yaml:"spatial"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		Arena:   DefaultArena(),
		Caches:  DefaultCaches(),
		Server:  DefaultServer(),
		Spatial: DefaultSpatial(),
	}
}

// Load returns the default configuration with environment overrides.
func Load() AppConfig {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

// LoadFile reads a YAML file over the defaults, then applies environment
// overrides. Keys missing from the file keep their default values.
func LoadFile(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *AppConfig) {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Server.Port = p
	}
	if p := getEnvInt("DEBUG_PORT", -1); p >= 0 {
		cfg.Server.DebugPort = p
	}
	if r := getEnvInt("TICK_RATE", 0); r > 0 {
		cfg.Server.TickRate = r
	}
	if d := os.Getenv("EVENT_LOG_DIR"); d != "" {
		cfg.Server.EventLogDir = d
	}
	cfg.Server.EventLogZstd = getEnvBool("EVENT_LOG_ZSTD", cfg.Server.EventLogZstd)
	if o := os.Getenv("CORS_ORIGINS"); o != "" {
		cfg.Server.CORSOrigins = nil
		for _, origin := range strings.Split(o, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, origin)
			}
		}
	}
	if r := getEnvFloat("CREATE_RATE", 0); r > 0 {
		cfg.Server.CreateRate = r
	}

	if s := getEnvInt("FORAGE_SEED", 0); s != 0 {
		cfg.Arena.Seed = int64(s)
	}
	if n := getEnvInt("FORAGE_ROBOTS", -1); n >= 0 {
		cfg.Arena.Robots = n
	}
	if n := getEnvInt("FORAGE_BLOCKS", -1); n >= 0 {
		cfg.Arena.NBlocks = n
	}

	if d := getEnvFloat("CACHE_DIMENSION", 0); d > 0 {
		cfg.Caches.Dimension = d
	}
	if n := getEnvInt("CACHE_MIN_BLOCKS", 0); n > 0 {
		cfg.Caches.Dynamic.MinBlocks = n
	}
	if d := getEnvFloat("CACHE_MIN_DIST", 0); d > 0 {
		cfg.Caches.Dynamic.MinDist = d
	}
	cfg.Caches.StrictConstraints = getEnvBool("CACHE_STRICT", cfg.Caches.StrictConstraints)
	cfg.Caches.Dynamic.Enable = getEnvBool("CACHE_DYNAMIC", cfg.Caches.Dynamic.Enable)
	cfg.Caches.Dynamic.RobotDropOnly = getEnvBool("CACHE_ROBOT_DROP_ONLY", cfg.Caches.Dynamic.RobotDropOnly)
	cfg.Caches.Static.Enable = getEnvBool("CACHE_STATIC", cfg.Caches.Static.Enable)
}

// minCacheBlocks mirrors arena.MinCacheBlocks; a cache needs at least two
// blocks.
const minCacheBlocks = 2

// Validate reports every impossible setting.
func (c AppConfig) Validate() error {
	var errs []error
	a := c.Arena
	if a.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("arena.resolution must be positive, got %g", a.Resolution))
	}
	if a.Width <= 0 || a.Height <= 0 {
		errs = append(errs, fmt.Errorf("arena size must be positive, got %gx%g", a.Width, a.Height))
	}
	if a.NBlocks < 0 || a.Robots < 0 {
		errs = append(errs, errors.New("arena.n_blocks and arena.robots must not be negative"))
	}
	if a.RampFraction < 0 || a.RampFraction > 1 {
		errs = append(errs, fmt.Errorf("arena.ramp_fraction must be in [0,1], got %g", a.RampFraction))
	}
	for i, cl := range a.Clusters {
		if cl.Width <= 0 || cl.Height <= 0 || cl.Capacity < 0 {
			errs = append(errs, fmt.Errorf("arena.clusters[%d]: bad size or capacity", i))
		}
	}

	cc := c.Caches
	if cc.Dimension < a.Resolution {
		errs = append(errs, fmt.Errorf("caches.dimension %g is smaller than the resolution %g", cc.Dimension, a.Resolution))
	}
	if cc.Dimension >= a.Width || cc.Dimension >= a.Height {
		errs = append(errs, fmt.Errorf("caches.dimension %g does not fit in the arena", cc.Dimension))
	}
	if cc.Dynamic.Enable {
		if cc.Dynamic.MinBlocks < minCacheBlocks {
			errs = append(errs, fmt.Errorf("caches.dynamic.min_blocks must be at least %d, got %d", minCacheBlocks, cc.Dynamic.MinBlocks))
		}
		if cc.Dynamic.MinDist <= 0 {
			errs = append(errs, fmt.Errorf("caches.dynamic.min_dist must be positive, got %g", cc.Dynamic.MinDist))
		}
	}
	if cc.Static.Enable && cc.Static.Size < minCacheBlocks {
		errs = append(errs, fmt.Errorf("caches.static.size must be at least %d, got %d", minCacheBlocks, cc.Static.Size))
	}

	if c.Server.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("server.tick_rate must be positive, got %d", c.Server.TickRate))
	}
	if c.Server.CreateRate <= 0 || c.Server.CreateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.create_rate and create_burst must be positive, got %g/%d", c.Server.CreateRate, c.Server.CreateBurst))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
