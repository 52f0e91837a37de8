package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"forage/internal/render"
	"forage/internal/sim"
)

// EngineInterface defines the engine methods used by the API.
// This interface enables mocking for tests without spinning up the tick loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns a private copy of the latest published snapshot
	GetSnapshot() *sim.Snapshot
	// GetStats returns the counters of the latest snapshot
	GetStats() sim.Stats
	// CreateCaches runs a dynamic cache creation pass now
	CreateCaches() (sim.CreationReport, error)
	// GetEventLogStats returns event log counters
	GetEventLogStats() sim.EventLogStats
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the simulation engine (required)
	Engine EngineInterface

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CreateRateLimiter guards POST /api/caches/create on top of the read
	// limiter. If nil, one is built from CreateRateLimitConfig, falling back
	// to DefaultCreateRateLimitConfig.
	CreateRateLimiter     *IPRateLimiter
	CreateRateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If empty, any localhost origin is allowed.
	CORSOrigins []string

	// RenderScale is the arena.png resolution in pixels per arena unit.
	// Zero uses DefaultRenderScale.
	RenderScale float64

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// DefaultRenderScale is the default arena.png scale.
const DefaultRenderScale = 20

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	renderer *render.Renderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It opens no listeners; use it with httptest.NewServer in tests.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	createLimiter := cfg.CreateRateLimiter
	if createLimiter == nil {
		createCfg := DefaultCreateRateLimitConfig
		if cfg.CreateRateLimitConfig != nil {
			createCfg = *cfg.CreateRateLimitConfig
		}
		createLimiter = NewClassRateLimiter(ClassCreate, createCfg)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: NewOriginPolicy(cfg.CORSOrigins).Patterns(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	scale := cfg.RenderScale
	if scale <= 0 {
		scale = DefaultRenderScale
	}
	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: render.New(scale),
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/caches", h.handleGetCaches)
		r.With(createLimiter.Middleware).Post("/caches/create", h.handleCreateCaches)
		r.Get("/arena.png", h.handleArenaPNG)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/stats", http.StatusFound)
	})

	return r
}
