package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// BroadcastInterval is how often WebSocket clients receive arena stats.
const BroadcastInterval = 100 * time.Millisecond

// ServerOptions configures NewServer. Zero values fall back to defaults.
type ServerOptions struct {
	Addr        string
	RenderScale float64

	// CORSOrigins feeds both the CORS middleware and the WebSocket origin
	// check. Empty allows localhost only.
	CORSOrigins []string

	// CreateRateLimit budgets POST /api/caches/create per IP.
	CreateRateLimit RateLimitConfig
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine        EngineInterface
	router        *chi.Mux
	wsHub         *WebSocketHub
	rateLimiter   *IPRateLimiter
	createLimiter *IPRateLimiter
	httpServer    *http.Server
}

// NewServer creates a new API server. The http.Server is built here so Start
// and Shutdown never race on it.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine EngineInterface, opts ServerOptions) *Server {
	if opts.RenderScale <= 0 {
		opts.RenderScale = DefaultRenderScale
	}
	createCfg := opts.CreateRateLimit
	if createCfg.RequestsPerSecond <= 0 || createCfg.Burst < 1 {
		createCfg = DefaultCreateRateLimitConfig
	}

	origins := NewOriginPolicy(opts.CORSOrigins)
	s := &Server{
		engine:        engine,
		wsHub:         NewWebSocketHub(origins),
		rateLimiter:   NewIPRateLimiter(DefaultRateLimitConfig),
		createLimiter: NewClassRateLimiter(ClassCreate, createCfg),
	}

	s.router = NewRouter(RouterConfig{
		Engine:            engine,
		RateLimiter:       s.rateLimiter,
		CreateRateLimiter: s.createLimiter,
		RenderScale:       opts.RenderScale,
		CORSOrigins:       origins.Patterns(),
	})

	// WebSocket route needs the hub instance
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start begins the HTTP server AND starts background workers. It blocks
// until the server stops; a Shutdown is not reported as an error.
func (s *Server) Start() error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, BroadcastInterval)

	addr := s.httpServer.Addr
	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🖼️ Arena view: http://localhost%s/api/arena.png", addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops background workers and drains in-flight requests. It may run
// before Start, in which case Start returns nil at once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	s.createLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
