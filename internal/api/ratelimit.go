package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RouteClass groups routes that share a per-IP budget.
type RouteClass string

const (
	// ClassRead covers the polling routes: state, stats, caches, arena.png.
	ClassRead RouteClass = "read"
	// ClassCreate covers POST /api/caches/create, which runs a creation
	// pass under the engine lock and stalls the tick while it runs.
	ClassCreate RouteClass = "create"
)

// RateLimitConfig configures one per-IP limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration // idle limiters are dropped after 2x this
}

// DefaultRateLimitConfig is the read budget. A dashboard polls /api/stats and
// arena.png a few times a second.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

// DefaultCreateRateLimitConfig is the budget for on-demand creation passes.
var DefaultCreateRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 0.5,
	Burst:             2,
	CleanupInterval:   5 * time.Minute,
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// IPRateLimiter rate limits one route class per client IP.
type IPRateLimiter struct {
	class    RouteClass
	config   RateLimitConfig
	limiters sync.Map // ip -> *ipLimiterEntry
	stopChan chan struct{}
	stopOnce sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewIPRateLimiter creates a read-class limiter.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	return NewClassRateLimiter(ClassRead, cfg)
}

// NewClassRateLimiter creates a limiter for class. Its cleanup goroutine runs
// until Stop.
func NewClassRateLimiter(class RouteClass, cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		class:    class,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Class returns the route class this limiter guards.
func (rl *IPRateLimiter) Class() RouteClass { return rl.class }

// Stop ends the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := rl.limiters.Load(ip); ok {
		e := v.(*ipLimiterEntry)
		e.lastSeen.Store(now)
		return e.limiter
	}
	e := &ipLimiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
	e.lastSeen.Store(now)
	actual, _ := rl.limiters.LoadOrStore(ip, e)
	return actual.(*ipLimiterEntry).limiter
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-2 * rl.config.CleanupInterval))
		}
	}
}

func (rl *IPRateLimiter) cleanup(cutoff time.Time) {
	rl.limiters.Range(func(key, value any) bool {
		if value.(*ipLimiterEntry).lastSeen.Load() < cutoff.UnixNano() {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// Allow takes one token from ip's bucket.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.getLimiter(ip).Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Middleware rejects over-budget requests with 429. The rejection metric is
// labelled with the route class.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	reason := "rate_limit_" + string(rl.class)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected(reason)
			w.Header().Set("Retry-After", retryAfter(rl.config.RequestsPerSecond))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter is the whole number of seconds until one token refills.
func retryAfter(rps float64) string {
	if rps >= 1 || rps <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / rps)))
}

// LimiterStats counts rate limiter decisions.
type LimiterStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
}

// GetStats returns the decision counters.
func (rl *IPRateLimiter) GetStats() LimiterStats {
	return LimiterStats{Allowed: rl.allowed.Load(), Rejected: rl.rejected.Load()}
}

// GetClientIP extracts the client IP, trusting X-Forwarded-For and X-Real-IP.
// Those headers can be spoofed unless a trusted proxy sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// WebSocketRateLimiter caps concurrent WebSocket connections per IP.
type WebSocketRateLimiter struct {
	connections sync.Map // ip -> *atomic.Int32
	maxPerIP    int32
	rejected    atomic.Uint64
}

// NewWebSocketRateLimiter creates a connection limiter.
func NewWebSocketRateLimiter(maxPerIP int) *WebSocketRateLimiter {
	return &WebSocketRateLimiter{maxPerIP: int32(maxPerIP)}
}

// Allow reserves a connection slot for ip.
func (wrl *WebSocketRateLimiter) Allow(ip string) bool {
	v, _ := wrl.connections.LoadOrStore(ip, new(atomic.Int32))
	counter := v.(*atomic.Int32)
	for {
		n := counter.Load()
		if n >= wrl.maxPerIP {
			wrl.rejected.Add(1)
			return false
		}
		if counter.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release frees a slot reserved by Allow.
func (wrl *WebSocketRateLimiter) Release(ip string) {
	if v, ok := wrl.connections.Load(ip); ok {
		v.(*atomic.Int32).Add(-1)
	}
}

// GetConnectionCount returns the open connections for ip.
func (wrl *WebSocketRateLimiter) GetConnectionCount(ip string) int {
	if v, ok := wrl.connections.Load(ip); ok {
		return int(v.(*atomic.Int32).Load())
	}
	return 0
}

// GetStats returns the rejection count.
func (wrl *WebSocketRateLimiter) GetStats() LimiterStats {
	return LimiterStats{Rejected: wrl.rejected.Load()}
}

// OriginPolicy decides which browser origins may call the API and open a
// WebSocket. Patterns use the same single "*" wildcard as go-chi/cors.
type OriginPolicy struct {
	patterns []string
}

// localOrigins are allowed when no origins are configured.
var localOrigins = []string{"http://localhost:*", "http://127.0.0.1:*", "http://localhost", "http://127.0.0.1"}

// NewOriginPolicy builds a policy from configured origins. An empty list
// allows local origins only.
func NewOriginPolicy(origins []string) OriginPolicy {
	if len(origins) == 0 {
		origins = localOrigins
	}
	return OriginPolicy{patterns: origins}
}

// Patterns returns the configured patterns, for the CORS middleware.
func (p OriginPolicy) Patterns() []string { return p.patterns }

// Allowed reports whether origin matches a pattern.
func (p OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, pat := range p.patterns {
		if pat == "*" {
			return true
		}
		prefix, suffix, wild := strings.Cut(pat, "*")
		if !wild {
			if strings.EqualFold(origin, pat) {
				return true
			}
			continue
		}
		if len(origin) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
