// Package ratelimit provides per-client token bucket rate limiting. The server
// runs two instances: a general bucket for every API route and a stricter one
// scoped to the routes that spend gas or image credits.
package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/mintforge/internal/middleware/realip"
	"github.com/pendergraft/mintforge/internal/observability/metrics"
)

// Config holds the configuration for one limiter.
type Config struct {
	Enabled        bool
	Name           string // metrics label, e.g. "general" or "costly"
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int

	// Paths restricts the limiter to request paths matching these path.Match
	// patterns, e.g. "/api/mints/*/resume". When empty every path except the
	// health checks is limited.
	Paths []string
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP.
type Limiter struct {
	name       string
	rate       rate.Limit
	burst      int
	ttl        time.Duration
	retryAfter string
	paths      []string

	mu      sync.Mutex
	clients map[string]*client
	stop    chan struct{}
	once    sync.Once
}

// New creates a Limiter and starts its cleanup goroutine.
func New(cfg Config) *Limiter {
	ttl := time.Duration(cfg.CleanupMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	name := cfg.Name
	if name == "" {
		name = "general"
	}

	retry := 60
	if cfg.RequestsPerMin > 0 {
		retry = int(math.Ceil(60 / float64(cfg.RequestsPerMin)))
	}

	l := &Limiter{
		name:       name,
		rate:       rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:      cfg.BurstSize,
		ttl:        ttl,
		retryAfter: strconv.Itoa(retry),
		clients:    make(map[string]*client),
		stop:       make(chan struct{}),
	}
	l.paths = cfg.Paths

	go l.cleanupLoop()
	return l
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Allow takes a token from the bucket of key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()
	return c.limiter.Allow()
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evict(time.Now().Add(-l.ttl))
		case <-l.stop:
			return
		}
	}
}

// evict drops clients not seen since cutoff.
func (l *Limiter) evict(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

var healthPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

func (l *Limiter) applies(reqPath string) bool {
	if len(l.paths) == 0 {
		return !healthPaths[reqPath]
	}
	for _, pattern := range l.paths {
		if ok, _ := path.Match(pattern, reqPath); ok {
			return true
		}
	}
	return false
}

// Middleware returns the limiter as HTTP middleware.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.applies(r.URL.Path) || l.Allow(realip.GetClientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimited(l.name)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", l.retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Please try again later.",
				},
			})
		})
	}
}

// Middleware builds a Limiter from cfg, or a pass-through when disabled. The
// limiter lives for the lifetime of the process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return New(cfg).Middleware()
}
