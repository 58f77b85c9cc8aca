package server

import (
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pendergraft/mintforge/internal/middleware/logging"
	"github.com/pendergraft/mintforge/internal/middleware/ratelimit"
	"github.com/pendergraft/mintforge/internal/middleware/realip"
	"github.com/pendergraft/mintforge/internal/middleware/security"
	"github.com/pendergraft/mintforge/internal/observability/metrics"
)

// costlyPaths spend gas or image generation credits per request.
var costlyPaths = []string{"/api/mint", "/api/generate-image", "/api/mints/*/resume"}

func (s *Server) setupMiddleware() {
	// Order matters. Cheap rejections run before anything is logged.

	// 1. Real IP extraction, used by the rate limiters and the access log
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. CORS, ahead of every rejection so browsers can read 403/413/429
	// bodies. Preflights are answered here and never reach the limiters.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedMethods: s.cfg.CORS.AllowedMethods,
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}))

	// 3. Scanner and traversal filter
	s.router.Use(security.Filter(s.cfg.Security.FilterEnabled))

	// 4. Body size limit; image payloads arrive base64 encoded
	s.router.Use(security.MaxBodySize(s.cfg.Security.MaxBodySizeMB))

	// 5. Rate limiting: a general bucket plus a stricter one for costly routes
	rl := s.cfg.RateLimit
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        rl.Enabled,
		Name:           "general",
		RequestsPerMin: rl.RequestsPerMin,
		BurstSize:      rl.BurstSize,
		CleanupMinutes: rl.CleanupMinutes,
	}))
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        rl.Enabled,
		Name:           "costly",
		RequestsPerMin: rl.CostlyRequestsPerMin,
		BurstSize:      rl.CostlyBurstSize,
		CleanupMinutes: rl.CleanupMinutes,
		Paths:          costlyPaths,
	}))

	// 6. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}
