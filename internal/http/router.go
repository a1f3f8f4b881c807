// Package httpapi wires the ops HTTP surface (Gin) to the application
// services and the shared middleware stack. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging, panic recovery,
// metrics, rate limiting, CORS, and security headers.
//
// Middleware ordering is deliberate: trace everything first, then attach
// the correlation ID, then log, then recover, so a panic is captured with
// full structured context.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/mkraev/registrar-bot/internal/config"
	"github.com/mkraev/registrar-bot/internal/http/handlers"
	"github.com/mkraev/registrar-bot/internal/http/middleware"
	"github.com/mkraev/registrar-bot/internal/services"
)

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine: health and metrics probes plus the read-only /api/v1 listing API
// backed by the same database the bot writes to.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// Trace all HTTP requests.
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// Correlate requests and logs.
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	// Panic recovery to JSON 500 with request id.
	r.Use(middleware.Recovery())

	// Global body size limit (1 MiB). The API is read-only but a cap keeps
	// abusive bodies from tying up connections.
	r.Use(limitBody(1 << 20))

	// Prometheus metrics and the /metrics endpoint.
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Token-bucket rate limiter per client IP.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// CORS posture: allow all when no allowlist is configured.
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and the request is HTTPS).
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Compress listing responses.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks.
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness probe.
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	userSvc := &services.UserService{DB: db}
	arcSvc := &services.ArchiveService{DB: db, RecentLimit: cfg.RecentNotesLimit}
	h := handlers.New(userSvc, arcSvc)

	api := r.Group("/api/v1")
	{
		api.GET("/users", h.ListUsers)
		api.GET("/notes", h.ListNotes)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
