// Package httpapi serves the bot's ops HTTP surface: liveness, Prometheus
// metrics and a small read-only API over the store.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/bindbot/internal/config"
	"github.com/tbourn/bindbot/internal/http/handlers"
	"github.com/tbourn/bindbot/internal/http/middleware"
)

// NewServer builds the ops http.Server for cfg.HTTPAddr.
func NewServer(cfg config.Config, store handlers.Store) *http.Server {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	RegisterRoutes(r, store, cfg)
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// RegisterRoutes installs middleware and routes on r.
//
// Middleware order: tracing, request id, access log, recovery, metrics,
// rate limit, CORS, hardening headers, gzip.
func RegisterRoutes(r *gin.Engine, store handlers.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).Handler())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.NoStoreHeaders())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.New(store)
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.GET("/stats", h.Stats)
	api.GET("/bindings", h.ListBindings)
	api.GET("/bindings/:id", h.GetBinding)
	api.GET("/users/:id", h.GetUser)
	api.GET("/logs", h.ListLogs)
}

// corsMiddleware allows every origin when the allowlist is empty, otherwise
// only the listed ones. The API is read-only, so only GET/OPTIONS are allowed.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
