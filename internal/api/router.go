// Package api is the HTTP transport: it maps requests onto the logs service and back to JSON.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raj2399/Task-Evallo/internal/metrics"
)

type Options struct {
	CORSOrigin         string
	RateLimitPerMinute int // 0 disables rate limiting
	RateLimitBurst     int
	Logger             *slog.Logger
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := opts.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(logger), metrics.Middleware(), CORS(origin))

	r.GET("/", h.Health)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	create := []gin.HandlerFunc{h.CreateLog}
	if opts.RateLimitPerMinute > 0 {
		create = append([]gin.HandlerFunc{RateLimit(opts.RateLimitPerMinute, opts.RateLimitBurst)}, create...)
	}

	logsGroup := r.Group("/logs")
	{
		logsGroup.POST("", create...)
		logsGroup.GET("", h.ListLogs)
		logsGroup.GET("/export", h.Export)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}
