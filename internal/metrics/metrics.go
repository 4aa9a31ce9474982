// Package metrics exposes Prometheus instruments for the daemon.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logq_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logq_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// IngestTotal counts write attempts by transport and outcome.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logq_ingest_total",
			Help: "Log records submitted, by transport and result",
		},
		[]string{"transport", "result"},
	)
	// QueryTotal counts queries by transport and outcome.
	QueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logq_query_total",
			Help: "Queries executed, by transport and result",
		},
		[]string{"transport", "result"},
	)
	// ScannedRecords is the size of the collection each query had to scan.
	ScannedRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logq_query_scanned_records",
			Help:    "Records scanned per query",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)
)

// Middleware records RequestTotal and RequestDuration for every gin route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
