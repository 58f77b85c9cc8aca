// Package metrics provides Prometheus instrumentation for mintforge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Mint pipeline metrics
	mintTotal         *prometheus.CounterVec
	mintStageDuration *prometheus.HistogramVec

	// Downstream service metrics
	pinTotal           *prometheus.CounterVec
	imageGenerateTotal *prometheus.CounterVec
	chainTxTotal       *prometheus.CounterVec

	// Collection and verification metrics
	collectionResolveTotal *prometheus.CounterVec
	verificationTotal      *prometheus.CounterVec

	rateLimitedTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	mintTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mint_total",
			Help: "Total number of mint pipeline runs by final status",
		},
		[]string{"status"},
	)

	// Pinning and receipt waits dominate, so buckets reach into minutes.
	mintStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mint_stage_duration_seconds",
			Help:    "Duration of each mint pipeline stage in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	pinTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pin_total",
			Help: "Total number of pinning requests",
		},
		[]string{"kind", "status"},
	)

	imageGenerateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_generate_total",
			Help: "Total number of image generation requests",
		},
		[]string{"status"},
	)

	chainTxTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_tx_total",
			Help: "Total number of transactions submitted",
		},
		[]string{"method", "status"},
	)

	collectionResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_resolve_total",
			Help: "Total number of cold collection resolutions by source",
		},
		[]string{"source"},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_total",
			Help: "Total number of verification requests",
		},
		[]string{"kind", "result"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
