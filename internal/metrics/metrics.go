// Package metrics holds the Prometheus collectors shared by the pipeline
// and the HTTP gateway. Collectors register on the default registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScansTotal counts pipeline runs by outcome: "ok", "cached" or an error code.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonscan_scans_total",
			Help: "Anonymous scan requests by outcome.",
		},
		[]string{"outcome"},
	)

	// CacheLookups counts fresh-scan lookups by result: "l1", "db" or "miss".
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonscan_cache_lookups_total",
			Help: "Fresh-scan cache lookups by result.",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anonscan_rate_limited_total",
		Help: "Scan requests rejected by the per-IP hourly limit.",
	})

	ExtractedFiles = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anonscan_extracted_files",
		Help:    "Files kept per tarball extraction.",
		Buckets: []float64{1, 10, 50, 100, 250, 500},
	})

	ExtractedBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anonscan_extracted_bytes",
		Help:    "Bytes kept per tarball extraction.",
		Buckets: prometheus.ExponentialBuckets(4096, 4, 9),
	})

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anonscan_backend_scan_duration_seconds",
			Help:    "Latency of scan backend calls in seconds.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 180},
		},
		[]string{"status"},
	)

	WarmerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonscan_warmer_repos_total",
			Help: "Cache warmer results per repository.",
		},
		[]string{"status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonscan_http_requests_total",
			Help: "HTTP requests served by the gateway.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anonscan_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one served request. route must be a pattern, not a
// raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
