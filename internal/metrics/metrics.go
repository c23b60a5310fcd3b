// Package metrics provides Prometheus metrics collection for the asset service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks HTTP request duration by method, path, and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestTotal tracks total HTTP requests by method, path, and status code.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// CacheOperationsTotal tracks cache store operations by operation and result.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_operations_total",
			Help: "Total number of cache store operations",
		},
		[]string{"operation", "result"},
	)

	// BatchResolutionsTotal tracks batch resolutions by outcome.
	BatchResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_resolutions_total",
			Help: "Total number of batch resolutions",
		},
		[]string{"status"},
	)

	// BatchResolutionDuration tracks end-to-end batch resolution duration.
	BatchResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_resolution_duration_seconds",
			Help:    "Batch resolution duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// BatchItemsTotal tracks resolved items by source (hit, computed, joined, error).
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Total number of batch items by resolution source",
		},
		[]string{"source"},
	)

	// AnalyzerCallsTotal tracks analyzer capability calls by result.
	AnalyzerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_calls_total",
			Help: "Total number of analyzer calls",
		},
		[]string{"result"},
	)

	// AnalyzerCallDuration tracks analyzer call duration.
	AnalyzerCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analyzer_call_duration_seconds",
			Help:    "Analyzer call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	// FetchQueueDepth tracks the current fetch executor queue depth.
	FetchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetch_queue_depth",
			Help: "Current number of queued fetch tasks",
		},
	)

	// FetchTasksTotal tracks fetch executor task outcomes.
	FetchTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_tasks_total",
			Help: "Total number of fetch tasks by outcome",
		},
		[]string{"outcome"},
	)

	// GenerationPollsTotal tracks generation status polls by result.
	GenerationPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_polls_total",
			Help: "Total number of generation status polls",
		},
		[]string{"result"},
	)

	// GenerationTransitionsTotal tracks job state transitions.
	GenerationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_transitions_total",
			Help: "Total number of generation job state transitions",
		},
		[]string{"to_state"},
	)
)

// PrometheusMiddleware returns a Gin middleware that collects HTTP metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration)
		HTTPRequestTotal.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordCacheOperation records a cache store operation.
func RecordCacheOperation(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordBatchResolution records metrics for a completed batch resolution.
func RecordBatchResolution(duration time.Duration, status string) {
	BatchResolutionDuration.Observe(duration.Seconds())
	BatchResolutionsTotal.WithLabelValues(status).Inc()
}

// RecordBatchItem records how a single batch item was resolved.
func RecordBatchItem(source string) {
	BatchItemsTotal.WithLabelValues(source).Inc()
}

// RecordAnalyzerCall records an analyzer capability call.
func RecordAnalyzerCall(duration time.Duration, result string) {
	AnalyzerCallDuration.Observe(duration.Seconds())
	AnalyzerCallsTotal.WithLabelValues(result).Inc()
}

// RecordFetchTask records a fetch executor task outcome.
func RecordFetchTask(outcome string) {
	FetchTasksTotal.WithLabelValues(outcome).Inc()
}

// RecordGenerationPoll records a generation status poll result.
func RecordGenerationPoll(result string) {
	GenerationPollsTotal.WithLabelValues(result).Inc()
}

// RecordGenerationTransition records a job state transition.
func RecordGenerationTransition(toState string) {
	GenerationTransitionsTotal.WithLabelValues(toState).Inc()
}
