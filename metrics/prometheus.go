package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	syncPagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pages_fetched_total",
			Help: "Provider pages fetched, by operation type.",
		},
		[]string{"op"},
	)
	syncRecordsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_upserted_total",
			Help: "Records committed to storage, by operation type.",
		},
		[]string{"op"},
	)
	syncFetchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_fetch_retries_total",
			Help: "Provider fetch attempts that failed with a retryable error.",
		},
		[]string{"op"},
	)
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Finished target syncs, by operation type and terminal state.",
		},
		[]string{"op", "state"},
	)
	syncTargetDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_target_duration_seconds",
			Help:    "Histogram of per-target sync durations.",
			Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(syncPagesFetched)
	prometheus.MustRegister(syncRecordsUpserted)
	prometheus.MustRegister(syncFetchRetries)
	prometheus.MustRegister(syncRunsTotal)
	prometheus.MustRegister(syncTargetDuration)
}

// RecordRequest records metrics for one handled HTTP request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func RecordPageFetched(op string) {
	syncPagesFetched.WithLabelValues(op).Inc()
}

func RecordUpserted(op string, n int) {
	syncRecordsUpserted.WithLabelValues(op).Add(float64(n))
}

func RecordFetchRetry(op string) {
	syncFetchRetries.WithLabelValues(op).Inc()
}

func RecordRun(op, state string, duration time.Duration) {
	syncRunsTotal.WithLabelValues(op, state).Inc()
	syncTargetDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func classifyStatus(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler returns the HTTP handler exporting Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
