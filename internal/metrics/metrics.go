// Package metrics exposes Prometheus collectors for crawl runs and the HTTP front-end.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Phase labels for page metrics.
const (
	PhaseDiscovery = "discovery"
	PhaseContent   = "content"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_attempts_total",
			Help: "Fetch attempts, labeled by outcome (2xx, 3xx, 4xx, 5xx, 429, transport_error).",
		},
		[]string{"outcome"},
	)

	fetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_fetch_retries_total",
			Help: "Fetch attempts that were followed by another attempt for the same URL.",
		},
	)

	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Pages processed, labeled by crawl phase and result.",
		},
		[]string{"phase", "result"},
	)

	rowsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_rows_written_total",
			Help: "CSV rows written across all runs.",
		},
	)

	duplicateChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_duplicate_chunks_total",
			Help: "Text chunks skipped because an identical chunk was already written in the run.",
		},
	)

	circuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_circuit_state",
			Help: "Most recent circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Crawl runs, labeled by result.",
		},
		[]string{"result"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the per-host rate limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite extracts a lowercase hostname for use as a label value.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusOutcome maps an HTTP status to its fetch outcome label.
func StatusOutcome(status int) string {
	if status == http.StatusTooManyRequests {
		return "429"
	}
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// ObserveFetchAttempt counts one attempt. Use "transport_error" when no status was received.
func ObserveFetchAttempt(outcome string) {
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts an attempt that will be retried.
func ObserveRetry() {
	fetchRetriesTotal.Inc()
}

// ObservePage counts a page outcome for the given phase.
func ObservePage(phase, result string) {
	pagesTotal.WithLabelValues(phase, result).Inc()
}

// ObserveRowWritten counts one CSV row.
func ObserveRowWritten() {
	rowsWrittenTotal.Inc()
}

// ObserveDuplicateChunk counts one deduplicated chunk.
func ObserveDuplicateChunk() {
	duplicateChunksTotal.Inc()
}

// SetCircuitState records the breaker position by name ("closed", "half_open", "open").
func SetCircuitState(state string) {
	switch state {
	case "open":
		circuitState.Set(2)
	case "half_open":
		circuitState.Set(1)
	default:
		circuitState.Set(0)
	}
}

// ObserveRun counts a finished run.
func ObserveRun(result string) {
	runsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
