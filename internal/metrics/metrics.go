// Package metrics exposes Prometheus collectors for the news pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Article stages counted by ObserveArticles.
const (
	StageCollected = "collected"
	StageFiltered  = "filtered"
	StageDuplicate = "duplicate"
	StageAdmitted  = "admitted"
	StageCommitted = "committed"
	StageAbandoned = "abandoned"
)

var (
	articlesTotal              *prometheus.CounterVec
	sourceErrorsTotal          *prometheus.CounterVec
	storeRetriesTotal          *prometheus.CounterVec
	storeAbandonedTotal        *prometheus.CounterVec
	sweptRowsTotal             *prometheus.CounterVec
	scoringDurationSeconds     *prometheus.HistogramVec
	runsTotal                  *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every Observe function
// calls it first.
func Init() {
	once.Do(func() {
		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_articles_total",
				Help: "Articles seen per pipeline stage, labeled by stage and source.",
			},
			[]string{"stage", "source"},
		)

		sourceErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_source_errors_total",
				Help: "Source adapter failures, labeled by source.",
			},
			[]string{"source"},
		)

		storeRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_store_retries_total",
				Help: "Rate-limited store calls that were retried, labeled by operation.",
			},
			[]string{"op"},
		)

		storeAbandonedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_store_abandoned_total",
				Help: "Store calls abandoned after exhausting rate-limit retries, labeled by operation.",
			},
			[]string{"op"},
		)

		sweptRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_swept_rows_total",
				Help: "Rows visited by maintenance sweeps, labeled by sweep and result.",
			},
			[]string{"sweep", "result"},
		)

		scoringDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsdesk_scoring_duration_seconds",
				Help:    "Histogram of scoring call latencies, labeled by outcome.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_runs_total",
				Help: "Pipeline runs, labeled by status.",
			},
			[]string{"status"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsdesk_rate_limit_delays_seconds",
				Help:    "Histogram of client-side throttle waits, labeled by key.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"key"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
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

// ObserveArticles adds n articles to the counter of a stage.
func ObserveArticles(stage, source string, n int) {
	Init()
	if n <= 0 {
		return
	}
	articlesTotal.WithLabelValues(stage, source).Add(float64(n))
}

// ObserveSourceError counts a failed source adapter.
func ObserveSourceError(source string) {
	Init()
	sourceErrorsTotal.WithLabelValues(source).Inc()
}

// ObserveStoreRetry counts a rate-limited store call that will be retried.
func ObserveStoreRetry(op string) {
	Init()
	storeRetriesTotal.WithLabelValues(op).Inc()
}

// ObserveStoreAbandoned counts a store call given up on.
func ObserveStoreAbandoned(op string) {
	Init()
	storeAbandonedTotal.WithLabelValues(op).Inc()
}

// ObserveSweep adds n rows to the counter of a sweep result.
func ObserveSweep(sweep, result string, n int) {
	Init()
	if n <= 0 {
		return
	}
	sweptRowsTotal.WithLabelValues(sweep, result).Add(float64(n))
}

// ObserveScoring records the latency of one scoring call.
func ObserveScoring(outcome string, duration time.Duration) {
	Init()
	scoringDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveRun counts a finished run.
func ObserveRun(status string) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(key).Observe(duration.Seconds())
}
