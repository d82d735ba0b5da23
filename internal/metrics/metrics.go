// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal         *prometheus.CounterVec
	recordsTotal            *prometheus.CounterVec
	retryAttemptsTotal      *prometheus.CounterVec
	sessionRecreationsTotal prometheus.Counter
	enrichmentsTotal        *prometheus.CounterVec
	targetRunsTotal         *prometheus.CounterVec
	navigationSeconds       prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsift_crawl_pages_total",
				Help: "Total result pages fetched, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsift_records_total",
				Help: "Total extracted records, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		retryAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsift_retry_attempts_total",
				Help: "Total navigation retry attempts, labeled by reason.",
			},
			[]string{"reason"},
		)

		sessionRecreationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobsift_session_recreations_total",
				Help: "Total browser session recreations.",
			},
		)

		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsift_enrichments_total",
				Help: "Total detail-page enrichments, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		targetRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsift_target_runs_total",
				Help: "Total crawl-target runs, labeled by final status.",
			},
			[]string{"status"},
		)

		navigationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobsift_navigation_duration_seconds",
				Help:    "Histogram of browser navigation latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for a source.
func ObservePage(source, outcome string) {
	crawlPagesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveRecord increments the record counter for a source.
func ObserveRecord(source, outcome string) {
	recordsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveRetry increments the retry counter for the given reason.
func ObserveRetry(reason string) {
	retryAttemptsTotal.WithLabelValues(reason).Inc()
}

// ObserveSessionRecreation increments the session recreation counter.
func ObserveSessionRecreation() {
	sessionRecreationsTotal.Inc()
}

// ObserveEnrichment increments the enrichment counter for the given outcome.
func ObserveEnrichment(outcome string) {
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTargetRun increments the target run counter for the final status.
func ObserveTargetRun(status string) {
	targetRunsTotal.WithLabelValues(status).Inc()
}

// ObserveNavigation records the duration of one browser navigation.
func ObserveNavigation(d time.Duration) {
	navigationSeconds.Observe(d.Seconds())
}
