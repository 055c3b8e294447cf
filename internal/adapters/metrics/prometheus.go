package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/timkado/api/daisi-billing-testkit/internal/domain"
)

// prometheusMetricsSink implements the domain.MetricsSink interface using Prometheus.
type prometheusMetricsSink struct {
	testkitTestsTotal           *prometheus.CounterVec
	testkitTestSeconds          *prometheus.HistogramVec
	testkitAbortedSetupsTotal   prometheus.Counter
	testkitContextRefreshTotal  *prometheus.CounterVec
	testkitEventsPublishedTotal *prometheus.CounterVec
	testkitPublishErrorsTotal   prometheus.Counter
	testkitDedupChecksTotal     *prometheus.CounterVec
	testkitOutcomesTotal        *prometheus.CounterVec
}

// NewPrometheusMetricsSink creates a new Prometheus-backed MetricsSink and registers the collectors.
func NewPrometheusMetricsSink() (domain.MetricsSink, error) {
	sink := &prometheusMetricsSink{
		testkitTestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_testkit_tests_total",
				Help: "Total number of tests classified by the lifecycle wrapper, labeled by suite and result.",
			},
			[]string{"suite", "result"},
		),
		testkitTestSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_testkit_test_seconds",
				Help:    "Histogram of test wall times, labeled by suite.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"suite"},
		),
		testkitAbortedSetupsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_testkit_aborted_setups_total",
				Help: "Total number of test setups skipped because the run already failed fast.",
			},
		),
		testkitContextRefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_testkit_context_refreshes_total",
				Help: "Total number of call-context refreshes, labeled by result (ok/error).",
			},
			[]string{"result"},
		),
		testkitEventsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_testkit_events_published_total",
				Help: "Total number of outcome reports published, labeled by subject and status.",
			},
			[]string{"subject", "status"},
		),
		testkitPublishErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_testkit_publish_errors_total",
				Help: "Total number of errors encountered while publishing outcome reports.",
			},
		),
		testkitDedupChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_testkit_deduplication_checks_total",
				Help: "Total number of outcome deduplication checks performed, partitioned by result (hit/miss).",
			},
			[]string{"result"},
		),
		testkitOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_testkit_outcomes_total",
				Help: "Total number of outcome events aggregated by the reporter, labeled by suite and result.",
			},
			[]string{"suite", "result"},
		),
	}
	return sink, nil
}

// IncTestsTotal increments the counter for classified test outcomes.
func (s *prometheusMetricsSink) IncTestsTotal(suite, result string) {
	s.testkitTestsTotal.WithLabelValues(suite, result).Inc()
}

// ObserveTestDuration records the wall time of a finished test.
func (s *prometheusMetricsSink) ObserveTestDuration(suite string, duration time.Duration) {
	s.testkitTestSeconds.WithLabelValues(suite).Observe(duration.Seconds())
}

// IncAbortedSetups increments the counter for fail-fast skipped setups.
func (s *prometheusMetricsSink) IncAbortedSetups() {
	s.testkitAbortedSetupsTotal.Inc()
}

// IncContextRefreshes increments the counter for call-context refreshes.
func (s *prometheusMetricsSink) IncContextRefreshes(result string) {
	s.testkitContextRefreshTotal.WithLabelValues(result).Inc()
}

// IncEventsPublished increments the counter for published outcome reports.
func (s *prometheusMetricsSink) IncEventsPublished(subject, status string) {
	s.testkitEventsPublishedTotal.WithLabelValues(subject, status).Inc()
}

// IncPublishErrors increments the counter for publishing errors.
func (s *prometheusMetricsSink) IncPublishErrors() {
	s.testkitPublishErrorsTotal.Inc()
}

// IncDedupCheck increments the counter for deduplication checks.
func (s *prometheusMetricsSink) IncDedupCheck(result string) {
	s.testkitDedupChecksTotal.WithLabelValues(result).Inc()
}

// IncOutcomesTotal increments the reporter-side aggregate outcome counter.
func (s *prometheusMetricsSink) IncOutcomesTotal(suite, result string) {
	s.testkitOutcomesTotal.WithLabelValues(suite, result).Inc()
}

// StartMetricsServer starts an HTTP server to expose Prometheus metrics.
// This is a helper function called from bootstrap.
func StartMetricsServer(metricsPort string) *http.Server {
	hmux := http.NewServeMux()
	hmux.Handle("/metrics", promhttp.Handler())
	hmux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	})

	srv := &http.Server{
		Addr:    ":" + metricsPort, // e.g. ":8080"
		Handler: hmux,
	}

	// Start server in a goroutine so it doesn't block.
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			panic(fmt.Sprintf("Metrics server failed: %v", err))
		}
	}()
	return srv // Return server instance for graceful shutdown
}
