// Package metrics provides Prometheus metrics for the HTTP server and the
// analysis pipeline:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - external_lookup_total: Counter with source and outcome labels
//   - analysis_total: Counter with outcome label
//   - analysis_records_total: Counter of medication records produced
//   - reference_data_items: Gauge with dataset label
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Number of clients with a rate limiter bucket",
		},
	)

	ExternalLookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_lookup_total",
			Help: "Lookups against external sources by outcome",
		},
		[]string{"source", "outcome"},
	)

	AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_total",
			Help: "Processed uploads by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_records_total",
			Help: "Medication records produced by analyses",
		},
	)

	ReferenceDataItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reference_data_items",
			Help: "Entries loaded per reference dataset",
		},
		[]string{"dataset"},
	)
)

// Lookup outcomes
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
	OutcomeSkip  = "skipped"
)

// ObserveLookup counts one external lookup
func ObserveLookup(source, outcome string) {
	ExternalLookupTotal.WithLabelValues(source, outcome).Inc()
}

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(ExternalLookupTotal)
	prometheus.MustRegister(AnalysisTotal)
	prometheus.MustRegister(AnalysisRecordsTotal)
	prometheus.MustRegister(ReferenceDataItems)
}
