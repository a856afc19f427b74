// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus collectors for search fan-out,
// full-text source attempts and cache tiers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so library callers that do not care about metrics can pass nil.
type Metrics struct {
	registry *prometheus.Registry

	searchSource   *prometheus.CounterVec
	searchDuration prometheus.Histogram
	searchResults  prometheus.Histogram

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	limiterWaits    *prometheus.CounterVec
	resolveTotal    *prometheus.CounterVec

	cacheRequests *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		searchSource: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biosearch_search_source_total",
				Help: "Record source queries by outcome",
			},
			[]string{"source", "status"},
		),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "biosearch_search_duration_seconds",
				Help:    "End-to-end search duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		searchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "biosearch_search_results_count",
				Help:    "Ranked results per search",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),

		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biosearch_fulltext_attempts_total",
				Help: "Full-text source attempts by outcome",
			},
			[]string{"source", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "biosearch_fulltext_attempt_duration_seconds",
				Help:    "Full-text source attempt duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		),
		limiterWaits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biosearch_fulltext_limiter_waits_total",
				Help: "Requests delayed by a per-source rate limiter",
			},
			[]string{"source"},
		),
		resolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biosearch_fulltext_resolve_total",
				Help: "Full-text resolutions by how they were satisfied",
			},
			[]string{"result"},
		),

		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biosearch_cache_requests_total",
				Help: "Cache tier lookups by result",
			},
			[]string{"tier", "result"},
		),
	}

	m.registry.MustRegister(
		m.searchSource, m.searchDuration, m.searchResults,
		m.attempts, m.attemptDuration, m.limiterWaits, m.resolveTotal,
		m.cacheRequests,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the current values in the node_exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// ObserveSearchSource counts one record source query.
func (m *Metrics) ObserveSearchSource(source, status string) {
	if m == nil {
		return
	}
	m.searchSource.WithLabelValues(source, status).Inc()
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(elapsed.Seconds())
	m.searchResults.Observe(float64(results))
}

// ObserveAttempt records one full-text source attempt.
func (m *Metrics) ObserveAttempt(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(source, outcome).Inc()
	m.attemptDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveLimiterWait counts a request delayed by a source's rate limiter.
func (m *Metrics) ObserveLimiterWait(source string) {
	if m == nil {
		return
	}
	m.limiterWaits.WithLabelValues(source).Inc()
}

// ObserveResolve counts one full-text resolution. result is one of
// "cached", "fetched" or "not_found".
func (m *Metrics) ObserveResolve(result string) {
	if m == nil {
		return
	}
	m.resolveTotal.WithLabelValues(result).Inc()
}

// ObserveCache counts one cache tier lookup. It matches the cache package's
// Observe hook signature.
func (m *Metrics) ObserveCache(tier, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(tier, result).Inc()
}
