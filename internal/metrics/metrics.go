// Package metrics exposes the service's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion run outcomes.
const (
	OutcomeCommitted   = "committed"
	OutcomeNotModified = "not_modified"
	OutcomeFailed      = "failed"
	OutcomeInFlight    = "in_flight"
	OutcomeBootstrap   = "bootstrap"
)

// Metrics holds all collectors. A nil *Metrics records nothing.
type Metrics struct {
	ingestRuns      *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
	downloadBytes   prometheus.Counter
	mirrorFailures  *prometheus.CounterVec
	decodeSkipped   prometheus.Counter
	geoDomains      prometheus.Gauge
	policyCompiles  prometheus.Counter
	policyDomains   prometheus.Gauge
	policyActive    prometheus.Gauge
	authChallenges  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	settingsReloads *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		ingestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "georoute_ingest_runs_total",
				Help: "Domain list ingestion runs by outcome",
			},
			[]string{"outcome"},
		),
		ingestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "georoute_ingest_duration_seconds",
				Help:    "Duration of ingestion runs that reached a mirror",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		downloadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "georoute_download_bytes_total",
				Help: "Bytes received from mirrors",
			},
		),
		mirrorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "georoute_mirror_failures_total",
				Help: "Failed fetch attempts per mirror",
			},
			[]string{"mirror"},
		),
		decodeSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "georoute_decode_skipped_entries_total",
				Help: "Malformed list entries skipped while decoding",
			},
		),
		geoDomains: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "georoute_geo_domains",
				Help: "Domains in the last committed geo set",
			},
		),
		policyCompiles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "georoute_policy_compiles_total",
				Help: "Policy compilations",
			},
		),
		policyDomains: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "georoute_policy_domains",
				Help: "Domains in the active merged set",
			},
		),
		policyActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "georoute_policy_active",
				Help: "1 when the compiled policy can route through the proxy",
			},
		),
		authChallenges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "georoute_auth_challenges_total",
				Help: "Authentication challenges by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "georoute_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "georoute_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		settingsReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "georoute_settings_reloads_total",
				Help: "Settings file reloads by status",
			},
			[]string{"status"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.ingestRuns,
		m.ingestDuration,
		m.downloadBytes,
		m.mirrorFailures,
		m.decodeSkipped,
		m.geoDomains,
		m.policyCompiles,
		m.policyDomains,
		m.policyActive,
		m.authChallenges,
		m.httpRequests,
		m.httpDuration,
		m.settingsReloads,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// RecordIngest records the outcome of one ingestion run
func (m *Metrics) RecordIngest(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ingestRuns.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.ingestDuration.Observe(duration.Seconds())
	}
}

// AddDownloadedBytes counts bytes received from a mirror
func (m *Metrics) AddDownloadedBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.downloadBytes.Add(float64(n))
}

// RecordMirrorFailure counts a failed attempt against a mirror
func (m *Metrics) RecordMirrorFailure(mirror string) {
	if m == nil {
		return
	}
	m.mirrorFailures.WithLabelValues(mirror).Inc()
}

// RecordCommit records a committed geo set
func (m *Metrics) RecordCommit(domains, skipped int) {
	if m == nil {
		return
	}
	m.geoDomains.Set(float64(domains))
	m.decodeSkipped.Add(float64(skipped))
}

// RecordCompile records a policy compilation
func (m *Metrics) RecordCompile(domains int, active bool) {
	if m == nil {
		return
	}
	m.policyCompiles.Inc()
	m.policyDomains.Set(float64(domains))
	if active {
		m.policyActive.Set(1)
	} else {
		m.policyActive.Set(0)
	}
}

// RecordChallenge records an authentication challenge result
func (m *Metrics) RecordChallenge(result string) {
	if m == nil {
		return
	}
	m.authChallenges.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusCode).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSettingsReload records a settings file reload attempt
func (m *Metrics) RecordSettingsReload(status string) {
	if m == nil {
		return
	}
	m.settingsReloads.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
