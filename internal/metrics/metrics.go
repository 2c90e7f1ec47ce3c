package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics collects run telemetry: provider call attempts and latency,
// chunk outcomes, and finding counts by severity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	providerAttempts *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	chunks           *prometheus.CounterVec
	findings         *prometheus.CounterVec
}

// New creates a Metrics collector backed by its own registry, keeping
// run telemetry isolated from anything else in the process.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		providerAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmreviewer",
			Name:      "provider_attempts_total",
			Help:      "Provider call attempts by outcome (success, retryable, terminal).",
		}, []string{"provider", "outcome"}),
		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmreviewer",
			Name:      "provider_latency_seconds",
			Help:      "Provider call latency per attempt.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmreviewer",
			Name:      "chunks_total",
			Help:      "Reviewed chunks by final status (success, partial, failed).",
		}, []string{"status"}),
		findings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmreviewer",
			Name:      "findings_total",
			Help:      "Reported findings by severity.",
		}, []string{"severity"}),
	}
}

// ObserveAttempt records one provider call attempt and its latency.
// Outcome is "success", "retryable", or "terminal".
func (m *Metrics) ObserveAttempt(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// CountChunk records a chunk's final status.
func (m *Metrics) CountChunk(status string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(status).Inc()
}

// CountFinding records a reported finding's severity.
func (m *Metrics) CountFinding(severity string) {
	if m == nil {
		return
	}
	m.findings.WithLabelValues(severity).Inc()
}

// Push delivers the collected metrics to a Prometheus pushgateway. A
// review run finishes before any scraper would come by, so delivery
// happens once at the end of the run.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}
