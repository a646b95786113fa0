// Package metrics exposes the Prometheus instruments of the generation pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowmaker"

// Metrics groups every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// attempts counts generation attempts. Labels: outcome (accepted, rejected, failed)
	attempts *prometheus.CounterVec

	// qualityScore tracks the total score of every scored attempt.
	qualityScore prometheus.Histogram

	// stageDuration measures pipeline stages. Labels: stage
	stageDuration *prometheus.HistogramVec

	// retrievalFailures counts failed retrieval stages. Labels: stage
	retrievalFailures *prometheus.CounterVec

	// sessions counts conversation lifecycle events. Labels: event
	sessions *prometheus.CounterVec
}

// New registers the instruments on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Generation attempts by outcome",
		}, []string{"outcome"}),
		qualityScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "quality_score",
			Help:      "Quality score of scored generation attempts",
			Buckets:   []float64{20, 40, 50, 60, 70, 80, 85, 90, 95, 100},
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"stage"}),
		retrievalFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "failures_total",
			Help:      "Retrieval stages that failed and were treated as empty",
		}, []string{"stage"}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Conversation lifecycle events",
		}, []string{"event"}),
	}
}

// Registry is the gatherer served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}

	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Quality(score int) {
	if m == nil {
		return
	}

	m.qualityScore.Observe(float64(score))
}

func (m *Metrics) Stage(stage string, d time.Duration) {
	if m == nil {
		return
	}

	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RetrievalFailure(stage string) {
	if m == nil {
		return
	}

	m.retrievalFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}

	m.sessions.WithLabelValues(event).Inc()
}
