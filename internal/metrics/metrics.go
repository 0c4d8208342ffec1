// Package metrics holds the Prometheus collectors for the extraction pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canteen"

// OutcomeOK is the extraction outcome label for a successful run; failures use the error kind.
const OutcomeOK = "ok"

type Metrics struct {
	extractions     *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	generationSteps *prometheus.HistogramVec
	generationTime  *prometheus.HistogramVec
	jobs            *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Receipt extractions by backend and outcome.",
		}, []string{"backend", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_seconds",
			Help:      "Latency of a single inference backend call.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 45, 90},
		}, []string{"backend"}),
		generationSteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "steps",
			Help:      "Decode steps per on-device generation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"reason"}),
		generationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "seconds",
			Help:      "Wall time per on-device generation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"reason"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Batch scan jobs by status (QUEUED on enqueue, then LLM_OK or FAILED).",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.extractions, m.backendLatency, m.generationSteps, m.generationTime, m.jobs)
	}
	return m
}

func (m *Metrics) ObserveExtraction(backend, outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) ObserveBackend(backend string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// ObserveGeneration satisfies generation.Observer.
func (m *Metrics) ObserveGeneration(reason string, steps int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generationSteps.WithLabelValues(reason).Observe(float64(steps))
	m.generationTime.WithLabelValues(reason).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
