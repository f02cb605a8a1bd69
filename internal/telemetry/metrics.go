// Package telemetry exposes Prometheus metrics for the search pipeline and
// ingestion path.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
// A nil *Metrics is valid: every method is a no-op, so components can treat
// telemetry as optional.
type Metrics struct {
	searchesTotal  prometheus.Counter
	emptyResponses prometheus.Counter
	stageDuration  *prometheus.HistogramVec
	degradations   *prometheus.CounterVec
	ingestOutcomes *prometheus.CounterVec
}

// New creates and registers the SmartDoc metric set.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartdoc",
			Name:      "searches_total",
			Help:      "Total number of search requests.",
		}),
		emptyResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartdoc",
			Name:      "empty_responses_total",
			Help:      "Searches that found no relevant documents.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smartdoc",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"stage"}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartdoc",
			Name:      "degradations_total",
			Help:      "Stages that degraded due to collaborator failures.",
		}, []string{"collaborator"}),
		ingestOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartdoc",
			Name:      "ingest_documents_total",
			Help:      "Ingested documents by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.searchesTotal, m.emptyResponses, m.stageDuration,
		m.degradations, m.ingestOutcomes)
	return m
}

// RecordSearch counts a search request.
func (m *Metrics) RecordSearch() {
	if m == nil {
		return
	}
	m.searchesTotal.Inc()
}

// RecordEmpty counts a "no relevant documents" response.
func (m *Metrics) RecordEmpty() {
	if m == nil {
		return
	}
	m.emptyResponses.Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordDegradation counts a collaborator failure that was absorbed.
func (m *Metrics) RecordDegradation(collaborator string) {
	if m == nil {
		return
	}
	m.degradations.WithLabelValues(collaborator).Inc()
}

// RecordIngest counts an ingestion outcome: "saved", "duplicate", "failed".
func (m *Metrics) RecordIngest(outcome string) {
	if m == nil {
		return
	}
	m.ingestOutcomes.WithLabelValues(outcome).Inc()
}
