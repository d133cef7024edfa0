// Package metrics provides Prometheus metrics for the scribe pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	NotesProcessed        prometheus.Counter
	NotesFailed           prometheus.Counter
	NotesFlagged          prometheus.Counter
	NotesRejected         prometheus.Counter
	ProcessingDuration    prometheus.Histogram
	ExtractionDuration    prometheus.Histogram
	RedactionsTotal       *prometheus.CounterVec
	GateDecisions         *prometheus.CounterVec
	ValidationFailures    prometheus.Counter
	ActiveTransactions    prometheus.Gauge
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		NotesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notes_processed_total",
			Help: "Total clinical notes processed end to end",
		}),
		NotesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notes_failed_total",
			Help: "Total notes that failed with an internal or transient error",
		}),
		NotesFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notes_flagged_total",
			Help: "Total notes flagged for human review",
		}),
		NotesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notes_rejected_total",
			Help: "Total notes rejected before reaching the gate",
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "note_processing_duration_seconds",
			Help:    "End-to-end note processing duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "entity_extraction_duration_seconds",
			Help:    "Entity extraction call duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		RedactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phi_redactions_total",
			Help: "Total PHI spans masked, by category",
		}, []string{"category"}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Confidence gate decisions, by resulting state",
		}, []string{"state"}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bundle_validation_failures_total",
			Help: "Total bundles that failed validation",
		}),
		ActiveTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transactions_active",
			Help: "Transactions currently in flight",
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.NotesProcessed,
		m.NotesFailed,
		m.NotesFlagged,
		m.NotesRejected,
		m.ProcessingDuration,
		m.ExtractionDuration,
		m.RedactionsTotal,
		m.GateDecisions,
		m.ValidationFailures,
		m.ActiveTransactions,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
