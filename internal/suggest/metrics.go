package suggest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the suggester's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	Requests          *prometheus.CounterVec
	Latency           prometheus.Histogram
	PartitionFailures *prometheus.CounterVec
	TermsScored       prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suggest_requests_total",
				Help: "Suggestion requests by outcome (hit, empty, rewrite_error).",
			},
			[]string{"outcome"},
		),
		Latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "suggest_latency_seconds",
				Help:    "Suggestion request latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		PartitionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suggest_partition_failures_total",
				Help: "Partitions that contributed no suggestions because of an error, by kind (constraint, postings).",
			},
			[]string{"kind"},
		),
		TermsScored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "suggest_terms_scored_total",
				Help: "Candidate terms scored across all partitions.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Latency, m.PartitionFailures, m.TermsScored)
	}
	return m
}

func (m *Metrics) observe(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.Latency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) partitionFailed(kind string) {
	if m == nil {
		return
	}
	m.PartitionFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) termsScored(n uint64) {
	if m == nil {
		return
	}
	m.TermsScored.Add(float64(n))
}
