package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gonc"

// Metrics holds the Prometheus collectors of the dispatch loop.
type Metrics struct {
	Records          prometheus.Counter
	SkippedLines     prometheus.Counter
	MalformedRecords prometheus.Counter
	FlowsCreated     prometheus.Counter
	Collisions       prometheus.Counter
	CounterResets    prometheus.Counter
	ClassifyCycles   prometheus.Counter
	SkippedCycles    prometheus.Counter
	TrainingRows     prometheus.Counter
	Flows            prometheus.Gauge
	ClassifyLatency  prometheus.Histogram
	Classifications  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves them
// unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Telemetry records applied to the flow table.",
		}),
		SkippedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_lines_total",
			Help:      "Upstream lines without the telemetry marker.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Telemetry lines dropped because they could not be decoded.",
		}),
		FlowsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_created_total",
			Help:      "Flows created in the flow table.",
		}),
		Collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_identity_collisions_total",
			Help:      "Records whose key matched a flow with a different identity.",
		}),
		CounterResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_resets_total",
			Help:      "Updates where a cumulative counter went backwards.",
		}),
		ClassifyCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classify_cycles_total",
			Help:      "Completed classification and reporting cycles.",
		}),
		SkippedCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classify_cycles_skipped_total",
			Help:      "Classification cycles skipped because the classifier was unavailable.",
		}),
		TrainingRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_rows_total",
			Help:      "Training rows written.",
		}),
		Flows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flows",
			Help:      "Flows currently held in the flow table.",
		}),
		ClassifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classify_cycle_seconds",
			Help:      "Duration of a classification cycle over all flows.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Flow classifications by traffic type.",
		}, []string{"traffic_type"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Records, m.SkippedLines, m.MalformedRecords, m.FlowsCreated, m.Collisions,
			m.CounterResets, m.ClassifyCycles, m.SkippedCycles, m.TrainingRows, m.Flows,
			m.ClassifyLatency, m.Classifications,
		)
	}
	return m
}
