package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the engine metrics. A nil *Collector records nothing.
type Collector struct {
	CompilationsTotal    *prometheus.CounterVec
	CompileDuration      prometheus.Histogram
	CalibrationsTotal    prometheus.Counter
	CalibrationDuration  prometheus.Histogram
	EvidenceUpdatesTotal *prometheus.CounterVec
	MaxCliqueTableSize   prometheus.Gauge
	CliquesTotal         prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// gets a fresh registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		CompilationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beliefnet_compilations_total",
				Help: "Total number of join tree compilations",
			},
			[]string{"status"},
		),
		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beliefnet_compile_duration_seconds",
				Help:    "Join tree compilation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		CalibrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beliefnet_calibrations_total",
				Help: "Total number of message passes",
			},
		),
		CalibrationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beliefnet_calibration_duration_seconds",
				Help:    "Message pass duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		EvidenceUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beliefnet_evidence_updates_total",
				Help: "Total number of evidence changes",
			},
			[]string{"op"}, // enter, retract, retract_all
		),
		MaxCliqueTableSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beliefnet_max_clique_table_size",
				Help: "Largest clique table of the current join tree",
			},
		),
		CliquesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beliefnet_cliques_total",
				Help: "Number of cliques in the current join tree",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		c.CompilationsTotal,
		c.CompileDuration,
		c.CalibrationsTotal,
		c.CalibrationDuration,
		c.EvidenceUpdatesTotal,
		c.MaxCliqueTableSize,
		c.CliquesTotal,
	)
	return c
}

// Registry returns the underlying Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordCompile records one compilation. cliques and maxTable describe the
// resulting tree and are ignored on failure.
func (c *Collector) RecordCompile(duration time.Duration, cliques, maxTable int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.CompilationsTotal.WithLabelValues("error").Inc()
		return
	}
	c.CompilationsTotal.WithLabelValues("ok").Inc()
	c.CompileDuration.Observe(duration.Seconds())
	c.CliquesTotal.Set(float64(cliques))
	c.MaxCliqueTableSize.Set(float64(maxTable))
}

// RecordCalibration records one message pass.
func (c *Collector) RecordCalibration(duration time.Duration) {
	if c == nil {
		return
	}
	c.CalibrationsTotal.Inc()
	c.CalibrationDuration.Observe(duration.Seconds())
}

// RecordEvidence counts an evidence change.
func (c *Collector) RecordEvidence(op string) {
	if c == nil {
		return
	}
	c.EvidenceUpdatesTotal.WithLabelValues(op).Inc()
}
