package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	roundsTotal    *prometheus.CounterVec
	feedbackTotal  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastMultiplier prometheus.Gauge
	ruleBias       *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		roundsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crashcast_rounds_total",
				Help: "Total number of prediction events emitted",
			},
			[]string{"source", "category"},
		),
		feedbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crashcast_feedback_total",
				Help: "Total number of feedback samples by outcome",
			},
			[]string{"result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crashcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastMultiplier: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crashcast_last_multiplier",
				Help: "Multiplier of the most recent prediction event",
			},
		),
		ruleBias: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crashcast_rule_bias",
				Help: "Current bias of a rule entry, updated on calibration",
			},
			[]string{"phase"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crashcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRound records one emitted prediction event.
func (r *Recorder) RecordRound(source, category string) {
	r.roundsTotal.WithLabelValues(source, category).Inc()
}

// RecordFeedback records a feedback sample outcome ("accepted", "rejected").
func (r *Recorder) RecordFeedback(result string) {
	r.feedbackTotal.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastMultiplier records the most recent multiplier value.
func (r *Recorder) RecordLastMultiplier(v float64) {
	r.lastMultiplier.Set(v)
}

// RecordRuleBias records the bias of one phase's rule entry.
func (r *Recorder) RecordRuleBias(phase string, bias float64) {
	r.ruleBias.WithLabelValues(phase).Set(bias)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
