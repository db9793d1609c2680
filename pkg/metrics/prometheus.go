package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scoresTotal      *prometheus.CounterVec
	simulationsTotal *prometheus.CounterVec
	outcomesTotal    *prometheus.CounterVec
	activations      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	outcomeBuffer    prometheus.Gauge
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		scoresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incluscore_scores_total",
				Help: "Total number of scores computed",
			},
			[]string{"trigger", "risk"},
		),
		simulationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incluscore_simulations_total",
				Help: "Total number of what-if simulations",
			},
			[]string{"mode"},
		),
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incluscore_outcomes_total",
				Help: "Total number of labeled outcomes processed",
			},
			[]string{"status"},
		),
		activations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incluscore_model_activations_total",
				Help: "Total number of model version activations",
			},
			[]string{"version"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incluscore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		outcomeBuffer: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "incluscore_outcome_buffer_size",
				Help: "Labeled outcomes awaiting incorporation into the model",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "incluscore_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordScore records one computed score.
func (r *Recorder) RecordScore(trigger, risk string) {
	r.scoresTotal.WithLabelValues(trigger, risk).Inc()
}

// RecordSimulation records one simulation, split by model-backed vs degraded mode.
func (r *Recorder) RecordSimulation(degraded bool) {
	mode := "model"
	if degraded {
		mode = "degraded"
	}
	r.simulationsTotal.WithLabelValues(mode).Inc()
}

// RecordOutcome records one processed outcome by status.
func (r *Recorder) RecordOutcome(status string) {
	r.outcomesTotal.WithLabelValues(status).Inc()
}

// RecordModelActivation records a version activation.
func (r *Recorder) RecordModelActivation(versionID string) {
	r.activations.WithLabelValues(versionID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetOutcomeBufferSize records the training buffer depth.
func (r *Recorder) SetOutcomeBufferSize(n int) {
	r.outcomeBuffer.Set(float64(n))
}
