// Package metrics records pipeline statistics as Prometheus metrics.
//
// Runs are batch jobs, so metrics live in their own registry and are
// pushed to a push gateway when the run finishes instead of being scraped.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "sopnet"

// Recorder holds the metrics of one run.
type Recorder struct {
	registry *prometheus.Registry

	// StageDuration measures each pipeline stage.
	// Labels: stage
	StageDuration *prometheus.HistogramVec

	// StageErrors counts failed stages.
	// Labels: stage
	StageErrors *prometheus.CounterVec

	// Entities counts what each stage produced.
	// Labels: kind (sections, slices, ends, continuations, branches,
	// variables, constraints, neurons)
	Entities *prometheus.CounterVec

	// Objective is the objective value of the last solution.
	Objective prometheus.Gauge

	// VariationOfInformation holds the split and merge parts of the last
	// evaluation. Labels: part
	VariationOfInformation *prometheus.GaugeVec
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		StageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_errors_total",
				Help:      "Number of failed pipeline stages",
			},
			[]string{"stage"},
		),
		Entities: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_total",
				Help:      "Number of entities produced, by kind",
			},
			[]string{"kind"},
		),
		Objective: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "objective_value",
				Help:      "Objective value of the last solution",
			},
		),
		VariationOfInformation: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "variation_of_information_bits",
				Help:      "Variation of information against ground truth",
			},
			[]string{"part"},
		),
	}
}

// Registry exposes the registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Stage starts timing a stage. The returned function stops the timer and
// records err, if any.
func (r *Recorder) Stage(stage string) func(err error) {
	if r == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		if err != nil {
			r.StageErrors.WithLabelValues(stage).Inc()
		}
	}
}

// Count adds n entities of a kind.
func (r *Recorder) Count(kind string, n int) {
	if r == nil {
		return
	}
	r.Entities.WithLabelValues(kind).Add(float64(n))
}

// SetObjective records the objective value of a solution.
func (r *Recorder) SetObjective(v float64) {
	if r == nil {
		return
	}
	r.Objective.Set(v)
}

// SetVariationOfInformation records an evaluation result.
func (r *Recorder) SetVariationOfInformation(split, merge float64) {
	if r == nil {
		return
	}
	r.VariationOfInformation.WithLabelValues("split").Set(split)
	r.VariationOfInformation.WithLabelValues("merge").Set(merge)
}

// Push sends all metrics to a push gateway, grouped by run id.
func (r *Recorder) Push(url, job, runID string) error {
	if r == nil || url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(r.registry).
		Grouping("run", runID).
		Push()
	return errors.Wrap(err, "push metrics")
}
