// Package metrics records run statistics in a Prometheus registry that can
// be written to a textfile for a node exporter to pick up.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "unitrun"

// Result labels.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Build steps.
const (
	StepExtract = "extract"
	StepCompile = "compile"
)

// Metrics holds the collectors for one run.
type Metrics struct {
	registry *prometheus.Registry

	testsTotal     *prometheus.CounterVec
	buildFailures  *prometheus.CounterVec
	testDuration   *prometheus.HistogramVec
	runInterrupted prometheus.Gauge
	runSuccess     prometheus.Gauge
	runInfo        *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		testsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_total",
			Help:      "Number of executed tests by kind and result",
		}, []string{"kind", "result"}),
		buildFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "build_failures_total",
			Help:      "Number of failed extraction or compilation steps",
		}, []string{"step"}),
		testDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Wall time of each test including its build steps",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"kind"}),
		runInterrupted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_interrupted",
			Help:      "1 if the run was interrupted",
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_success",
			Help:      "1 if every executed test passed and the run was not interrupted",
		}),
		runInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_info",
			Help:      "Identifies the run the other series belong to",
		}, []string{"run_id"}),
	}

	m.registry.MustRegister(
		m.testsTotal,
		m.buildFailures,
		m.testDuration,
		m.runInterrupted,
		m.runSuccess,
		m.runInfo,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun marks the start of the run identified by runID.
func (m *Metrics) RecordRun(runID string) {
	m.runInfo.WithLabelValues(runID).Set(1)
}

// RecordTest counts one executed test.
func (m *Metrics) RecordTest(kind string, passed bool, d time.Duration) {
	result := ResultFail
	if passed {
		result = ResultPass
	}
	m.testsTotal.WithLabelValues(kind, result).Inc()
	m.testDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordBuildFailure counts a failed build step.
func (m *Metrics) RecordBuildFailure(step string) {
	m.buildFailures.WithLabelValues(step).Inc()
}

// RecordOutcome sets the final run gauges.
func (m *Metrics) RecordOutcome(success, interrupted bool) {
	m.runSuccess.Set(boolToFloat(success))
	m.runInterrupted.Set(boolToFloat(interrupted))
}

// WriteTextfile writes every collected series to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
