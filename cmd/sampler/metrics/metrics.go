// Package metrics provides Prometheus instrumentation for the sampler.
//
// Metrics exposed:
//   - dwisc_rounds_total{outcome}: rounds by outcome (success, retry, fatal)
//   - dwisc_calls_total: solver calls awaited
//   - dwisc_call_wait_seconds: time spent awaiting each call
//   - dwisc_reads_collected_total: reads folded into the aggregate
//   - dwisc_round_retries: consecutive failed rounds of the current run
//   - dwisc_errors_total{component,reason}: errors by component and reason
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sampler's collectors. It satisfies scheduler.Metrics.
type Metrics struct {
	RoundsTotal  *prometheus.CounterVec
	CallsTotal   prometheus.Counter
	CallWait     prometheus.Histogram
	ReadsTotal   prometheus.Counter
	RoundRetries prometheus.Gauge
	ErrorsTotal  *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default
// registerer served on /metrics.
func New(solver string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	labels := prometheus.Labels{"solver": solver}

	return &Metrics{
		RoundsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "dwisc_rounds_total",
			Help:        "Collection rounds by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),

		CallsTotal: f.NewCounter(prometheus.CounterOpts{
			Name:        "dwisc_calls_total",
			Help:        "Solver calls awaited",
			ConstLabels: labels,
		}),

		CallWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "dwisc_call_wait_seconds",
			Help:        "Time spent awaiting a solver call's answer",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s .. ~27m
		}),

		ReadsTotal: f.NewCounter(prometheus.CounterOpts{
			Name:        "dwisc_reads_collected_total",
			Help:        "Reads folded into the aggregate",
			ConstLabels: labels,
		}),

		RoundRetries: f.NewGauge(prometheus.GaugeOpts{
			Name:        "dwisc_round_retries",
			Help:        "Consecutive failed rounds of the current run",
			ConstLabels: labels,
		}),

		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "dwisc_errors_total",
			Help:        "Errors by component and reason",
			ConstLabels: labels,
		}, []string{"component", "reason"}),
	}
}

func (m *Metrics) RecordRound(outcome string) {
	m.RoundsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCall(wait time.Duration) {
	m.CallsTotal.Inc()
	m.CallWait.Observe(wait.Seconds())
}

func (m *Metrics) RecordReads(n int) {
	m.ReadsTotal.Add(float64(n))
}

func (m *Metrics) SetRetries(n int) {
	m.RoundRetries.Set(float64(n))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
