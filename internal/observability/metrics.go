package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/tracecheck/model"
)

// AnalysisCollector bundles Prometheus metrics for trace analysis runs and
// provides helpers to expose them over HTTP or dump them to a textfile.
type AnalysisCollector struct {
	gatherer prometheus.Gatherer

	RuleEvaluations      *prometheus.CounterVec
	Diagnostics          *prometheus.CounterVec
	ConformanceViolation prometheus.Counter
	PhaseDurations       *prometheus.HistogramVec
	TraceEvents          prometheus.Gauge
}

// NewAnalysisCollector registers analysis metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewAnalysisCollector(reg prometheus.Registerer) (*AnalysisCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evaluations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracecheck_rule_evaluations_total",
		Help: "Number of rule applications to trace events, labeled by rule.",
	}, []string{"rule"}), "tracecheck_rule_evaluations_total")
	if err != nil {
		return nil, err
	}

	diagnostics, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracecheck_diagnostics_total",
		Help: "Diagnostics emitted, labeled by producing rule and severity.",
	}, []string{"source", "severity"}), "tracecheck_diagnostics_total")
	if err != nil {
		return nil, err
	}

	violations, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracecheck_conformance_violations_total",
		Help: "Slot conformance violations found.",
	}), "tracecheck_conformance_violations_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracecheck_analysis_duration_seconds",
		Help:    "Duration of analysis phases in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"phase"}), "tracecheck_analysis_duration_seconds")
	if err != nil {
		return nil, err
	}

	events, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracecheck_trace_events",
		Help: "Number of events in the most recently analysed trace.",
	}), "tracecheck_trace_events")
	if err != nil {
		return nil, err
	}

	return &AnalysisCollector{
		gatherer:             gatherer,
		RuleEvaluations:      evaluations,
		Diagnostics:          diagnostics,
		ConformanceViolation: violations,
		PhaseDurations:       durations,
		TraceEvents:          events,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *AnalysisCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *AnalysisCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the current metrics in the node_exporter textfile
// format, for batch runs that exit before anything can scrape them.
func (c *AnalysisCollector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// ObserveRuleEvaluation counts one application of rule to an event.
func (c *AnalysisCollector) ObserveRuleEvaluation(rule string) {
	if c == nil || c.RuleEvaluations == nil {
		return
	}
	c.RuleEvaluations.WithLabelValues(rule).Inc()
}

// ObserveDiagnostic counts an emitted diagnostic.
func (c *AnalysisCollector) ObserveDiagnostic(d model.Diagnostic) {
	if c == nil || c.Diagnostics == nil {
		return
	}
	c.Diagnostics.WithLabelValues(d.Source, d.Severity.String()).Inc()
}

// AddViolations records conformance violations.
func (c *AnalysisCollector) AddViolations(n int) {
	if c == nil || c.ConformanceViolation == nil || n <= 0 {
		return
	}
	c.ConformanceViolation.Add(float64(n))
}

// ObservePhase records how long an analysis phase took.
func (c *AnalysisCollector) ObservePhase(phase string, d time.Duration) {
	if c == nil || c.PhaseDurations == nil {
		return
	}
	c.PhaseDurations.WithLabelValues(phase).Observe(d.Seconds())
}

// SetTraceEvents updates the trace size gauge.
func (c *AnalysisCollector) SetTraceEvents(n int) {
	if c == nil || c.TraceEvents == nil {
		return
	}
	c.TraceEvents.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
