package observability

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/tracecheck/model"
)

func TestCollectorRecordsDiagnosticsAndEvaluations(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAnalysisCollector(reg)
	if err != nil {
		t.Fatalf("NewAnalysisCollector: %v", err)
	}

	collector.ObserveRuleEvaluation("receive-provenance")
	collector.ObserveRuleEvaluation("receive-provenance")
	collector.ObserveDiagnostic(model.Diagnostic{Source: "receive-provenance", Severity: model.SeverityWarning})

	if got := testutil.ToFloat64(collector.RuleEvaluations.WithLabelValues("receive-provenance")); got != 2 {
		t.Fatalf("tracecheck_rule_evaluations_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Diagnostics.WithLabelValues("receive-provenance", "WARNING")); got != 1 {
		t.Fatalf("tracecheck_diagnostics_total = %v, want 1", got)
	}

	collector.ObservePhase("rules", 15*time.Millisecond)
	if count := histogramSampleCount(t, reg, "tracecheck_analysis_duration_seconds", map[string]string{"phase": "rules"}); count != 1 {
		t.Fatalf("tracecheck_analysis_duration_seconds sample_count = %d, want 1", count)
	}

	collector.AddViolations(0)
	collector.AddViolations(2)
	if got := testutil.ToFloat64(collector.ConformanceViolation); got != 2 {
		t.Fatalf("tracecheck_conformance_violations_total = %v, want 2", got)
	}
}

func TestCollectorReregistrationReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAnalysisCollector(reg)
	if err != nil {
		t.Fatalf("first NewAnalysisCollector: %v", err)
	}
	second, err := NewAnalysisCollector(reg)
	if err != nil {
		t.Fatalf("second NewAnalysisCollector: %v", err)
	}
	first.ObserveRuleEvaluation("r")
	if got := testutil.ToFloat64(second.RuleEvaluations.WithLabelValues("r")); got != 1 {
		t.Fatalf("collectors should share the registered vector, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *AnalysisCollector
	c.ObserveRuleEvaluation("r")
	c.ObserveDiagnostic(model.Diagnostic{})
	c.AddViolations(3)
	c.ObservePhase("rules", time.Second)
	c.SetTraceEvents(4)
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil WriteTextfile: %v", err)
	}
}

func TestMetricsHandlerAndTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAnalysisCollector(reg)
	if err != nil {
		t.Fatalf("NewAnalysisCollector: %v", err)
	}
	collector.SetTraceEvents(42)
	collector.ObserveRuleEvaluation("enqueue-justification")
	collector.ObserveDiagnostic(model.Diagnostic{Source: "enqueue-justification", Severity: model.SeverityError})
	collector.ObservePhase("conformance", time.Millisecond)
	collector.AddViolations(1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"tracecheck_rule_evaluations_total",
		"tracecheck_diagnostics_total",
		"tracecheck_conformance_violations_total",
		"tracecheck_analysis_duration_seconds",
		"tracecheck_trace_events 42",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}

	path := filepath.Join(t.TempDir(), "tracecheck.prom")
	if err := collector.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "tracecheck_trace_events 42") {
		t.Fatalf("textfile missing gauge value:\n%s", data)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
