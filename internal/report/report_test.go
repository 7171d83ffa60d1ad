package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/signalsfoundry/tracecheck/core"
	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

func sampleResult(t *testing.T) Result {
	t.Helper()
	log, err := kb.NewEventLog([]model.Event{
		{ID: "aaaaaaaaaaaaaaaa", Time: 5, Kind: model.EventEnqueue, NodeID: 1, SlotID: model.NoSlot},
		{ID: "bbbbbbbbbbbbbbbb", Time: 9, Kind: model.EventReceive, NodeID: 2, SlotID: 3},
	})
	if err != nil {
		t.Fatalf("NewEventLog: %v", err)
	}
	sink := core.NewDiagnosticsSink()
	sink.Add(model.Diagnostic{TargetEventID: "bbbbbbbbbbbbbbbb", Severity: model.SeverityWarning, Message: core.MsgTransmitAfterReceive, Source: core.RuleReceiveProvenance, Related: []string{"cccccccccccccccc"}})
	sink.Add(model.Diagnostic{TargetEventID: "aaaaaaaaaaaaaaaa", Severity: model.SeverityError, Message: core.MsgUntriggeredEnqueue, Source: core.RuleEnqueueJustification})

	conf := Conformance{Mode: core.ConformanceAll, Violations: []core.Violation{{
		EventID: "bbbbbbbbbbbbbbbb", Time: 9, Kind: model.EventReceive, NodeID: 2, SlotID: 3,
		Expected: model.SlotListen, Actual: model.SlotIdle,
	}}}
	spacing := []core.NodeSpacing{{NodeID: 1, Transmits: 3, Mean: 15, Enough: true}, {NodeID: 2, Transmits: 1}}

	r := Build(log, sink, conf, spacing)
	r.RunID, r.DataDir, r.SlotLength, r.Rules = "run-1", "/data/trace", 100, core.RuleNames()
	return r
}

func TestBuild(t *testing.T) {
	r := sampleResult(t)
	if r.Summary.Errors != 1 || r.Summary.Warnings != 1 {
		t.Fatalf("unexpected summary %+v", r.Summary)
	}
	if len(r.Findings) != 2 || r.Findings[0].Diagnostic.TargetEventID != "aaaaaaaaaaaaaaaa" {
		t.Fatalf("findings not in trace order: %+v", r.Findings)
	}
	if r.Findings[1].NodeID != 2 || r.Findings[1].SlotID != 3 || r.Findings[1].Kind != model.EventReceive {
		t.Fatalf("finding lacks event context: %+v", r.Findings[1])
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResult(t), TextOptions{}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"tracecheck report  run run-1",
		"Diagnostics (1 errors, 1 warnings)",
		"Error: " + core.MsgUntriggeredEnqueue,
		"Warning: " + core.MsgTransmitAfterReceive,
		"related: cccccccccc",
		"node 2 slot 3",
		"which is a IDLE slot.",
		"mean interval 15",
		"not enough data",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("text report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI escapes when color is off")
	}
}

func TestWriteText_Color(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResult(t), TextOptions{Color: true}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected ANSI escapes when color is on")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sampleResult(t), TextOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	findings := decoded["findings"].([]any)
	first := findings[0].(map[string]any)["diagnostic"].(map[string]any)
	if first["severity"] != "ERROR" || first["source"] != core.RuleEnqueueJustification {
		t.Fatalf("unexpected first finding %v", first)
	}
	if findings[0].(map[string]any)["event"] != "ENQUEUE" {
		t.Fatalf("event kind not rendered as label: %v", findings[0])
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	want := sampleResult(t)
	var buf bytes.Buffer
	if err := Write(&buf, FormatMsgpack, want, TextOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadMsgpack(&buf)
	if err != nil {
		t.Fatalf("ReadMsgpack: %v", err)
	}
	if got.RunID != want.RunID || len(got.Findings) != 2 || got.Summary != want.Summary {
		t.Fatalf("decoded %+v", got)
	}
	if got.Findings[0].Diagnostic.Severity != model.SeverityError || got.Findings[1].Kind != model.EventReceive {
		t.Fatalf("enum fields lost in msgpack: %+v", got.Findings)
	}
	if got.Conformance.Violations[0].Actual != model.SlotIdle {
		t.Fatalf("violation lost: %+v", got.Conformance)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "JSON": FormatJSON, "msgpack": FormatMsgpack} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Fatalf("expected error for yaml")
	}
}
