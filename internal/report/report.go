// Package report renders the outcome of an analysis run as colored text,
// JSON or msgpack.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/signalsfoundry/tracecheck/core"
	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// Format selects a renderer.
type Format string

const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts text, json or msgpack; empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or msgpack)", s)
	}
}

// Finding is a diagnostic together with the event it targets.
type Finding struct {
	Diagnostic model.Diagnostic `json:"diagnostic" msgpack:"diagnostic"`
	Time       float64          `json:"time" msgpack:"time"`
	Kind       model.EventKind  `json:"event" msgpack:"event"`
	NodeID     model.NodeID     `json:"node_id" msgpack:"node_id"`
	SlotID     int              `json:"slot_id" msgpack:"slot_id"`
}

// Conformance summarises the slot conformance scan.
type Conformance struct {
	Mode       core.ConformanceMode `json:"mode" msgpack:"mode"`
	Violations []core.Violation     `json:"violations" msgpack:"violations"`
}

// Summary counts diagnostics by severity.
type Summary struct {
	Errors   int `json:"errors" msgpack:"errors"`
	Warnings int `json:"warnings" msgpack:"warnings"`
	Infos    int `json:"infos" msgpack:"infos"`
}

// Result is the full outcome of one run.
type Result struct {
	RunID       string             `json:"run_id" msgpack:"run_id"`
	DataDir     string             `json:"data_dir" msgpack:"data_dir"`
	Events      int                `json:"events" msgpack:"events"`
	SlotLength  float64            `json:"slot_length" msgpack:"slot_length"`
	Rules       []string           `json:"rules" msgpack:"rules"`
	Summary     Summary            `json:"summary" msgpack:"summary"`
	Findings    []Finding          `json:"findings" msgpack:"findings"`
	Conformance Conformance        `json:"conformance" msgpack:"conformance"`
	Spacing     []core.NodeSpacing `json:"spacing" msgpack:"spacing"`
}

// Build assembles a Result. Findings follow the sink's deterministic order.
func Build(log *kb.EventLog, sink *core.DiagnosticsSink, conf Conformance, spacing []core.NodeSpacing) Result {
	r := Result{
		Events:      log.Len(),
		Conformance: conf,
		Spacing:     spacing,
		Findings:    []Finding{},
	}
	if r.Conformance.Violations == nil {
		r.Conformance.Violations = []core.Violation{}
	}
	for _, d := range sink.Sorted(log) {
		f := Finding{Diagnostic: d, NodeID: model.NoNode, SlotID: model.NoSlot}
		if ev, ok := log.Get(d.TargetEventID); ok {
			f.Time, f.Kind, f.NodeID, f.SlotID = ev.Time, ev.Kind, ev.NodeID, ev.SlotID
		}
		switch d.Severity {
		case model.SeverityError:
			r.Summary.Errors++
		case model.SeverityWarning:
			r.Summary.Warnings++
		default:
			r.Summary.Infos++
		}
		r.Findings = append(r.Findings, f)
	}
	return r
}

// Write renders r in the requested format.
func Write(w io.Writer, format Format, r Result, opts TextOptions) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatMsgpack:
		return WriteMsgpack(w, r)
	default:
		return WriteText(w, r, opts)
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteMsgpack writes r as a single msgpack document.
func WriteMsgpack(w io.Writer, r Result) error {
	return msgpack.NewEncoder(w).Encode(r)
}

// ReadMsgpack decodes a document written by WriteMsgpack.
func ReadMsgpack(rd io.Reader) (Result, error) {
	var r Result
	if err := msgpack.NewDecoder(rd).Decode(&r); err != nil {
		return Result{}, err
	}
	return r, nil
}
