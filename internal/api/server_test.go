package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/tracecheck/core"
	"github.com/signalsfoundry/tracecheck/internal/ingest"
	"github.com/signalsfoundry/tracecheck/internal/observability"
	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

func testDataset(t *testing.T) *ingest.Dataset {
	t.Helper()
	p := model.Packet{Priority: 1, FlowID: 4, Source: 0, Destination: 1, SequenceNumber: 2, Data: []byte{0xab}}
	events := []model.Event{
		{ID: "send", Time: 0, Kind: model.EventSend, NodeID: 0, SlotID: model.NoSlot, Packet: p},
		{ID: "tx1", Time: 10, Kind: model.EventTransmit, NodeID: 0, SlotID: 0, Packet: p},
		{ID: "rx", Time: 12, Kind: model.EventReceive, NodeID: 1, SlotID: 0, Packet: p},
		{ID: "tx2", Time: 30, Kind: model.EventTransmit, NodeID: 0, SlotID: 1, Packet: p},
		{ID: "orphan", Time: 40, Kind: model.EventEnqueue, NodeID: 1, SlotID: model.NoSlot, Packet: model.Packet{FlowID: 9}},
		{ID: "obs", Time: 40, Kind: model.EventObservation, NodeID: model.NoNode, SlotID: model.NoSlot, ShortAddress: "0x2"},
	}
	log, err := kb.NewEventLog(events)
	if err != nil {
		t.Fatalf("NewEventLog: %v", err)
	}
	routes := model.NewRouteGraph()
	routes.AddHop(0, 1, 1)
	return &ingest.Dataset{
		Dir: "mem",
		Log: log,
		Schedule: kb.NewSlotSchedule(map[model.NodeID][]model.SlotAction{
			0: {model.SlotTransmit, model.SlotListen},
			1: {model.SlotListen, model.SlotTransmit},
		}),
		Routes: routes,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	collector, err := observability.NewAnalysisCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewAnalysisCollector: %v", err)
	}
	srv, err := New(t.Context(), testDataset(t), core.DefaultProtocolConstants(), WithCollector(collector), WithWorkers(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec
}

func TestInfoAndSlotTable(t *testing.T) {
	srv := newTestServer(t)

	var info map[string]float64
	if rec := get(t, srv, "/airtight/info.json", &info); rec.Code != http.StatusOK || info["slot_length"] != 100 {
		t.Fatalf("info = %d %v", rec.Code, info)
	}

	var table map[string][]string
	get(t, srv, "/airtight/slot_table.json", &table)
	if len(table) != 2 || table["1"][1] != "TRANSMIT" {
		t.Fatalf("slot table = %v", table)
	}
}

func TestGraph(t *testing.T) {
	srv := newTestServer(t)
	var graph model.GraphExport
	get(t, srv, "/airtight/graph.json", &graph)
	if len(graph.Nodes) != 2 || len(graph.Edges) != 2 {
		t.Fatalf("graph = %+v", graph)
	}
}

func TestLogShapes(t *testing.T) {
	srv := newTestServer(t)

	var linear []map[string]any
	get(t, srv, "/airtight/log.json?shape=linear", &linear)
	if len(linear) != 6 || linear[0]["id"] != "send" || linear[0]["slot_id"] != nil {
		t.Fatalf("linear log = %v", linear)
	}
	packet := linear[1]["packet_data"].(map[string]any)
	if packet["data"] != "ab" || packet["flow_id"].(float64) != 4 {
		t.Fatalf("packet = %v", packet)
	}

	var byTime map[string][]map[string]any
	get(t, srv, "/airtight/log.json", &byTime)
	if len(byTime["40"]) != 2 || len(byTime["10"]) != 1 {
		t.Fatalf("grouped log = %v", byTime)
	}
	if _, ok := byTime["10.0"]; ok {
		t.Fatalf("time keys must use the shortest rendering, got %v", byTime)
	}

	var filtered []map[string]any
	get(t, srv, "/airtight/log.json?shape=linear&type=transmit&range=5,20", &filtered)
	if len(filtered) != 1 || filtered[0]["id"] != "tx1" {
		t.Fatalf("filtered log = %v", filtered)
	}
	get(t, srv, "/airtight/log.json?shape=linear&range=12,30", &filtered)
	if len(filtered) != 2 {
		t.Fatalf("range log = %v", filtered)
	}

	if rec := get(t, srv, "/airtight/log.json?range=5", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad range status = %d", rec.Code)
	}
}

func TestDiagnostics(t *testing.T) {
	srv := newTestServer(t)

	var all []model.Diagnostic
	get(t, srv, "/airtight/diagnostics.json", &all)
	if len(all) != 1 || all[0].TargetEventID != "orphan" || all[0].Severity != model.SeverityError {
		t.Fatalf("diagnostics = %+v", all)
	}

	var none []model.Diagnostic
	get(t, srv, "/airtight/diagnostics.json?event=rx", &none)
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty list for rx, got %v", none)
	}

	if rec := get(t, srv, "/airtight/diagnostics.json?event=missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown event status = %d", rec.Code)
	}
}

func TestConformance(t *testing.T) {
	srv := newTestServer(t)
	var body struct {
		Mode        string           `json:"mode"`
		NoViolation bool             `json:"no_violation"`
		Violations  []core.Violation `json:"violations"`
	}
	get(t, srv, "/airtight/conformance.json?mode=all", &body)
	if body.Mode != "all" || body.NoViolation || len(body.Violations) != 1 || body.Violations[0].EventID != "tx2" {
		t.Fatalf("conformance = %+v", body)
	}
	if rec := get(t, srv, "/airtight/conformance.json?mode=most", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mode status = %d", rec.Code)
	}
}

func TestSpacing(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]any
	get(t, srv, "/airtight/spacing/0", &body)
	if body["mean_interval"].(float64) != 20 {
		t.Fatalf("spacing = %v", body)
	}

	rec := get(t, srv, "/airtight/spacing/1", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not enough data") {
		t.Fatalf("node 1 spacing = %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, srv, "/airtight/spacing/x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad node status = %d", rec.Code)
	}
}

func TestRequestIDAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("request id not echoed: %q", rec.Header().Get("X-Request-ID"))
	}

	rec = get(t, srv, "/healthz", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated request id")
	}

	rec = get(t, srv, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "tracecheck_rule_evaluations_total") {
		t.Fatalf("metrics = %d\n%s", rec.Code, rec.Body.String())
	}
}
