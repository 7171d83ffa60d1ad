package core

import (
	"testing"

	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// pkt builds a packet for flow with sequence seq carrying data.
func pkt(flow, seq uint8, data string) model.Packet {
	return model.Packet{
		Priority:       1,
		Criticality:    2,
		FlowID:         flow,
		Source:         1,
		Destination:    3,
		SequenceNumber: seq,
		Data:           []byte(data),
	}
}

func ev(id string, t float64, kind model.EventKind, node model.NodeID, slot int, p model.Packet) model.Event {
	return model.Event{ID: id, Time: t, Kind: kind, NodeID: node, SlotID: slot, Packet: p}
}

func mustLog(t *testing.T, events ...model.Event) *kb.EventLog {
	t.Helper()
	log, err := kb.NewEventLog(events)
	if err != nil {
		t.Fatalf("NewEventLog: %v", err)
	}
	return log
}

// wideSchedule gives nodes 1..3 ten transmit slots each.
func wideSchedule() *kb.SlotSchedule {
	actions := make([]model.SlotAction, 10)
	for i := range actions {
		actions[i] = model.SlotTransmit
	}
	return kb.NewSlotSchedule(map[model.NodeID][]model.SlotAction{
		1: actions,
		2: actions,
		3: actions,
	})
}

func runEngine(t *testing.T, log *kb.EventLog, opts ...EngineOption) *DiagnosticsSink {
	t.Helper()
	e, err := NewEngine(log, wideSchedule(), DefaultProtocolConstants(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	sink, err := e.Run(t.Context())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return sink
}
