// Package core holds the trace analysis engine: slot conformance checking,
// the causality rules and the transmit spacing statistic. Everything here is
// a pure read over a kb.EventLog and kb.SlotSchedule.
package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// DefaultSlotLength is the AirTight slot length in trace time units.
const DefaultSlotLength = 100.0

// ProtocolConstants are protocol-level values supplied by the host.
type ProtocolConstants struct {
	SlotLength float64
}

// DefaultProtocolConstants returns the AirTight defaults.
func DefaultProtocolConstants() ProtocolConstants {
	return ProtocolConstants{SlotLength: DefaultSlotLength}
}

// Validate rejects constants the rules cannot work with.
func (p ProtocolConstants) Validate() error {
	if !(p.SlotLength > 0) {
		return fmt.Errorf("slot length must be positive, got %v", p.SlotLength)
	}
	return nil
}

var errNilInput = errors.New("nil analysis input")

// ValidateInputs checks that every node-attributed event refers to a node
// the schedule knows about. Unknown nodes are reported instead of skipped.
func ValidateInputs(log *kb.EventLog, schedule *kb.SlotSchedule) error {
	if log == nil || schedule == nil {
		return errNilInput
	}
	known := make(map[model.NodeID]bool)
	for _, id := range schedule.Nodes() {
		known[id] = true
	}
	events := log.Events()
	for i := range events {
		ev := &events[i]
		if !ev.HasNode() || known[ev.NodeID] {
			continue
		}
		return fmt.Errorf("event %s (%s at %v): %w: %d", ev.ID, ev.Kind, ev.Time, kb.ErrUnknownNode, ev.NodeID)
	}
	return nil
}
