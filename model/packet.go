package model

import "bytes"

// Packet is the decoded AirTight header plus payload carried by an event.
// The analyzer only compares these fields, it never interprets them.
type Packet struct {
	Priority       uint8
	Criticality    uint8
	FlowID         uint8
	Source         uint8
	Destination    uint8
	HopSource      uint8
	HopDestination uint8
	CValue         uint8
	SequenceNumber uint8
	Data           []byte
}

// PacketField selects a packet attribute for matching.
type PacketField uint16

const (
	FieldPriority PacketField = 1 << iota
	FieldCriticality
	FieldFlowID
	FieldSource
	FieldDestination
	FieldHopSource
	FieldHopDestination
	FieldCValue
	FieldSequenceNumber
	FieldData
)

// FlowFields identifies a packet within a flow regardless of hop or sequence.
const FlowFields = FieldPriority | FieldCriticality | FieldFlowID | FieldSource | FieldDestination | FieldData

// SequencedFlowFields additionally pins the sequence number.
const SequencedFlowFields = FlowFields | FieldSequenceNumber

// Matches reports whether every field selected in fields is equal in p and
// other.
func (p Packet) Matches(other Packet, fields PacketField) bool {
	if fields&FieldPriority != 0 && p.Priority != other.Priority {
		return false
	}
	if fields&FieldCriticality != 0 && p.Criticality != other.Criticality {
		return false
	}
	if fields&FieldFlowID != 0 && p.FlowID != other.FlowID {
		return false
	}
	if fields&FieldSource != 0 && p.Source != other.Source {
		return false
	}
	if fields&FieldDestination != 0 && p.Destination != other.Destination {
		return false
	}
	if fields&FieldHopSource != 0 && p.HopSource != other.HopSource {
		return false
	}
	if fields&FieldHopDestination != 0 && p.HopDestination != other.HopDestination {
		return false
	}
	if fields&FieldCValue != 0 && p.CValue != other.CValue {
		return false
	}
	if fields&FieldSequenceNumber != 0 && p.SequenceNumber != other.SequenceNumber {
		return false
	}
	if fields&FieldData != 0 && !bytes.Equal(p.Data, other.Data) {
		return false
	}
	return true
}
