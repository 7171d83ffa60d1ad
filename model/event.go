package model

import (
	"fmt"
	"strings"
)

// EventKind identifies what a trace entry records.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventSend
	EventEnqueue
	EventDequeue
	EventTransmit
	EventReceive
	EventAckSuccess
	EventAckFail
	EventObservation
)

var eventKindNames = map[EventKind]string{
	EventSend:        "SEND",
	EventEnqueue:     "ENQUEUE",
	EventDequeue:     "DEQUEUE",
	EventTransmit:    "TRANSMIT",
	EventReceive:     "RECEIVE",
	EventAckSuccess:  "ACK_SUCCESS",
	EventAckFail:     "ACK_FAIL",
	EventObservation: "OBSERVATION",
}

// EventKinds lists every known kind in log order.
func EventKinds() []EventKind {
	return []EventKind{
		EventSend,
		EventEnqueue,
		EventDequeue,
		EventTransmit,
		EventReceive,
		EventAckSuccess,
		EventAckFail,
		EventObservation,
	}
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText renders the kind using its log label.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the log label of a kind.
func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEventKind maps a log label such as "ACK_FAIL" to its EventKind.
func ParseEventKind(s string) (EventKind, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	for kind, name := range eventKindNames {
		if name == label {
			return kind, nil
		}
	}
	return EventKindUnknown, fmt.Errorf("unknown event kind %q", s)
}

// NodeID identifies a node in the trace and the slot table.
type NodeID int

// NoNode marks events that are not attributed to a node (observations).
const NoNode NodeID = -1

// NoSlot marks events recorded outside of any slot.
const NoSlot = -1

// Event is a single immutable trace entry.
type Event struct {
	ID   string
	Time float64
	Kind EventKind

	NodeID NodeID
	SlotID int

	// ShortAddress is only set for observations, which carry a radio
	// address instead of a node/slot pair.
	ShortAddress string

	RawPayload string
	Packet     Packet
}

// HasNode reports whether the event is attributed to a node.
func (e *Event) HasNode() bool { return e.NodeID != NoNode }

// HasSlot reports whether the event occurred during a slot.
func (e *Event) HasSlot() bool { return e.SlotID != NoSlot }
