package model

import (
	"fmt"
	"strings"
)

// SlotAction is what a node is scheduled to do during a slot.
type SlotAction string

const (
	SlotIdle     SlotAction = "IDLE"
	SlotListen   SlotAction = "LISTEN"
	SlotTransmit SlotAction = "TRANSMIT"
)

// ParseSlotAction validates a slot-table label.
func ParseSlotAction(s string) (SlotAction, error) {
	switch a := SlotAction(strings.ToUpper(strings.TrimSpace(s))); a {
	case SlotIdle, SlotListen, SlotTransmit:
		return a, nil
	default:
		return "", fmt.Errorf("unknown slot action %q", s)
	}
}

func (a SlotAction) String() string { return string(a) }
