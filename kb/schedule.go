package kb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalsfoundry/tracecheck/model"
)

var (
	// ErrLookupMiss indicates a slot index outside a node's schedule, or an
	// event that needs a slot but was not recorded in one.
	ErrLookupMiss = errors.New("slot lookup miss")
	// ErrUnknownNode indicates a node that has no schedule.
	ErrUnknownNode = errors.New("node not in slot schedule")
)

// LookupMissError describes a failed slot lookup. It matches ErrLookupMiss
// with errors.Is.
type LookupMissError struct {
	Node      model.NodeID
	Slot      int
	SlotCount int
}

func (e *LookupMissError) Error() string {
	if e.Slot == model.NoSlot {
		return fmt.Sprintf("%s: node %d event has no slot", ErrLookupMiss, e.Node)
	}
	return fmt.Sprintf("%s: slot %d outside schedule of node %d (%d slots)", ErrLookupMiss, e.Slot, e.Node, e.SlotCount)
}

func (e *LookupMissError) Is(target error) bool { return target == ErrLookupMiss }

// SlotSchedule maps each node to its ordered slot actions. Schedules are not
// reused cyclically: a slot index past the end is a lookup miss.
type SlotSchedule struct {
	nodes map[model.NodeID][]model.SlotAction
}

// NewSlotSchedule copies the provided per-node actions.
func NewSlotSchedule(nodes map[model.NodeID][]model.SlotAction) *SlotSchedule {
	s := &SlotSchedule{nodes: make(map[model.NodeID][]model.SlotAction, len(nodes))}
	for id, actions := range nodes {
		s.nodes[id] = append([]model.SlotAction(nil), actions...)
	}
	return s
}

// Lookup returns the action node performs in slot.
func (s *SlotSchedule) Lookup(node model.NodeID, slot int) (model.SlotAction, error) {
	actions, ok := s.nodes[node]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownNode, node)
	}
	if slot < 0 || slot >= len(actions) {
		return "", &LookupMissError{Node: node, Slot: slot, SlotCount: len(actions)}
	}
	return actions[slot], nil
}

// Actions returns a copy of node's schedule.
func (s *SlotSchedule) Actions(node model.NodeID) ([]model.SlotAction, bool) {
	actions, ok := s.nodes[node]
	if !ok {
		return nil, false
	}
	return append([]model.SlotAction(nil), actions...), true
}

// SlotCount returns the length of node's schedule, or 0 if unknown.
func (s *SlotSchedule) SlotCount(node model.NodeID) int {
	return len(s.nodes[node])
}

// Nodes returns scheduled node ids in ascending order.
func (s *SlotSchedule) Nodes() []model.NodeID {
	out := make([]model.NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
