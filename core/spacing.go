package core

import (
	"errors"

	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// ErrNotEnoughData is returned when fewer than two transmits exist for a node.
var ErrNotEnoughData = errors.New("not enough data: at least two transmits are needed to measure spacing")

// TransmitIntervals returns the gaps between consecutive transmits of node,
// in time order.
func TransmitIntervals(log *kb.EventLog, node model.NodeID) []float64 {
	var (
		intervals []float64
		last      float64
		seen      bool
	)
	for _, ev := range log.Events() {
		if ev.Kind != model.EventTransmit || ev.NodeID != node {
			continue
		}
		if seen {
			intervals = append(intervals, ev.Time-last)
		}
		last, seen = ev.Time, true
	}
	return intervals
}

// AverageTransmitInterval returns the mean gap between node's transmits.
func AverageTransmitInterval(log *kb.EventLog, node model.NodeID) (float64, error) {
	intervals := TransmitIntervals(log, node)
	if len(intervals) == 0 {
		return 0, ErrNotEnoughData
	}
	var sum float64
	for _, d := range intervals {
		sum += d
	}
	return sum / float64(len(intervals)), nil
}

// NodeSpacing is the spacing statistic for one node. Mean is only valid when
// Enough is true.
type NodeSpacing struct {
	NodeID    model.NodeID `json:"node_id" msgpack:"node_id"`
	Transmits int          `json:"transmits" msgpack:"transmits"`
	Mean      float64      `json:"mean_interval" msgpack:"mean_interval"`
	Enough    bool         `json:"enough_data" msgpack:"enough_data"`
}

// SpacingByNode computes the spacing statistic for each of nodes.
func SpacingByNode(log *kb.EventLog, nodes []model.NodeID) []NodeSpacing {
	out := make([]NodeSpacing, 0, len(nodes))
	for _, id := range nodes {
		s := NodeSpacing{NodeID: id, Transmits: countTransmits(log, id)}
		if mean, err := AverageTransmitInterval(log, id); err == nil {
			s.Mean, s.Enough = mean, true
		}
		out = append(out, s)
	}
	return out
}

func countTransmits(log *kb.EventLog, node model.NodeID) int {
	n := 0
	for _, ev := range log.Events() {
		if ev.Kind == model.EventTransmit && ev.NodeID == node {
			n++
		}
	}
	return n
}
