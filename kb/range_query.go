package kb

import (
	"sort"

	"github.com/signalsfoundry/tracecheck/model"
)

// span returns the half-open index range of events whose time lies in the
// closed interval [start, end].
func (l *EventLog) span(start, end float64) (int, int) {
	if start > end {
		return 0, 0
	}
	lo := sort.SearchFloat64s(l.times, start)
	hi := sort.Search(len(l.times), func(i int) bool { return l.times[i] > end })
	return lo, hi
}

// FindInRange returns every event of the given kind with start <= time <= end
// in ascending time order. Inverted bounds yield an empty result.
func (l *EventLog) FindInRange(start, end float64, kind model.EventKind) []model.Event {
	lo, hi := l.span(start, end)
	var out []model.Event
	for i := lo; i < hi; i++ {
		if l.events[i].Kind == kind {
			out = append(out, l.events[i])
		}
	}
	return out
}

// FindInRangeWithNode is FindInRange restricted to events from node.
func (l *EventLog) FindInRangeWithNode(start, end float64, kind model.EventKind, node model.NodeID) []model.Event {
	lo, hi := l.span(start, end)
	var out []model.Event
	for i := lo; i < hi; i++ {
		if l.events[i].Kind == kind && l.events[i].NodeID == node {
			out = append(out, l.events[i])
		}
	}
	return out
}

// EventsInRange returns every event with start <= time <= end, of any kind.
func (l *EventLog) EventsInRange(start, end float64) []model.Event {
	lo, hi := l.span(start, end)
	return append([]model.Event(nil), l.events[lo:hi]...)
}
