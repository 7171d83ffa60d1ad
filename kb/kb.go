// Package kb holds the read-only inputs of an analysis: the event log of a
// trace and the slot schedule it is checked against.
package kb

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/tracecheck/model"
)

var (
	ErrEmptyEventID   = errors.New("event has empty ID")
	ErrDuplicateEvent = errors.New("event ID already exists")
	ErrEventNotFound  = errors.New("event not found")
	ErrInvalidTime    = errors.New("event time is not finite")
)

// EventLog is an immutable, time-ordered trace. Events with equal times keep
// their ingestion order. Nothing in the log may be modified after
// construction, so it is safe for concurrent readers without locking.
type EventLog struct {
	events []model.Event
	times  []float64
	byID   map[string]int
}

// NewEventLog builds a log from events in ingestion order.
func NewEventLog(events []model.Event) (*EventLog, error) {
	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})
	return index(sorted)
}

// NewEventLogFromTimeIndex builds a log from a time-keyed index. Keys are
// ordered numerically and each key's slice keeps its order.
func NewEventLogFromTimeIndex(byTime map[float64][]model.Event) (*EventLog, error) {
	keys := make([]float64, 0, len(byTime))
	total := 0
	for t, evs := range byTime {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("%w: index key %v", ErrInvalidTime, t)
		}
		keys = append(keys, t)
		total += len(evs)
	}
	sort.Float64s(keys)

	sorted := make([]model.Event, 0, total)
	for _, t := range keys {
		for _, ev := range byTime[t] {
			if ev.Time != t {
				return nil, fmt.Errorf("event %q has time %v but is indexed under %v", ev.ID, ev.Time, t)
			}
			sorted = append(sorted, ev)
		}
	}
	return index(sorted)
}

// checkTime rejects NaN and infinite times, which cannot be ordered.
func checkTime(ev *model.Event) error {
	if math.IsNaN(ev.Time) || math.IsInf(ev.Time, 0) {
		return fmt.Errorf("%w: event %q at %v", ErrInvalidTime, ev.ID, ev.Time)
	}
	return nil
}

func index(sorted []model.Event) (*EventLog, error) {
	l := &EventLog{
		events: sorted,
		times:  make([]float64, len(sorted)),
		byID:   make(map[string]int, len(sorted)),
	}
	for i := range sorted {
		ev := &sorted[i]
		if err := checkTime(ev); err != nil {
			return nil, err
		}
		if ev.ID == "" {
			return nil, fmt.Errorf("%w: at time %v", ErrEmptyEventID, ev.Time)
		}
		if _, exists := l.byID[ev.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEvent, ev.ID)
		}
		l.byID[ev.ID] = i
		l.times[i] = ev.Time
	}
	return l, nil
}

// Len returns the number of events.
func (l *EventLog) Len() int { return len(l.events) }

// Events returns every event in ascending time order. The returned slice is
// shared; callers MUST treat it as read-only.
func (l *EventLog) Events() []model.Event { return l.events }

// Get returns the event with the given ID.
func (l *EventLog) Get(id string) (*model.Event, bool) {
	i, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	return &l.events[i], true
}

// Position returns the index of the event in time order, which callers use
// to order results deterministically.
func (l *EventLog) Position(id string) (int, bool) {
	i, ok := l.byID[id]
	return i, ok
}

// TimeIndex groups events by timestamp. Use TimeKeys to walk it in order.
func (l *EventLog) TimeIndex() map[float64][]model.Event {
	out := make(map[float64][]model.Event)
	for _, ev := range l.events {
		out[ev.Time] = append(out[ev.Time], ev)
	}
	return out
}

// TimeKeys returns the distinct timestamps in ascending order.
func (l *EventLog) TimeKeys() []float64 {
	keys := make([]float64, 0, len(l.times))
	for i, t := range l.times {
		if i > 0 && l.times[i-1] == t {
			continue
		}
		keys = append(keys, t)
	}
	return keys
}

// Nodes returns the distinct node ids that appear in the log, ascending.
func (l *EventLog) Nodes() []model.NodeID {
	seen := make(map[model.NodeID]struct{})
	for i := range l.events {
		if l.events[i].HasNode() {
			seen[l.events[i].NodeID] = struct{}{}
		}
	}
	out := make([]model.NodeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
