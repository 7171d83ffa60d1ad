package core

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// DiagnosticsSink is an append-only, concurrency-safe store of diagnostics
// keyed by target event. Diagnostics are never replaced or deduplicated.
type DiagnosticsSink struct {
	mu      sync.RWMutex
	items   []model.Diagnostic
	byEvent map[string][]int
}

// NewDiagnosticsSink returns an empty sink.
func NewDiagnosticsSink() *DiagnosticsSink {
	return &DiagnosticsSink{byEvent: make(map[string][]int)}
}

// Add appends one diagnostic.
func (s *DiagnosticsSink) Add(d model.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(d)
}

// AddAll appends a batch under a single lock acquisition.
func (s *DiagnosticsSink) AddAll(ds []model.Diagnostic) {
	if len(ds) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range ds {
		s.addLocked(d)
	}
}

func (s *DiagnosticsSink) addLocked(d model.Diagnostic) {
	s.byEvent[d.TargetEventID] = append(s.byEvent[d.TargetEventID], len(s.items))
	s.items = append(s.items, d)
}

// ForEvent returns the diagnostics attached to an event, in insertion order.
func (s *DiagnosticsSink) ForEvent(id string) []model.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byEvent[id]
	out := make([]model.Diagnostic, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.items[i])
	}
	return out
}

// All returns a snapshot of every diagnostic in insertion order.
func (s *DiagnosticsSink) All() []model.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Diagnostic(nil), s.items...)
}

// Len returns the number of stored diagnostics.
func (s *DiagnosticsSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Counts tallies diagnostics per severity.
func (s *DiagnosticsSink) Counts() map[model.Severity]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Severity]int)
	for _, d := range s.items {
		out[d.Severity]++
	}
	return out
}

// HasAtLeast reports whether any diagnostic is at least as severe as min.
func (s *DiagnosticsSink) HasAtLeast(min model.Severity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.items {
		if d.Severity >= min {
			return true
		}
	}
	return false
}

// Sorted returns a deterministic view: by target position in the log, then
// source, then severity (most severe first), then message. Targets unknown
// to the log sort last by id.
func (s *DiagnosticsSink) Sorted(log *kb.EventLog) []model.Diagnostic {
	items := s.All()
	pos := func(id string) int {
		if log == nil {
			return -1
		}
		if p, ok := log.Position(id); ok {
			return p
		}
		return log.Len()
	}
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i], items[j]
		pi, pj := pos(di.TargetEventID), pos(dj.TargetEventID)
		if pi != pj {
			return pi < pj
		}
		if di.TargetEventID != dj.TargetEventID {
			return di.TargetEventID < dj.TargetEventID
		}
		if di.Source != dj.Source {
			return di.Source < dj.Source
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Message < dj.Message
	})
	return items
}
