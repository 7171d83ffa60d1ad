package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/internal/observability"
	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// ConformanceSource is the diagnostic source used for slot violations.
const ConformanceSource = "slot-conformance"

// ConformanceMode selects whether a scan stops at the first violation.
type ConformanceMode string

const (
	ConformanceFirst ConformanceMode = "first"
	ConformanceAll   ConformanceMode = "all"
)

// ParseConformanceMode accepts "first" or "all"; empty means first.
func ParseConformanceMode(s string) (ConformanceMode, error) {
	switch m := ConformanceMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ConformanceFirst:
		return ConformanceFirst, nil
	case ConformanceAll:
		return ConformanceAll, nil
	default:
		return "", fmt.Errorf("unknown conformance mode %q", s)
	}
}

// DefaultExpectations maps event kinds to the slot action they require.
// Kinds absent from the map carry no expectation.
func DefaultExpectations() map[model.EventKind]model.SlotAction {
	return map[model.EventKind]model.SlotAction{
		model.EventTransmit:   model.SlotTransmit,
		model.EventAckSuccess: model.SlotTransmit,
		model.EventAckFail:    model.SlotTransmit,
		model.EventReceive:    model.SlotListen,
	}
}

// Violation is an event that happened in a slot scheduled for a different
// action.
type Violation struct {
	EventID  string           `json:"event_id" msgpack:"event_id"`
	Time     float64          `json:"time" msgpack:"time"`
	Kind     model.EventKind  `json:"event" msgpack:"event"`
	NodeID   model.NodeID     `json:"node_id" msgpack:"node_id"`
	SlotID   int              `json:"slot_id" msgpack:"slot_id"`
	Expected model.SlotAction `json:"expected" msgpack:"expected"`
	Actual   model.SlotAction `json:"actual" msgpack:"actual"`
}

// Message describes the violation in the log viewer's words.
func (v Violation) Message() string {
	return fmt.Sprintf("Slot error found, event %s occurred during slot %d of node %d which is a %s slot.",
		v.Kind, v.SlotID, v.NodeID, v.Actual)
}

// Diagnostic converts the violation into an error diagnostic on its event.
func (v Violation) Diagnostic() model.Diagnostic {
	return model.Diagnostic{
		TargetEventID: v.EventID,
		Severity:      model.SeverityError,
		Message:       v.Message(),
		Source:        ConformanceSource,
	}
}

// ConformanceResult is the outcome of a first-violation scan.
type ConformanceResult struct {
	Violation *Violation `json:"violation" msgpack:"violation"`
}

// NoViolation reports whether the scan found nothing.
func (r ConformanceResult) NoViolation() bool { return r.Violation == nil }

// ViolationRecorder receives conformance counts.
type ViolationRecorder interface {
	AddViolations(n int)
	ObservePhase(phase string, d time.Duration)
}

// ConformanceChecker compares each event against its node's slot schedule.
type ConformanceChecker struct {
	log          *kb.EventLog
	schedule     *kb.SlotSchedule
	expectations map[model.EventKind]model.SlotAction

	logger  logging.Logger
	metrics ViolationRecorder
}

// ConformanceOption customises a ConformanceChecker.
type ConformanceOption func(*ConformanceChecker)

// WithExpectations replaces the event kind to slot action table.
func WithExpectations(m map[model.EventKind]model.SlotAction) ConformanceOption {
	return func(c *ConformanceChecker) {
		c.expectations = make(map[model.EventKind]model.SlotAction, len(m))
		for k, v := range m {
			c.expectations[k] = v
		}
	}
}

// WithConformanceLogger attaches a structured logger.
func WithConformanceLogger(l logging.Logger) ConformanceOption {
	return func(c *ConformanceChecker) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithViolationRecorder attaches an optional metrics recorder.
func WithViolationRecorder(m ViolationRecorder) ConformanceOption {
	return func(c *ConformanceChecker) {
		c.metrics = m
	}
}

// NewConformanceChecker prepares a checker over log and schedule.
func NewConformanceChecker(log *kb.EventLog, schedule *kb.SlotSchedule, opts ...ConformanceOption) (*ConformanceChecker, error) {
	if log == nil || schedule == nil {
		return nil, errNilInput
	}
	c := &ConformanceChecker{
		log:          log,
		schedule:     schedule,
		expectations: DefaultExpectations(),
		logger:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CheckConformance scans in ascending time order and returns the first
// violation, or a result whose NoViolation() is true.
func (c *ConformanceChecker) CheckConformance(ctx context.Context) (ConformanceResult, error) {
	found, err := c.scan(ctx, ConformanceFirst)
	if err != nil {
		return ConformanceResult{}, err
	}
	if len(found) == 0 {
		return ConformanceResult{}, nil
	}
	return ConformanceResult{Violation: &found[0]}, nil
}

// AllViolations scans the whole trace and returns every violation in time
// order.
func (c *ConformanceChecker) AllViolations(ctx context.Context) ([]Violation, error) {
	return c.scan(ctx, ConformanceAll)
}

// Check dispatches on mode.
func (c *ConformanceChecker) Check(ctx context.Context, mode ConformanceMode) ([]Violation, error) {
	return c.scan(ctx, mode)
}

func (c *ConformanceChecker) scan(ctx context.Context, mode ConformanceMode) ([]Violation, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "analysis.conformance", "trace", "",
		attribute.String("mode", string(mode)))
	defer span.End()

	var out []Violation
	events := c.log.Events()
	for i := range events {
		ev := &events[i]
		expected, ok := c.expectations[ev.Kind]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		actual, err := c.schedule.Lookup(ev.NodeID, ev.SlotID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("event %s (%s at %v): %w", ev.ID, ev.Kind, ev.Time, err)
		}
		if actual == expected {
			continue
		}
		v := Violation{
			EventID:  ev.ID,
			Time:     ev.Time,
			Kind:     ev.Kind,
			NodeID:   ev.NodeID,
			SlotID:   ev.SlotID,
			Expected: expected,
			Actual:   actual,
		}
		c.logger.Debug(ctx, "slot violation", logging.String("event_id", v.EventID), logging.String("detail", v.Message()))
		out = append(out, v)
		if mode != ConformanceAll {
			break
		}
	}

	span.SetAttributes(attribute.Int("violations", len(out)))
	if c.metrics != nil {
		c.metrics.AddViolations(len(out))
		c.metrics.ObservePhase("conformance", time.Since(start))
	}
	return out, nil
}
