package core

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// Rule names double as the diagnostic source.
const (
	RuleEnqueueJustification = "enqueue-justification"
	RuleReceiveProvenance    = "receive-provenance"
	RuleDequeueOnFailure     = "dequeue-on-failure"
)

// Diagnostic messages emitted by the built-in rules.
const (
	MsgUntriggeredEnqueue   = "No recorded events could have triggered this enqueue."
	MsgUntransmittedReceive = "No recorded events could have transmitted this data."
	MsgTransmitAfterReceive = "Transmit event was recorded ahead of receive, synchronisation issue."
	MsgDequeueAfterAckFail  = "Packet was dequeued due to failed acknowledgement limit."
)

const (
	// receiveLookahead is how far past a receive a matching transmit may be
	// stamped before it stops counting as clean provenance.
	receiveLookahead = 10.0
	// dequeueWindow is the half-width of the window searched for failed
	// acknowledgements around a dequeue.
	dequeueWindow = 10.0
)

// RuleEnv is the read-only context every rule evaluates against.
type RuleEnv struct {
	Log      *kb.EventLog
	Schedule *kb.SlotSchedule
	Protocol ProtocolConstants
}

// Rule inspects one event and returns zero or more diagnostics for it.
// Implementations must not retain or modify the event.
type Rule interface {
	Name() string
	Evaluate(env *RuleEnv, ev *model.Event) []model.Diagnostic
}

// DefaultRules returns the built-in rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		EnqueueJustification{},
		ReceiveProvenance{},
		DequeueOnFailure{},
	}
}

// RuleNames lists the names of the built-in rules.
func RuleNames() []string {
	rules := DefaultRules()
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Name())
	}
	return out
}

// RulesByName resolves built-in rules, keeping the order of names. An empty
// list selects every built-in rule.
func RulesByName(names []string) ([]Rule, error) {
	if len(names) == 0 {
		return DefaultRules(), nil
	}
	byName := make(map[string]Rule)
	for _, r := range DefaultRules() {
		byName[r.Name()] = r
	}
	out := make([]Rule, 0, len(names))
	for _, name := range names {
		r, ok := byName[strings.TrimSpace(name)]
		if !ok {
			known := RuleNames()
			sort.Strings(known)
			return nil, fmt.Errorf("unknown rule %q (known: %s)", name, strings.Join(known, ", "))
		}
		out = append(out, r)
	}
	return out, nil
}

// EnqueueJustification flags enqueues that no send or receive on the same
// node, within one slot before the enqueue, could have caused.
type EnqueueJustification struct{}

func (EnqueueJustification) Name() string { return RuleEnqueueJustification }

func (r EnqueueJustification) Evaluate(env *RuleEnv, ev *model.Event) []model.Diagnostic {
	if ev.Kind != model.EventEnqueue {
		return nil
	}
	start := windowStart(ev.Time, env.Protocol.SlotLength)

	candidates := env.Log.FindInRangeWithNode(start, ev.Time, model.EventSend, ev.NodeID)
	candidates = append(candidates, env.Log.FindInRangeWithNode(start, ev.Time, model.EventReceive, ev.NodeID)...)

	if len(matchingIDs(candidates, ev, model.FlowFields)) > 0 {
		return nil
	}
	return []model.Diagnostic{newDiagnostic(r.Name(), ev, model.SeverityError, MsgUntriggeredEnqueue, nil)}
}

// ReceiveProvenance flags receives with no transmit that could have carried
// the packet. A transmit stamped up to half a slot after the receive is
// treated as clock skew and downgraded to a warning.
type ReceiveProvenance struct{}

func (ReceiveProvenance) Name() string { return RuleReceiveProvenance }

func (r ReceiveProvenance) Evaluate(env *RuleEnv, ev *model.Event) []model.Diagnostic {
	if ev.Kind != model.EventReceive {
		return nil
	}
	start := windowStart(ev.Time, env.Protocol.SlotLength)

	primary := env.Log.FindInRange(start, ev.Time+receiveLookahead, model.EventTransmit)
	if len(matchingIDs(primary, ev, model.SequencedFlowFields)) > 0 {
		return nil
	}

	skewed := env.Log.FindInRange(start, ev.Time+env.Protocol.SlotLength/2, model.EventTransmit)
	related := matchingIDs(skewed, ev, model.SequencedFlowFields)
	if len(related) == 0 {
		return []model.Diagnostic{newDiagnostic(r.Name(), ev, model.SeverityError, MsgUntransmittedReceive, nil)}
	}
	return []model.Diagnostic{newDiagnostic(r.Name(), ev, model.SeverityWarning, MsgTransmitAfterReceive, related)}
}

// DequeueOnFailure marks dequeues that coincide with a failed acknowledgement
// of the same packet. This is expected protocol behaviour, so it only warns.
type DequeueOnFailure struct{}

func (DequeueOnFailure) Name() string { return RuleDequeueOnFailure }

func (r DequeueOnFailure) Evaluate(env *RuleEnv, ev *model.Event) []model.Diagnostic {
	if ev.Kind != model.EventDequeue {
		return nil
	}
	failures := env.Log.FindInRange(windowStart(ev.Time, dequeueWindow), ev.Time+dequeueWindow, model.EventAckFail)
	related := matchingIDs(failures, ev, model.SequencedFlowFields)
	if len(related) == 0 {
		return nil
	}
	return []model.Diagnostic{newDiagnostic(r.Name(), ev, model.SeverityWarning, MsgDequeueAfterAckFail, related)}
}

// windowStart clamps a backwards-looking window to the start of the trace.
func windowStart(t, lookback float64) float64 {
	return math.Max(0, t-lookback)
}

func matchingIDs(candidates []model.Event, ref *model.Event, fields model.PacketField) []string {
	var ids []string
	for i := range candidates {
		if ref.Packet.Matches(candidates[i].Packet, fields) {
			ids = append(ids, candidates[i].ID)
		}
	}
	return ids
}

func newDiagnostic(source string, ev *model.Event, sev model.Severity, msg string, related []string) model.Diagnostic {
	return model.Diagnostic{
		TargetEventID: ev.ID,
		Severity:      sev,
		Message:       msg,
		Source:        source,
		Related:       related,
	}
}
