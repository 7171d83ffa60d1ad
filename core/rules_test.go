package core

import (
	"reflect"
	"testing"

	"github.com/signalsfoundry/tracecheck/model"
)

func TestEnqueueJustification(t *testing.T) {
	flow := pkt(7, 1, "hi")
	other := pkt(8, 1, "hi")

	cases := []struct {
		name      string
		cause     model.Event
		wantError bool
	}{
		{"send inside window", ev("cause", 60, model.EventSend, 1, model.NoSlot, flow), false},
		{"receive inside window", ev("cause", 150, model.EventReceive, 1, 2, flow), false},
		{"send at window start", ev("cause", 50, model.EventSend, 1, model.NoSlot, flow), false},
		{"send before window", ev("cause", 40, model.EventSend, 1, model.NoSlot, flow), true},
		{"send on another node", ev("cause", 60, model.EventSend, 2, model.NoSlot, flow), true},
		{"send of another flow", ev("cause", 60, model.EventSend, 1, model.NoSlot, other), true},
		{"send after enqueue", ev("cause", 151, model.EventSend, 1, model.NoSlot, flow), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enq := ev("enq", 150, model.EventEnqueue, 1, model.NoSlot, flow)
			sink := runEngine(t, mustLog(t, tc.cause, enq), WithRules(EnqueueJustification{}))

			got := sink.ForEvent("enq")
			if !tc.wantError {
				if len(got) != 0 {
					t.Fatalf("expected no diagnostics, got %+v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 diagnostic, got %+v", got)
			}
			if got[0].Severity != model.SeverityError || got[0].Message != MsgUntriggeredEnqueue {
				t.Fatalf("unexpected diagnostic %+v", got[0])
			}
			if got[0].Source != RuleEnqueueJustification {
				t.Fatalf("source = %q, want %q", got[0].Source, RuleEnqueueJustification)
			}
		})
	}
}

func TestEnqueueJustification_IgnoresSequenceNumber(t *testing.T) {
	send := ev("send", 10, model.EventSend, 1, model.NoSlot, pkt(7, 1, "x"))
	enq := ev("enq", 20, model.EventEnqueue, 1, model.NoSlot, pkt(7, 9, "x"))

	sink := runEngine(t, mustLog(t, send, enq))
	if got := sink.ForEvent("enq"); len(got) != 0 {
		t.Fatalf("sequence number must not affect enqueue matching, got %+v", got)
	}
}

func TestReceiveProvenance(t *testing.T) {
	flow := pkt(7, 4, "payload")
	recv := ev("recv", 200, model.EventReceive, 2, 3, flow)

	t.Run("transmit within lookahead", func(t *testing.T) {
		tx := ev("tx", 205, model.EventTransmit, 1, 3, flow)
		sink := runEngine(t, mustLog(t, tx, recv), WithRules(ReceiveProvenance{}))
		if got := sink.ForEvent("recv"); len(got) != 0 {
			t.Fatalf("expected no diagnostics, got %+v", got)
		}
	})

	t.Run("transmit stamped late", func(t *testing.T) {
		tx := ev("tx", 230, model.EventTransmit, 1, 3, flow)
		sink := runEngine(t, mustLog(t, recv, tx), WithRules(ReceiveProvenance{}))
		got := sink.ForEvent("recv")
		if len(got) != 1 {
			t.Fatalf("expected 1 diagnostic, got %+v", got)
		}
		if got[0].Severity != model.SeverityWarning || got[0].Message != MsgTransmitAfterReceive {
			t.Fatalf("unexpected diagnostic %+v", got[0])
		}
		if !reflect.DeepEqual(got[0].Related, []string{"tx"}) {
			t.Fatalf("related = %v, want [tx]", got[0].Related)
		}
	})

	t.Run("no transmit", func(t *testing.T) {
		tx := ev("tx", 260, model.EventTransmit, 1, 3, flow)
		sink := runEngine(t, mustLog(t, recv, tx), WithRules(ReceiveProvenance{}))
		got := sink.ForEvent("recv")
		if len(got) != 1 {
			t.Fatalf("expected 1 diagnostic, got %+v", got)
		}
		if got[0].Severity != model.SeverityError || got[0].Message != MsgUntransmittedReceive {
			t.Fatalf("unexpected diagnostic %+v", got[0])
		}
	})

	t.Run("sequence number mismatch", func(t *testing.T) {
		tx := ev("tx", 195, model.EventTransmit, 1, 3, pkt(7, 5, "payload"))
		sink := runEngine(t, mustLog(t, tx, recv), WithRules(ReceiveProvenance{}))
		got := sink.ForEvent("recv")
		if len(got) != 1 || got[0].Severity != model.SeverityError {
			t.Fatalf("expected one error, got %+v", got)
		}
	})
}

func TestDequeueOnFailure(t *testing.T) {
	flow := pkt(7, 2, "d")

	t.Run("ack fail nearby", func(t *testing.T) {
		fail := ev("fail", 95, model.EventAckFail, 1, 0, flow)
		deq := ev("deq", 100, model.EventDequeue, 1, model.NoSlot, flow)
		sink := runEngine(t, mustLog(t, fail, deq), WithRules(DequeueOnFailure{}))
		got := sink.ForEvent("deq")
		if len(got) != 1 {
			t.Fatalf("expected 1 diagnostic, got %+v", got)
		}
		if got[0].Severity != model.SeverityWarning || got[0].Message != MsgDequeueAfterAckFail {
			t.Fatalf("unexpected diagnostic %+v", got[0])
		}
	})

	t.Run("ack fail too late", func(t *testing.T) {
		fail := ev("fail", 120, model.EventAckFail, 1, 0, flow)
		deq := ev("deq", 100, model.EventDequeue, 1, model.NoSlot, flow)
		sink := runEngine(t, mustLog(t, fail, deq), WithRules(DequeueOnFailure{}))
		if got := sink.ForEvent("deq"); len(got) != 0 {
			t.Fatalf("expected no diagnostics, got %+v", got)
		}
	})

	t.Run("ack fail for other packet", func(t *testing.T) {
		fail := ev("fail", 100, model.EventAckFail, 1, 0, pkt(7, 3, "d"))
		deq := ev("deq", 100, model.EventDequeue, 1, model.NoSlot, flow)
		sink := runEngine(t, mustLog(t, fail, deq), WithRules(DequeueOnFailure{}))
		if got := sink.ForEvent("deq"); len(got) != 0 {
			t.Fatalf("expected no diagnostics, got %+v", got)
		}
	})
}

func TestWindowStartClampsAtZero(t *testing.T) {
	if got := windowStart(30, 100); got != 0 {
		t.Fatalf("windowStart(30, 100) = %v, want 0", got)
	}
	if got := windowStart(130, 100); got != 30 {
		t.Fatalf("windowStart(130, 100) = %v, want 30", got)
	}
}

func TestRulesByName(t *testing.T) {
	all, err := RulesByName(nil)
	if err != nil {
		t.Fatalf("RulesByName(nil): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 default rules, got %d", len(all))
	}

	picked, err := RulesByName([]string{RuleDequeueOnFailure, " " + RuleEnqueueJustification})
	if err != nil {
		t.Fatalf("RulesByName: %v", err)
	}
	if picked[0].Name() != RuleDequeueOnFailure || picked[1].Name() != RuleEnqueueJustification {
		t.Fatalf("unexpected order: %s, %s", picked[0].Name(), picked[1].Name())
	}

	if _, err := RulesByName([]string{"nope"}); err == nil {
		t.Fatalf("expected error for unknown rule")
	}
}
