package logging

import (
	"context"
	"testing"
)

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("expected generated run id")
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("EnsureRunID must reuse an existing id, got %q vs %q", id2, id)
	}
	if got := RunIDFromContext(ctx); got != id {
		t.Fatalf("RunIDFromContext = %q, want %q", got, id)
	}
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("run id must not leak into request id, got %q", got)
	}
}

func TestWithRunLoggerToleratesNilBase(t *testing.T) {
	ctx, log := WithRunLogger(context.Background(), nil)
	if log == nil {
		t.Fatalf("expected non-nil logger")
	}
	if RunIDFromContext(ctx) == "" {
		t.Fatalf("expected run id on returned context")
	}
	log.Info(ctx, "dropped")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "warning": "WARN", "error": "ERROR", "": "INFO", "bogus": "INFO"}
	for in, want := range cases {
		if got := parseLevel(in).Level().String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
