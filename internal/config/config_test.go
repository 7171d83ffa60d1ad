package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/tracecheck/core"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracecheck.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Protocol.SlotLength != core.DefaultSlotLength {
		t.Fatalf("slot length = %v, want %v", cfg.Protocol.SlotLength, core.DefaultSlotLength)
	}
	if cfg.ConformanceMode() != core.ConformanceFirst {
		t.Fatalf("mode = %q", cfg.ConformanceMode())
	}
	rules, err := cfg.Rules()
	if err != nil || len(rules) != 3 {
		t.Fatalf("Rules() = %d rules, %v", len(rules), err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := writeProfile(t, `
[protocol]
slot_length = 250

[engine]
workers = 3
rules = ["receive-provenance"]

[conformance]
mode = "all"

[logging]
level = "debug"

[tracing]
enabled = true
exporter = "otlp"
endpoint = "collector:4317"

[metrics]
addr = ":9100"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Protocol.SlotLength != 250 || cfg.Engine.Workers != 3 {
		t.Fatalf("unexpected protocol/engine: %+v %+v", cfg.Protocol, cfg.Engine)
	}
	if cfg.ConformanceMode() != core.ConformanceAll {
		t.Fatalf("mode = %q, want all", cfg.ConformanceMode())
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "collector:4317" {
		t.Fatalf("unexpected tracing: %+v", cfg.Tracing)
	}
	if cfg.Tracing.ServiceName != "tracecheck" {
		t.Fatalf("tracing defaults lost: %+v", cfg.Tracing)
	}
	if cfg.Metrics.Addr != ":9100" || cfg.LoggerConfig().Level != "debug" {
		t.Fatalf("unexpected metrics/logging: %+v %+v", cfg.Metrics, cfg.Logging)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRACECHECK_SLOT_LENGTH", "50")
	t.Setenv("TRACECHECK_WORKERS", "2")
	t.Setenv("LOG_FORMAT", "json")

	path := writeProfile(t, "[protocol]\nslot_length = 250\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Protocol.SlotLength != 50 || cfg.Engine.Workers != 2 || cfg.Logging.Format != "json" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"zero slot length", "[protocol]\nslot_length = 0\n", "slot length"},
		{"unknown rule", "[engine]\nrules = [\"bogus\"]\n", "unknown rule"},
		{"unknown mode", "[conformance]\nmode = \"some\"\n", "conformance mode"},
		{"unknown key", "[protocol]\nslot_len = 5\n", "unknown keys"},
		{"bad toml", "[protocol\n", "failed to parse TOML"},
		{"negative workers", "[engine]\nworkers = -1\n", "workers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeProfile(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("TRACECHECK_WORKERS", "many")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for non-numeric TRACECHECK_WORKERS")
	}
}
