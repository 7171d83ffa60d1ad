// Package config loads the analysis profile: protocol constants, engine
// tuning, and the logging, tracing and metrics settings of a run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/signalsfoundry/tracecheck/core"
	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/internal/observability"
)

// Config is the decoded analysis profile.
type Config struct {
	Protocol    ProtocolConfig              `toml:"protocol"`
	Engine      EngineConfig                `toml:"engine"`
	Conformance ConformanceConfig           `toml:"conformance"`
	Logging     LoggingConfig               `toml:"logging"`
	Tracing     observability.TracingConfig `toml:"tracing"`
	Metrics     MetricsConfig               `toml:"metrics"`
}

type ProtocolConfig struct {
	SlotLength float64 `toml:"slot_length"`
}

type EngineConfig struct {
	// Workers bounds concurrent shards; 0 selects GOMAXPROCS.
	Workers int      `toml:"workers"`
	Rules   []string `toml:"rules"`
}

type ConformanceConfig struct {
	Mode string `toml:"mode"` // first | all
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in profile.
func Default() Config {
	return Config{
		Protocol:    ProtocolConfig{SlotLength: core.DefaultSlotLength},
		Conformance: ConformanceConfig{Mode: string(core.ConformanceFirst)},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		Tracing:     observability.DefaultTracingConfig(),
	}
}

// Load decodes path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRACECHECK_* and LOG_* variables.
func (c *Config) ApplyEnv() error {
	if raw := os.Getenv("TRACECHECK_SLOT_LENGTH"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("TRACECHECK_SLOT_LENGTH: %w", err)
		}
		c.Protocol.SlotLength = v
	}
	if raw := os.Getenv("TRACECHECK_WORKERS"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("TRACECHECK_WORKERS: %w", err)
		}
		c.Engine.Workers = v
	}
	if raw := os.Getenv("TRACECHECK_RULES"); raw != "" {
		c.Engine.Rules = strings.Split(raw, ",")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	c.Tracing = observability.ApplyTracingEnv(c.Tracing)
	return nil
}

// Validate rejects values the analysis cannot run with.
func (c Config) Validate() error {
	var errs []error
	if err := c.ProtocolConstants().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine workers must not be negative, got %d", c.Engine.Workers))
	}
	if _, err := core.RulesByName(c.Engine.Rules); err != nil {
		errs = append(errs, err)
	}
	if _, err := core.ParseConformanceMode(c.Conformance.Mode); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter))
	}
	return errors.Join(errs...)
}

// ProtocolConstants returns the protocol section as engine input.
func (c Config) ProtocolConstants() core.ProtocolConstants {
	return core.ProtocolConstants{SlotLength: c.Protocol.SlotLength}
}

// Rules resolves the configured rule names.
func (c Config) Rules() ([]core.Rule, error) {
	return core.RulesByName(c.Engine.Rules)
}

// ConformanceMode returns the parsed conformance mode.
func (c Config) ConformanceMode() core.ConformanceMode {
	mode, err := core.ParseConformanceMode(c.Conformance.Mode)
	if err != nil {
		return core.ConformanceFirst
	}
	return mode
}

// LoggerConfig adapts the logging section.
func (c Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}
