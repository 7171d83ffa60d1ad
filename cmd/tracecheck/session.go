package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/tracecheck/internal/config"
	"github.com/signalsfoundry/tracecheck/internal/ingest"
	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/internal/observability"
)

// session is the per-invocation environment shared by every subcommand.
type session struct {
	cfg      config.Config
	log      logging.Logger
	color    bool
	shutdown func(context.Context) error
}

// setup loads the profile, applies persistent flag overrides and starts
// tracing. Callers must defer rt.close.
func setup(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("slot-length") {
		cfg.Protocol.SlotLength = opts.slotLength
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	useColor, err := resolveColor(opts.color)
	if err != nil {
		return nil, err
	}

	log := logging.New(cfg.LoggerConfig())
	tracing := cfg.Tracing
	tracing.Writer = cmd.ErrOrStderr()
	shutdown, err := observability.InitTracing(cmd.Context(), tracing, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	return &session{cfg: cfg, log: log, color: useColor, shutdown: shutdown}, nil
}

func (rt *session) close(ctx context.Context) {
	observability.ShutdownWithTimeout(context.WithoutCancel(ctx), rt.shutdown, rt.log)
}

// load reads the trace directory under a fresh run id. The returned ctx
// carries the run id but not the ingest span, so later phases are its
// siblings.
func (rt *session) load(ctx context.Context, dir string) (context.Context, logging.Logger, *ingest.Dataset, error) {
	ctx, log := logging.WithRunLogger(ctx, rt.log)
	spanCtx, span := observability.StartSpan(ctx, "analysis.ingest", "trace", dir)
	defer span.End()

	ds, err := ingest.LoadDataDir(spanCtx, dir, log)
	if err != nil {
		span.RecordError(err)
		return ctx, log, nil, err
	}
	return ctx, log, ds, nil
}

func resolveColor(mode string) (bool, error) {
	switch strings.ToLower(mode) {
	case "", "auto":
		return !color.NoColor, nil
	case "on", "always", "true":
		return true, nil
	case "off", "never", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color %q (want auto, on or off)", mode)
	}
}
