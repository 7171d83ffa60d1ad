package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/tracecheck/core"
	"github.com/signalsfoundry/tracecheck/internal/ingest"
	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/internal/observability"
	"github.com/signalsfoundry/tracecheck/internal/report"
	"github.com/signalsfoundry/tracecheck/model"
)

type checkOptions struct {
	format     string
	out        string
	failOn     string
	metricsOut string
	mode       string
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check <datadir>",
		Short: "Run causality rules, slot conformance and spacing over a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, root, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "text", "report format (text|json|msgpack)")
	f.StringVarP(&opts.out, "out", "o", "", "write the report to a file instead of stdout")
	f.StringVar(&opts.failOn, "fail-on", "", "exit with status 2 when a finding is at least this severe (warning|error)")
	f.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics of the run to this textfile")
	f.StringVar(&opts.mode, "conformance", "", "conformance mode (first|all); defaults to the profile")
	return cmd
}

func runCheck(cmd *cobra.Command, root *rootOptions, opts *checkOptions, dir string) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	var failOn *model.Severity
	if opts.failOn != "" {
		sev, err := model.ParseSeverity(opts.failOn)
		if err != nil {
			return fmt.Errorf("--fail-on: %w", err)
		}
		failOn = &sev
	}

	rt, err := setup(cmd, root)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	mode := rt.cfg.ConformanceMode()
	if opts.mode != "" {
		if mode, err = core.ParseConformanceMode(opts.mode); err != nil {
			return err
		}
	}

	collector, err := observability.NewAnalysisCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	start := time.Now()
	ctx, log, ds, err := rt.load(cmd.Context(), dir)
	if err != nil {
		return err
	}
	collector.ObservePhase("ingest", time.Since(start))
	collector.SetTraceEvents(ds.Log.Len())

	result, err := analyse(ctx, rt, log, collector, ds, mode)
	if err != nil {
		return err
	}
	result.DataDir = dir

	if err := writeReport(cmd.OutOrStdout(), opts.out, format, result, rt.color); err != nil {
		return err
	}
	if opts.metricsOut != "" {
		if err := collector.WriteTextfile(opts.metricsOut); err != nil {
			return err
		}
	}

	if failOn != nil && thresholdHit(result, *failOn) {
		return &exitError{code: 2, msg: fmt.Sprintf("findings at or above %s", failOn.String())}
	}
	return nil
}

// analyse runs every check over ds and assembles the report.
func analyse(ctx context.Context, rt *session, log logging.Logger, collector *observability.AnalysisCollector, ds *ingest.Dataset, mode core.ConformanceMode) (report.Result, error) {
	rules, err := rt.cfg.Rules()
	if err != nil {
		return report.Result{}, err
	}
	engine, err := core.NewEngine(ds.Log, ds.Schedule, rt.cfg.ProtocolConstants(),
		core.WithRules(rules...),
		core.WithWorkers(rt.cfg.Engine.Workers),
		core.WithLogger(log),
		core.WithMetrics(collector),
	)
	if err != nil {
		return report.Result{}, err
	}
	sink, err := engine.Run(ctx)
	if err != nil {
		return report.Result{}, err
	}

	checker, err := core.NewConformanceChecker(ds.Log, ds.Schedule,
		core.WithConformanceLogger(log),
		core.WithViolationRecorder(collector),
	)
	if err != nil {
		return report.Result{}, err
	}
	violations, err := checker.Check(ctx, mode)
	if err != nil {
		return report.Result{}, fmt.Errorf("slot conformance: %w", err)
	}

	result := report.Build(ds.Log, sink, report.Conformance{Mode: mode, Violations: violations},
		core.SpacingByNode(ds.Log, ds.Schedule.Nodes()))
	result.RunID = logging.RunIDFromContext(ctx)
	result.SlotLength = rt.cfg.Protocol.SlotLength
	result.Rules = engine.Rules()
	return result, nil
}

func writeReport(stdout io.Writer, path string, format report.Format, result report.Result, useColor bool) error {
	if path == "" {
		return report.Write(stdout, format, result, report.TextOptions{Color: useColor})
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(f, format, result, report.TextOptions{}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// thresholdHit reports whether any finding reaches min. Slot violations
// count as errors.
func thresholdHit(r report.Result, min model.Severity) bool {
	if len(r.Conformance.Violations) > 0 && model.SeverityError >= min {
		return true
	}
	for _, f := range r.Findings {
		if f.Diagnostic.Severity >= min {
			return true
		}
	}
	return false
}
