// core/engine.go
package core

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/internal/observability"
	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// MetricsRecorder receives per-evaluation counts from the engine.
type MetricsRecorder interface {
	ObserveRuleEvaluation(rule string)
	ObserveDiagnostic(d model.Diagnostic)
	ObservePhase(phase string, d time.Duration)
}

// Engine applies every configured rule to every event of a trace and
// collects the resulting diagnostics.
type Engine struct {
	env     RuleEnv
	rules   []Rule
	workers int

	log     logging.Logger
	metrics MetricsRecorder
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) EngineOption {
	return func(e *Engine) {
		e.rules = append([]Rule(nil), rules...)
	}
}

// WithWorkers bounds how many shards of the trace are evaluated at once.
// Zero or negative selects GOMAXPROCS.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics attaches an optional metrics recorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine validates the inputs and prepares an engine over them.
func NewEngine(log *kb.EventLog, schedule *kb.SlotSchedule, protocol ProtocolConstants, opts ...EngineOption) (*Engine, error) {
	if err := ValidateInputs(log, schedule); err != nil {
		return nil, fmt.Errorf("engine inputs: %w", err)
	}
	if err := protocol.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		env: RuleEnv{
			Log:      log,
			Schedule: schedule,
			Protocol: protocol,
		},
		rules: DefaultRules(),
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// Rules returns the configured rule names in evaluation order.
func (e *Engine) Rules() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Name())
	}
	return out
}

// Run evaluates the trace into a fresh sink.
func (e *Engine) Run(ctx context.Context) (*DiagnosticsSink, error) {
	sink := NewDiagnosticsSink()
	if err := e.RunInto(ctx, sink); err != nil {
		return nil, err
	}
	return sink, nil
}

// RunInto evaluates the trace and appends diagnostics to sink. The trace is
// split into contiguous shards evaluated concurrently; ctx is checked
// between events, and a cancelled run returns ctx.Err() without touching
// sink.
func (e *Engine) RunInto(ctx context.Context, sink *DiagnosticsSink) error {
	start := time.Now()
	events := e.env.Log.Events()

	ctx, span := observability.StartSpan(ctx, "analysis.rules", "trace", "",
		attribute.Int("events", len(events)),
		attribute.StringSlice("rules", e.Rules()),
	)
	defer span.End()

	shards := shardBounds(len(events), e.workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	batches := make([][]model.Diagnostic, len(shards))
	for n, sh := range shards {
		g.Go(func() error {
			var batch []model.Diagnostic
			for i := sh.lo; i < sh.hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				batch = append(batch, e.evaluate(&events[i])...)
			}
			batches[n] = batch
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Warn(ctx, "rule evaluation aborted", logging.Err(err))
		return err
	}
	for _, batch := range batches {
		sink.AddAll(batch)
	}

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.ObservePhase("rules", elapsed)
	}
	counts := sink.Counts()
	span.SetAttributes(
		attribute.Int("diagnostics.error", counts[model.SeverityError]),
		attribute.Int("diagnostics.warning", counts[model.SeverityWarning]),
	)
	e.log.Info(ctx, "rule evaluation complete",
		logging.Int("events", len(events)),
		logging.Int("shards", len(shards)),
		logging.Int("errors", counts[model.SeverityError]),
		logging.Int("warnings", counts[model.SeverityWarning]),
		logging.String("duration", elapsed.String()),
	)
	return nil
}

func (e *Engine) evaluate(ev *model.Event) []model.Diagnostic {
	var out []model.Diagnostic
	for _, r := range e.rules {
		ds := r.Evaluate(&e.env, ev)
		if e.metrics != nil {
			e.metrics.ObserveRuleEvaluation(r.Name())
			for _, d := range ds {
				e.metrics.ObserveDiagnostic(d)
			}
		}
		out = append(out, ds...)
	}
	return out
}

type shard struct{ lo, hi int }

// shardBounds splits n items into at most parts contiguous, near-equal
// shards.
func shardBounds(n, parts int) []shard {
	if n == 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	out := make([]shard, 0, parts)
	size, rem := n/parts, n%parts
	lo := 0
	for i := 0; i < parts; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		out = append(out, shard{lo: lo, hi: hi})
		lo = hi
	}
	return out
}
