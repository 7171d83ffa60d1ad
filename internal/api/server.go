// Package api serves a loaded trace and its analysis as JSON for the
// AirTight log viewer.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/tracecheck/core"
	"github.com/signalsfoundry/tracecheck/internal/ingest"
	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/internal/observability"
	"github.com/signalsfoundry/tracecheck/model"
)

// PathPrefix is where the AirTight endpoints are mounted.
const PathPrefix = "/airtight"

// Server exposes one dataset and its diagnostics over HTTP. Diagnostics are
// computed once when the server is built.
type Server struct {
	ds       *ingest.Dataset
	protocol core.ProtocolConstants
	sink     *core.DiagnosticsSink

	rules     []core.Rule
	workers   int
	log       logging.Logger
	collector *observability.AnalysisCollector

	mux *http.ServeMux
}

// Option customises a Server.
type Option func(*Server)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCollector records analysis metrics and mounts /metrics.
func WithCollector(c *observability.AnalysisCollector) Option {
	return func(s *Server) { s.collector = c }
}

// WithRules selects the rules evaluated at startup.
func WithRules(rules []core.Rule) Option {
	return func(s *Server) { s.rules = rules }
}

// WithWorkers bounds engine concurrency at startup.
func WithWorkers(n int) Option {
	return func(s *Server) { s.workers = n }
}

// New analyses ds and returns a server ready to mount.
func New(ctx context.Context, ds *ingest.Dataset, protocol core.ProtocolConstants, opts ...Option) (*Server, error) {
	if ds == nil {
		return nil, errors.New("api: nil dataset")
	}
	s := &Server{
		ds:       ds,
		protocol: protocol,
		log:      logging.Noop(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	engineOpts := []core.EngineOption{core.WithLogger(s.log), core.WithWorkers(s.workers)}
	if len(s.rules) > 0 {
		engineOpts = append(engineOpts, core.WithRules(s.rules...))
	}
	if s.collector != nil {
		engineOpts = append(engineOpts, core.WithMetrics(s.collector))
		s.collector.SetTraceEvents(ds.Log.Len())
	}
	engine, err := core.NewEngine(ds.Log, ds.Schedule, protocol, engineOpts...)
	if err != nil {
		return nil, err
	}
	if s.sink, err = engine.Run(ctx); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(w, req)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.instrument(s.handleHealth))
	s.mux.HandleFunc("GET "+PathPrefix+"/graph.json", s.instrument(s.handleGraph))
	s.mux.HandleFunc("GET "+PathPrefix+"/slot_table.json", s.instrument(s.handleSlotTable))
	s.mux.HandleFunc("GET "+PathPrefix+"/info.json", s.instrument(s.handleInfo))
	s.mux.HandleFunc("GET "+PathPrefix+"/log.json", s.instrument(s.handleLog))
	s.mux.HandleFunc("GET "+PathPrefix+"/diagnostics.json", s.instrument(s.handleDiagnostics))
	s.mux.HandleFunc("GET "+PathPrefix+"/conformance.json", s.instrument(s.handleConformance))
	s.mux.HandleFunc("GET "+PathPrefix+"/spacing/{node}", s.instrument(s.handleSpacing))
	if s.collector != nil {
		s.mux.Handle("GET /metrics", s.collector.Handler())
	}
}

// instrument attaches a request id, a span and an access log line.
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ctx := req.Context()
		if id := req.Header.Get("X-Request-ID"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, log := logging.WithRequestLogger(ctx, s.log)
		w.Header().Set("X-Request-ID", logging.RequestIDFromContext(ctx))

		ctx, span := observability.StartSpan(ctx, "http "+req.Method+" "+req.URL.Path, "http", req.URL.Path)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, req.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		log.Debug(ctx, "handled request",
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Int("status", rec.status),
			logging.String("duration", time.Since(start).String()),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"events":      s.ds.Log.Len(),
		"diagnostics": s.sink.Len(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ds.Routes.Export())
}

func (s *Server) handleSlotTable(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string][]model.SlotAction)
	for _, id := range s.ds.Schedule.Nodes() {
		actions, _ := s.ds.Schedule.Actions(id)
		out[strconv.Itoa(int(id))] = actions
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"slot_length": s.protocol.SlotLength})
}

// handleLog serves the trace. ?shape=linear returns a flat list, otherwise
// entries are grouped by time. ?type= and ?range=start,end filter it.
func (s *Server) handleLog(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	events, err := s.selectEvents(q.Get("type"), q.Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if q.Get("shape") == "linear" {
		out := make([]eventJSON, 0, len(events))
		for i := range events {
			out = append(out, toEventJSON(&events[i]))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	out := make(map[string][]eventJSON)
	for i := range events {
		key := ingest.FormatTime(events[i].Time)
		out[key] = append(out[key], toEventJSON(&events[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) selectEvents(kindParam, rangeParam string) ([]model.Event, error) {
	kind := model.EventKindUnknown
	if kindParam != "" {
		k, err := model.ParseEventKind(kindParam)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	if rangeParam == "" {
		if kind == model.EventKindUnknown {
			return s.ds.Log.Events(), nil
		}
		return s.ds.Log.FindInRange(math.Inf(-1), math.Inf(1), kind), nil
	}

	lo, hi, ok := strings.Cut(rangeParam, ",")
	if !ok {
		return nil, fmt.Errorf("range must be start,end")
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return nil, fmt.Errorf("range start: %w", err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return nil, fmt.Errorf("range end: %w", err)
	}
	if kind != model.EventKindUnknown {
		return s.ds.Log.FindInRange(start, end, kind), nil
	}
	return s.ds.Log.EventsInRange(start, end), nil
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, req *http.Request) {
	if id := req.URL.Query().Get("event"); id != "" {
		if _, ok := s.ds.Log.Get(id); !ok {
			writeError(w, http.StatusNotFound, "unknown event "+id)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(s.sink.ForEvent(id)))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.sink.Sorted(s.ds.Log)))
}

func (s *Server) handleConformance(w http.ResponseWriter, req *http.Request) {
	mode, err := core.ParseConformanceMode(req.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := []core.ConformanceOption{core.WithConformanceLogger(s.log)}
	if s.collector != nil {
		opts = append(opts, core.WithViolationRecorder(s.collector))
	}
	checker, err := core.NewConformanceChecker(s.ds.Log, s.ds.Schedule, opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	violations, err := checker.Check(req.Context(), mode)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if violations == nil {
		violations = []core.Violation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":         mode,
		"no_violation": len(violations) == 0,
		"violations":   violations,
	})
}

func (s *Server) handleSpacing(w http.ResponseWriter, req *http.Request) {
	raw := req.PathValue("node")
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id "+raw)
		return
	}
	node := model.NodeID(n)
	mean, err := core.AverageTransmitInterval(s.ds.Log, node)
	if errors.Is(err, core.ErrNotEnoughData) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":       node,
		"mean_interval": mean,
		"intervals":     core.TransmitIntervals(s.ds.Log, node),
	})
}

func nonNil(ds []model.Diagnostic) []model.Diagnostic {
	if ds == nil {
		return []model.Diagnostic{}
	}
	return ds
}

// ListenAndServe serves s on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "serving trace API", logging.String("addr", addr), logging.String("dir", s.ds.Dir))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(context.Background(), "shutting down trace API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
