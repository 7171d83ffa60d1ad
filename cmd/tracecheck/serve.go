package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/tracecheck/internal/api"
	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/internal/observability"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve <datadir>",
		Short: "Serve a trace and its diagnostics as JSON for the log viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, root)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			ctx, log, ds, err := rt.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			collector, err := observability.NewAnalysisCollector(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			rules, err := rt.cfg.Rules()
			if err != nil {
				return err
			}
			srv, err := api.New(ctx, ds, rt.cfg.ProtocolConstants(),
				api.WithLogger(log),
				api.WithCollector(collector),
				api.WithRules(rules),
				api.WithWorkers(rt.cfg.Engine.Workers),
			)
			if err != nil {
				return err
			}

			if metricsSrv := serveMetrics(ctx, rt.cfg.Metrics.Addr, collector, log); metricsSrv != nil {
				defer metricsSrv.Shutdown(context.WithoutCancel(ctx))
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

// serveMetrics exposes /metrics on a separate listener when addr is set.
func serveMetrics(ctx context.Context, addr string, collector *observability.AnalysisCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(ctx, "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
