package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/tracecheck/core"
)

func newConformanceCmd(root *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "conformance <datadir>",
		Short: "Check that every event happened in a slot scheduled for it",
		Long:  "conformance exits with status 2 when a violation is found.",
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
			checker, err := core.NewConformanceChecker(ds.Log, ds.Schedule, core.WithConformanceLogger(log))
			if err != nil {
				return err
			}
			mode := rt.cfg.ConformanceMode()
			if cmd.Flags().Changed("all") {
				mode = core.ConformanceFirst
				if all {
					mode = core.ConformanceAll
				}
			}
			violations, err := checker.Check(ctx, mode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(violations) == 0 {
				fmt.Fprintln(out, "no slot violations")
				return nil
			}
			for _, v := range violations {
				fmt.Fprintf(out, "%s  %s\n", v.EventID, v.Message())
			}
			return &exitError{code: 2}
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "report every violation instead of stopping at the first")
	return cmd
}
