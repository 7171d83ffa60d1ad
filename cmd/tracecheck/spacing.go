package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/tracecheck/core"
	"github.com/signalsfoundry/tracecheck/model"
)

func newSpacingCmd(root *rootOptions) *cobra.Command {
	var node int
	cmd := &cobra.Command{
		Use:   "spacing <datadir>",
		Short: "Report the mean interval between a node's transmits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, root)
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			_, _, ds, err := rt.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !cmd.Flags().Changed("node") {
				for _, s := range core.SpacingByNode(ds.Log, ds.Schedule.Nodes()) {
					if !s.Enough {
						fmt.Fprintf(out, "node %d: not enough data (%d transmits)\n", s.NodeID, s.Transmits)
						continue
					}
					fmt.Fprintf(out, "node %d: %g\n", s.NodeID, s.Mean)
				}
				return nil
			}

			mean, err := core.AverageTransmitInterval(ds.Log, model.NodeID(node))
			if errors.Is(err, core.ErrNotEnoughData) {
				return fmt.Errorf("node %d: %w", node, err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "node %d: %g\n", node, mean)
			return nil
		},
	}
	cmd.Flags().IntVar(&node, "node", 0, "node id; all scheduled nodes when omitted")
	return cmd
}
