package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// exitError carries a non-default exit status out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and maps errors to exit statuses: 1 for failures,
// the carried code for threshold results.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(stderr, ee.msg)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

type rootOptions struct {
	configPath string
	slotLength float64
	logLevel   string
	color      string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tracecheck",
		Short:         "Conformance and causality checks for AirTight TDMA traces",
		Long:          "tracecheck loads an AirTight trace directory (event logs, slot table and routes) and reports slot violations, causality diagnostics and transmit spacing.",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a TOML analysis profile")
	flags.Float64Var(&opts.slotLength, "slot-length", 0, "slot length in trace time units (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.color, "color", "auto", "colorize output (auto|on|off)")

	root.AddCommand(
		newCheckCmd(opts),
		newConformanceCmd(opts),
		newSpacingCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}
