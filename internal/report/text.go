package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/signalsfoundry/tracecheck/model"
)

// TextOptions controls the text renderer.
type TextOptions struct {
	Color bool
}

type palette struct {
	heading *color.Color
	err     *color.Color
	warn    *color.Color
	info    *color.Color
	ok      *color.Color
	dim     *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		heading: color.New(color.Bold),
		err:     color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		info:    color.New(color.FgBlue),
		ok:      color.New(color.FgGreen, color.Bold),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.heading, p.err, p.warn, p.info, p.ok, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s model.Severity) *color.Color {
	switch s {
	case model.SeverityError:
		return p.err
	case model.SeverityWarning:
		return p.warn
	default:
		return p.info
	}
}

// WriteText renders r for a terminal.
func WriteText(w io.Writer, r Result, opts TextOptions) error {
	p := newPalette(opts.Color)
	tw := &errWriter{w: w}

	p.heading.Fprintf(tw, "tracecheck report")
	if r.RunID != "" {
		p.dim.Fprintf(tw, "  run %s", r.RunID)
	}
	fmt.Fprintln(tw)
	if r.DataDir != "" {
		fmt.Fprintf(tw, "trace:       %s\n", r.DataDir)
	}
	fmt.Fprintf(tw, "events:      %d\n", r.Events)
	fmt.Fprintf(tw, "slot length: %g\n", r.SlotLength)
	if len(r.Rules) > 0 {
		fmt.Fprintf(tw, "rules:       %s\n", strings.Join(r.Rules, ", "))
	}

	fmt.Fprintln(tw)
	p.heading.Fprintf(tw, "Diagnostics")
	fmt.Fprintf(tw, " (%d errors, %d warnings)\n", r.Summary.Errors, r.Summary.Warnings)
	if len(r.Findings) == 0 {
		p.ok.Fprintln(tw, "  none")
	}
	for _, f := range r.Findings {
		fmt.Fprintf(tw, "  %10s  %-11s %s  ", formatTime(f.Time), f.Kind, location(f.NodeID, f.SlotID))
		p.dim.Fprintln(tw, shortID(f.Diagnostic.TargetEventID))
		fmt.Fprint(tw, "      ")
		p.severity(f.Diagnostic.Severity).Fprint(tw, f.Diagnostic.Severity.Label()+":")
		fmt.Fprintf(tw, " %s", f.Diagnostic.Message)
		p.dim.Fprintf(tw, " [%s]\n", f.Diagnostic.Source)
		if len(f.Diagnostic.Related) > 0 {
			related := make([]string, 0, len(f.Diagnostic.Related))
			for _, id := range f.Diagnostic.Related {
				related = append(related, shortID(id))
			}
			p.dim.Fprintf(tw, "      related: %s\n", strings.Join(related, ", "))
		}
	}

	fmt.Fprintln(tw)
	p.heading.Fprintf(tw, "Slot conformance")
	fmt.Fprintf(tw, " (%s)\n", r.Conformance.Mode)
	if len(r.Conformance.Violations) == 0 {
		p.ok.Fprintln(tw, "  no violations")
	}
	for _, v := range r.Conformance.Violations {
		fmt.Fprintf(tw, "  %10s  ", formatTime(v.Time))
		p.err.Fprint(tw, "Error:")
		fmt.Fprintf(tw, " %s\n", v.Message())
	}

	if len(r.Spacing) > 0 {
		fmt.Fprintln(tw)
		p.heading.Fprintln(tw, "Transmit spacing")
		for _, s := range r.Spacing {
			if !s.Enough {
				fmt.Fprintf(tw, "  node %-4d %d transmits, ", s.NodeID, s.Transmits)
				p.dim.Fprintln(tw, "not enough data")
				continue
			}
			fmt.Fprintf(tw, "  node %-4d %d transmits, mean interval %g\n", s.NodeID, s.Transmits, s.Mean)
		}
	}
	return tw.err
}

func formatTime(t float64) string {
	return fmt.Sprintf("%g", t)
}

func location(node model.NodeID, slot int) string {
	switch {
	case node == model.NoNode:
		return "-"
	case slot == model.NoSlot:
		return fmt.Sprintf("node %d", node)
	default:
		return fmt.Sprintf("node %d slot %d", node, slot)
	}
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

// errWriter keeps the first write error so the renderer can ignore
// per-call results.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(b []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(b)
	if err != nil {
		e.err = err
	}
	return n, err
}
