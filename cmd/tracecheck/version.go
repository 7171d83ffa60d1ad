package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Build metadata, overridable with -ldflags "-X main.Version=...".
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	BuildDate = ""
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

func newVersionCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload := versionPayload{Tool: "tracecheck", Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			case "", "pretty":
				fmt.Fprintf(out, "%s %s\n", payload.Tool, payload.Version)
				if payload.GitCommit != "" {
					fmt.Fprintf(out, "commit: %s\n", payload.GitCommit)
				}
				if payload.BuildDate != "" {
					fmt.Fprintf(out, "built:  %s\n", payload.BuildDate)
				}
				return nil
			default:
				return fmt.Errorf("unsupported format %q (want pretty or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "output format (pretty|json)")
	return cmd
}
