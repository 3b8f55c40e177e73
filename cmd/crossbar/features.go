package main

import (
	"fmt"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/locator"
)

func (a *app) featuresCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List drivers and the direct transfer paths between them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "Drivers:")
			for _, d := range registry.Drivers() {
				fmt.Fprintf(w, "  %s:\t%s\n", d.Kind, strings.Join(d.Features, ", "))
			}
			fmt.Fprintln(w, "\nDirect transfers:")
			pairs, descriptions := locator.DirectTransfers()
			for _, p := range pairs {
				fmt.Fprintf(w, "  %s -> %s\t%s\n", p.Source, p.Dest, descriptions[p])
			}
			return w.Flush()
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "crossbar v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
