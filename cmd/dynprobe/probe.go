package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/amikos-tech/pure-dynload/internal/probe"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errProbeFailed = errors.New("probe failed")

func newProbeCmd(root *rootOptions) *cobra.Command {
	var required, optional []string
	cmd := &cobra.Command{
		Use:   "probe <library>",
		Short: "Load a library and resolve the given symbols",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := root.loaderOptions(cmd)
			if err != nil {
				return err
			}
			report, err := probe.Run(probe.Entry{Path: args[0], Required: required, Optional: optional}, opts...)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if !report.OK() {
				return errors.Wrap(errProbeFailed, args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&required, "symbol", "s", nil, "Symbol that must be exported (repeatable)")
	cmd.Flags().StringSliceVar(&optional, "optional", nil, "Symbol to report without failing when absent (repeatable)")
	return cmd
}

func printReport(out io.Writer, r probe.Report) {
	status := "ok"
	if !r.OK() {
		status = "FAIL"
	}
	fmt.Fprintf(out, "%s  %s (%s)\n", status, r.Entry.Label(), r.Entry.Target())
	if r.Err != nil {
		fmt.Fprintf(out, "    error: %v\n", r.Err)
	}

	names := make([]string, 0, len(r.Resolved))
	for name := range r.Resolved {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "    %-32s %#x\n", name, r.Resolved[name])
	}

	names = names[:0]
	for name := range r.Optional {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state := "absent"
		if r.Optional[name] {
			state = "present"
		}
		fmt.Fprintf(out, "    %-32s %s (optional)\n", name, state)
	}
}
