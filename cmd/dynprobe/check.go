package main

import (
	"fmt"

	"github.com/amikos-tech/pure-dynload/internal/probe"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var manifestPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every library listed in a TOML manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := root.loaderOptions(cmd)
			if err != nil {
				return err
			}
			manifest, err := probe.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			reports, err := probe.RunManifest(manifest, opts...)
			if err != nil {
				return err
			}

			failed := 0
			for _, report := range reports {
				printReport(cmd.OutOrStdout(), report)
				if !report.OK() {
					failed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d libraries ok\n", len(reports)-failed, len(reports))
			if failed > 0 {
				return errors.Wrapf(errProbeFailed, "%d of %d libraries", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "dynprobe.toml", "Path to the probe manifest")
	return cmd
}
