package main

import (
	"fmt"

	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the native conventions of the running platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := dynload.CurrentPlatform()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "os:                %s\n", p.OS)
			fmt.Fprintf(out, "arch:              %s\n", p.Arch)
			fmt.Fprintf(out, "bitness:           %s\n", p.Bitness)
			fmt.Fprintf(out, "data model:        %s\n", p.DataModel)
			fmt.Fprintf(out, "long size:         %s\n", p.LongSize)
			fmt.Fprintf(out, "pointer size:      %d bytes\n", p.PointerSize())
			fmt.Fprintf(out, "string convention: %s\n", p.StringConvention)
			fmt.Fprintf(out, "library extension: %s\n", p.LibraryExtension())
			return nil
		},
	}
}
