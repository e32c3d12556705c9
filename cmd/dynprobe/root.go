package main

import (
	"github.com/amikos-tech/pure-dynload/dynload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	noChain  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "dynprobe",
		Short:        "Inspect native library loading on this platform",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Loader log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.noChain, "no-chain", false, "Do not add the library directory to the dependency search path")

	cmd.AddCommand(
		newInfoCmd(),
		newProbeCmd(opts),
		newCheckCmd(opts),
	)
	return cmd
}

// loaderOptions builds loader options that log to the command's stderr.
func (o *rootOptions) loaderOptions(cmd *cobra.Command) ([]dynload.Option, error) {
	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(level)

	opts := []dynload.Option{dynload.WithLogger(logger)}
	if o.noChain {
		opts = append(opts, dynload.WithSearchPathChaining(false))
	}
	return opts, nil
}
