package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/volscan/volscan/internal/applog"
	"github.com/volscan/volscan/internal/config"
)

// newRootCommand builds the volscan command tree: a root command carrying
// the global --verbose flag, plus the scan/query/serve subcommands, each
// binding its own flags into a shared *config.Config per
// internal/config's registration pattern.
func newRootCommand() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:           "volscan",
		Short:         "Index and search NTFS volumes by reading the MFT directly",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logrus.InfoLevel
			if cfg.Verbose {
				level = logrus.DebugLevel
			}
			applog.Configure(level, cfg.Verbose)
		},
	}

	root.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newScanCommand(cfg))
	root.AddCommand(newQueryCommand(cfg))
	root.AddCommand(newServeCommand(cfg))
	return root
}
