package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/volscan/volscan/internal/config"
	"github.com/volscan/volscan/internal/index"
)

func newScanCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a raw NTFS volume and report how many records were indexed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, cfg)
		},
	}
	cfg.RegisterScanFlags(cmd.Flags())
	return cmd
}

func runScan(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Device == "" {
		return fmt.Errorf("scan: --device is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ScanTimeout)
		defer cancel()
	}

	ix := index.New(cfg.RootLabel)
	start := time.Now()
	if err := ix.Scan(ctx, cfg.Device); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	elapsed := time.Since(start)
	bytesRead, _ := ix.Speed()
	fmt.Fprintf(cmd.OutOrStdout(), "scanned %s records in %s (%s read, %s)\n",
		humanize.Comma(ix.RecordsSoFar()),
		elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(bytesRead)),
		humanize.SI(float64(bytesRead)/elapsed.Seconds(), "B/s"),
	)
	return nil
}
