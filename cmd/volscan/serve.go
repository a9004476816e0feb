package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/volscan/volscan/internal/api"
	"github.com/volscan/volscan/internal/applog"
	"github.com/volscan/volscan/internal/config"
	"github.com/volscan/volscan/internal/index"
	"github.com/volscan/volscan/internal/metrics"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Scan one or more volumes and serve search queries over HTTP",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, devicePaths []string) error {
			return runServe(cmd, cfg, devicePaths)
		},
	}
	cfg.RegisterScanFlags(cmd.Flags())
	cfg.RegisterServeFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, devicePaths []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	srv := api.NewServer(m)

	for _, devicePath := range devicePaths {
		devicePath := devicePath
		ix := index.New(cfg.RootLabel)
		ix.Metrics = m
		m.ScansStarted.Inc()
		m.ActiveScans.Inc()
		go func() {
			start := time.Now()
			err := ix.Scan(ctx, devicePath)
			m.ActiveScans.Dec()
			m.ObserveScan(time.Since(start), err != nil)
			if err != nil {
				applog.Errorf("scanning %s: %v", devicePath, err)
				return
			}
			srv.AddIndex(ix)
			applog.Infof("indexed %s records from %s", humanize.Comma(ix.RecordsSoFar()), devicePath)
		}()
	}

	httpServer := &http.Server{Addr: cfg.ListenAddress, Handler: srv}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	applog.Infof("listening on %s", cfg.ListenAddress)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
