package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/crankmeter/internal/config"
	"github.com/torosent/crankmeter/internal/grpcclient"
	"github.com/torosent/crankmeter/internal/metrics"
	"github.com/torosent/crankmeter/internal/monitor"
	"github.com/torosent/crankmeter/internal/output"
)

func newMonitorCommand(a *app) *cobra.Command {
	var (
		duration time.Duration
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Poll monitor agents and log their samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), a, duration, progress)
		},
	}
	config.RegisterMonitorFlags(cmd.Flags())
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print per-host call progress to stderr")
	return cmd
}

// monitorTargets maps configured hosts to poll targets, keyed by host name.
func monitorTargets(hosts []config.HostSpec) []monitor.Target {
	targets := make([]monitor.Target, 0, len(hosts))
	for _, h := range hosts {
		targets = append(targets, monitor.Target{Name: h.Host, Address: h.Address()})
	}
	return targets
}

// monitorHeader records host descriptions in the log header.
func monitorHeader(hosts []config.HostSpec) map[string]string {
	header := make(map[string]string)
	for _, h := range hosts {
		if h.Description != "" {
			header["host."+h.Host+".description"] = h.Description
		}
	}
	return header
}

func runMonitor(ctx context.Context, a *app, duration time.Duration, progress bool) error {
	cfg := a.cfg.Monitor
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	latency := metrics.NewHosts()
	collector, err := monitor.Start(ctx, monitor.Options{
		Hosts:    monitorTargets(cfg.Hosts),
		Interval: cfg.Interval,
		Path:     cfg.Output,
		Client: grpcclient.Config{
			Metadata: cfg.Metadata,
			Timeout:  cfg.Timeout,
			UseTLS:   cfg.TLS,
			Insecure: cfg.Insecure,
		},
		Key:       cfg.Key,
		Version:   version,
		Config:    monitorHeader(cfg.Hosts),
		Logger:    a.logger,
		Metrics:   metrics.NewPrometheus(reg),
		Latency:   latency,
		Tracer:    a.tracer.Tracer(),
		Propagate: a.tracer.ShouldPropagate(),
	})
	if err != nil {
		return err
	}
	a.logger.Info("writing monitor log",
		zap.String("run_id", collector.RunID()),
		zap.String("output", cfg.Output))

	if progress {
		reporter := output.NewProgressReporter(latency, time.Second, a.stderr)
		reporter.Start()
		defer reporter.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, reg, a.logger) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	runErr := g.Wait()

	closeErr := collector.Close()
	for host, stage := range collector.Excluded() {
		a.logger.Warn("host excluded", zap.String("host", host), zap.String("stage", stage))
	}
	for _, b := range metrics.FlattenStatusBuckets(latency.ErrorBuckets()) {
		a.logger.Info("agent call failures",
			zap.String("host", b.Host), zap.String("error", b.Label), zap.Int("count", b.Count))
	}
	if runErr != nil {
		return fmt.Errorf("metrics server: %w", runErr)
	}
	return closeErr
}
