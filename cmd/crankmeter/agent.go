package main

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/torosent/crankmeter/internal/agent"
	"github.com/torosent/crankmeter/internal/agent/plugins"
	"github.com/torosent/crankmeter/internal/config"
	"github.com/torosent/crankmeter/internal/metrics"
	"github.com/torosent/crankmeter/internal/tracing"
)

func newAgentCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve this host's resource usage to monitors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(cmd.Context(), a)
		},
	}
	config.RegisterAgentFlags(cmd.Flags())
	return cmd
}

func newAgent(cfg config.AgentConfig, a *app, m *metrics.Prometheus) (*agent.Agent, error) {
	return agent.New(agent.Options{
		Host: cfg.Host,
		Plugins: plugins.Default(plugins.Options{
			Interface: cfg.Interface,
			CUsFile:   cfg.CUsFile,
		}),
		Selection: agent.Selection{
			Enabled:  cfg.MonitorsEnabled,
			Disabled: cfg.MonitorsDisabled,
		},
		Logger:  a.logger,
		Metrics: m,
	})
}

func runAgent(ctx context.Context, a *app) error {
	cfg := a.cfg.Agent
	reg := prometheus.NewRegistry()
	ag, err := newAgent(cfg, a, metrics.NewPrometheus(reg))
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	srv := agent.NewServer(ag, grpc.UnaryInterceptor(tracing.UnaryServerInterceptor(a.tracer.Tracer())))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, lis) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, reg, a.logger) })
	}
	return g.Wait()
}
