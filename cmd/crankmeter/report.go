package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/crankmeter/internal/config"
	"github.com/torosent/crankmeter/internal/output"
	"github.com/torosent/crankmeter/internal/results"
	"github.com/torosent/crankmeter/internal/threshold"
)

// errThresholds is returned when the report is fine but a threshold failed.
var errThresholds = errors.New("one or more thresholds failed")

func newReportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report RESULT.xml [MONITOR.xml ...]",
		Short: "Compute statistics from result and monitor logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(a, args)
		},
	}
	config.RegisterReportFlags(cmd.Flags())
	return cmd
}

func runReport(a *app, paths []string) error {
	cfg := a.cfg.Report
	res, err := results.ParseFiles(paths, results.Options{ApdexT: cfg.ApdexT, Logger: a.logger})
	if err != nil {
		return err
	}
	res.AnnotateMonitors()

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	rep, err := output.BuildReport(res, cfg.PercentileStep)
	if err != nil {
		return err
	}
	evaluated := threshold.NewEvaluator(thresholds).Evaluate(rep.Summary)

	var renderer results.Renderer
	switch cfg.Format {
	case config.FormatJSON:
		renderer = output.JSONRenderer{Step: cfg.PercentileStep, Thresholds: evaluated}
	default:
		renderer = output.TextRenderer{Step: cfg.PercentileStep, Thresholds: evaluated}
	}

	var w io.Writer = a.stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := renderer.Render(w, res); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	a.logger.Info("report written",
		zap.Strings("inputs", paths),
		zap.Int("groups", len(rep.Groups)),
		zap.Int("hosts", len(rep.Monitors)))
	if !threshold.AllPass(evaluated) {
		return errThresholds
	}
	return nil
}
