package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/torosent/crankmeter/internal/config"
	"github.com/torosent/crankmeter/internal/logging"
	"github.com/torosent/crankmeter/internal/tracing"
)

// version is stamped into logs; overridden at build time with -ldflags.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// app holds what every subcommand shares once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tracer *tracing.Provider
	stdout io.Writer
	stderr io.Writer
}

func (a *app) init(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.tracer = provider
	return nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.logger != nil {
		// Sync on a terminal returns EINVAL; nothing is lost.
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
