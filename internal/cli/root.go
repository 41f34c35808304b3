// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package cli implements the simflow command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/petenewcomb/simflow"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

type rootOptions struct {
	configFile string
	envFile    string
	verbose    bool
	trace      bool

	// Populated by the persistent pre-run hook.
	cfg      simflow.Config
	logger   *zap.Logger
	closers  []func(context.Context) error
	lookupFn func(string) (string, bool)
}

// Execute runs the command tree against os.Args, canceling the command's
// context on interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &rootOptions{lookupFn: os.LookupEnv}
	cmd := newRootCommand(opts)
	err := cmd.ExecuteContext(ctx)
	if closeErr := opts.close(context.Background()); err == nil {
		err = closeErr
	}
	return err
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simflow",
		Short: "simflow - distributed-training simulation workflow coordinator",
		Long: `simflow sweeps a performance model over matrix shapes, translates its
reports into a text workload trace, and drives the network simulator through
compilation, trace conversion and execution.

Stages:
  - sweep:     run the performance tool once per shape
  - translate: build the workload trace from the sweep's reports
  - pipeline:  compile, convert and run the simulator
  - all:       sweep, translate, then pipeline

Example:
  simflow all --config simflow.yaml
  simflow pipeline --skip-convert
  simflow topology --nodes 8`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML config file (defaults are used when empty)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before SIMFLOW_* overrides are applied")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.trace, "trace", false, "export trace spans to stderr")

	cmd.AddCommand(
		newSweepCommand(opts),
		newTranslateCommand(opts),
		newPipelineCommand(opts),
		newAllCommand(opts),
		newTopologyCommand(opts),
	)
	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	logger, err := newLogger(o.verbose)
	if err != nil {
		return err
	}
	o.logger = logger
	zap.ReplaceGlobals(logger)
	o.closers = append(o.closers, func(context.Context) error {
		_ = logger.Sync()
		return nil
	})

	if o.trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()))
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(tp)
		o.closers = append(o.closers, tp.Shutdown)
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	}
	cfg, err := simflow.LoadConfig(o.configFile)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(o.lookupFn); err != nil {
		return err
	}
	o.cfg = cfg
	logger.Debug("Loaded configuration",
		zap.String("config", o.configFile),
		zap.Stringer("parallelism", cfg.Parallelism),
		zap.Stringer("communication", cfg.Communication),
		zap.Stringer("backend", cfg.Backend),
		zap.Int("npus", cfg.NPUs))
	return nil
}

// close releases everything setup acquired, most recent first.
func (o *rootOptions) close(ctx context.Context) error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		errs = append(errs, o.closers[i](ctx))
	}
	o.closers = nil
	return errors.Join(errs...)
}

// newLogger builds a console logger at debug level when verbose and a JSON
// production logger at info level otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config = zap.NewDevelopmentConfig()
	}
	config.DisableStacktrace = true
	return config.Build()
}
