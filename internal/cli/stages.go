// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/petenewcomb/simflow"
	"go.uber.org/zap"
)

func shapesPath(cfg simflow.Config) string {
	return filepath.Join(cfg.Perf.Root, cfg.Perf.Shapes)
}

// runSweep prepares the output directory and runs the performance tool over
// every configured shape. It returns the shapes so that translation sees the
// same list.
func runSweep(ctx context.Context, cfg simflow.Config, logger *zap.Logger, out io.Writer) ([]simflow.Shape, error) {
	sweep, err := simflow.NewSweep(cfg, simflow.WithSweepLogger(logger))
	if err != nil {
		return nil, err
	}
	shapes, err := simflow.ReadShapesFile(shapesPath(cfg))
	if err != nil {
		return nil, err
	}
	if err := sweep.Prepare(); err != nil {
		return nil, err
	}
	outcomes, err := sweep.Run(ctx, shapes)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(out, "[%d] %v: %v\n", o.Index, o.Shape, o.Err)
		}
	}
	fmt.Fprintf(out, "Ran %d shapes (%d failed) into %s\n", len(outcomes), failed, sweep.OutputDir())
	return shapes, nil
}

// runTranslate builds the workload trace from the sweep's reports and writes
// it to outPath, or to the pipeline's workload input when outPath is empty.
func runTranslate(cfg simflow.Config, shapes []simflow.Shape, outPath string, logger *zap.Logger, out io.Writer) error {
	translator, err := simflow.NewTranslator(cfg.Strategy(), simflow.WithTranslatorLogger(logger))
	if err != nil {
		return err
	}
	if shapes == nil {
		if shapes, err = simflow.ReadShapesFile(shapesPath(cfg)); err != nil {
			return err
		}
	}
	if outPath == "" {
		paths, err := simflow.ResolvePaths(cfg.ProjectRoot, cfg.Backend, cfg.Workload)
		if err != nil {
			return err
		}
		outPath = paths.WorkloadInput
	}
	lookup := simflow.DirLookup(filepath.Join(cfg.Perf.Root, cfg.Perf.Output))
	trace, err := translator.TranslateAll(shapes, lookup)
	if err != nil {
		return err
	}
	if err := trace.WriteFile(outPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "[✓] Parsed metrics written to: %s\n", outPath)
	return nil
}

// runPipeline drives the simulator. A non-zero simulator exit is reported
// but does not fail the command.
func runPipeline(ctx context.Context, cfg simflow.Config, logger *zap.Logger, out, errOut io.Writer) error {
	pipeline := simflow.NewPipeline(cfg,
		simflow.WithPipelineLogger(logger),
		simflow.WithStdout(out))
	result, err := pipeline.RunAll(ctx)
	if err != nil {
		return err
	}
	if result.Warning != nil {
		fmt.Fprintf(errOut, "warning: %v\n", result.Warning)
		for _, line := range result.Warning.Tail {
			fmt.Fprintf(errOut, "  %s\n", line)
		}
	}
	return nil
}
