// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/addrummond/heap"
	"github.com/petenewcomb/simflow/internal/scatter"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReadShapes parses sweep input: one "m n k" triple per line. Lines with
// fewer than three whitespace-separated tokens are ignored, as are tokens
// past the third.
func ReadShapes(r io.Reader) ([]Shape, error) {
	var shapes []Shape
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tokens := strings.Fields(sc.Text())
		if len(tokens) < 3 {
			continue
		}
		shapes = append(shapes, Shape{M: tokens[0], N: tokens[1], K: tokens[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading shapes: %w", err)
	}
	return shapes, nil
}

// ReadShapesFile is [ReadShapes] on the named file.
func ReadShapesFile(path string) ([]Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadShapes(f)
}

// ShapeOutcome is the result of one performance-tool invocation.
type ShapeOutcome struct {
	Index    int
	Shape    Shape
	Duration time.Duration
	// Err is nil on success, a *StageError for a non-zero exit, or the
	// launch failure.
	Err error
	// Stderr holds the last lines the tool wrote to its standard error.
	Stderr []string
}

func (a *ShapeOutcome) Cmp(b *ShapeOutcome) int {
	return cmp.Compare(a.Index, b.Index)
}

// Sweep fans the performance tool out over a list of shapes.
type Sweep struct {
	strategy    Strategy
	kp1, kp2    int
	interpreter string
	script      string
	expConfig   string
	outputDir   string
	workers     int
	logger      *zap.Logger
}

type SweepOption func(*Sweep)

func WithSweepLogger(logger *zap.Logger) SweepOption {
	return func(s *Sweep) {
		s.logger = logger
	}
}

// NewSweep resolves the partition factors for cfg's strategy, so an
// unsupported strategy fails before any process is launched.
func NewSweep(cfg Config, opts ...SweepOption) (*Sweep, error) {
	strategy := cfg.Strategy()
	kp1, kp2, err := strategy.PartitionFactors()
	if err != nil {
		return nil, err
	}
	if cfg.Perf.Workers < 0 {
		return nil, fmt.Errorf("%w: perf.workers must not be negative", ErrConfiguration)
	}
	s := &Sweep{
		strategy:    strategy,
		kp1:         kp1,
		kp2:         kp2,
		interpreter: cfg.Perf.Interpreter,
		script:      filepath.Join(cfg.Perf.Root, cfg.Perf.Script),
		expConfig:   filepath.Join(cfg.Perf.Root, cfg.Perf.ExpConfig),
		outputDir:   filepath.Join(cfg.Perf.Root, cfg.Perf.Output),
		workers:     cfg.Perf.Workers,
		logger:      zap.L(),
	}
	if s.workers == 0 {
		s.workers = runtime.NumCPU()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "sweep"))
	return s, nil
}

// OutputDir is where the performance tool writes its reports.
func (s *Sweep) OutputDir() string {
	return s.outputDir
}

// Reports returns a lookup over the sweep's output directory.
func (s *Sweep) Reports() ReportLookup {
	return DirLookup(s.outputDir)
}

// Workers returns the maximum number of concurrent invocations.
func (s *Sweep) Workers() int {
	return s.workers
}

// PartitionFactors returns the kp1 and kp2 passed to every invocation.
func (s *Sweep) PartitionFactors() (int, int) {
	return s.kp1, s.kp2
}

// Prepare creates the output directory and removes every file beneath it
// left by an earlier sweep. Directories are kept.
func (s *Sweep) Prepare() error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return err
	}
	var errs []error
	removed := 0
	err := filepath.WalkDir(s.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("Prepared output directory",
		zap.String("path", s.outputDir),
		zap.Int("removed", removed))
	return errors.Join(errs...)
}

// Args returns the interpreter arguments for the shape at index.
func (s *Sweep) Args(index int, shape Shape) []string {
	return []string{
		s.script,
		"--exp_config", s.expConfig,
		"--exp_dir", s.outputDir,
		"--debug", "False",
		"--id", strconv.Itoa(index),
		"--gemm", "True",
		"--t", s.strategy.Parallelism.String(),
		"--dp", "1",
		"--lp", "1",
		"--kp1", strconv.Itoa(s.kp1),
		"--kp2", strconv.Itoa(s.kp2),
		"--m", shape.M,
		"--n", shape.N,
		"--k", shape.K,
	}
}

// Run invokes the performance tool once per shape with at most Workers
// invocations in flight, and returns when every invocation has finished.
// Outcomes are returned in input order. A failing invocation is logged and
// reported in its outcome; only cancellation of ctx fails the sweep.
func (s *Sweep) Run(ctx context.Context, shapes []Shape) ([]ShapeOutcome, error) {
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, s.workers)

	var done heap.Heap[ShapeOutcome, heap.Min]
	gather := scatter.NewGather(func(ctx context.Context, o ShapeOutcome, err error) error {
		if err != nil {
			return err
		}
		if o.Err != nil {
			s.logger.Warn("Performance tool failed",
				zap.Int("index", o.Index),
				zap.Stringer("shape", o.Shape),
				zap.Duration("duration", o.Duration),
				zap.Strings("stderr", o.Stderr),
				zap.Error(o.Err))
		} else {
			s.logger.Debug("Performance tool finished",
				zap.Int("index", o.Index),
				zap.Duration("duration", o.Duration))
		}
		heap.PushOrderable(&done, o)
		return nil
	})

	s.logger.Info("Starting sweep",
		zap.Int("shapes", len(shapes)),
		zap.Int("workers", s.workers),
		zap.Int("kp1", s.kp1),
		zap.Int("kp2", s.kp2))
	startTime := time.Now()

	for i, shape := range shapes {
		err := gather.Scatter(ctx, pool, func(ctx context.Context) (ShapeOutcome, error) {
			return s.invoke(ctx, i, shape)
		})
		if err != nil {
			return nil, s.cancelled(err)
		}
	}
	if err := job.GatherAll(ctx); err != nil {
		return nil, s.cancelled(err)
	}

	outcomes := make([]ShapeOutcome, 0, len(shapes))
	for {
		o, ok := heap.PopOrderable(&done)
		if !ok {
			break
		}
		outcomes = append(outcomes, o)
	}
	s.logger.Info("Sweep finished",
		zap.Int("shapes", len(shapes)),
		zap.Duration("duration", time.Since(startTime)))
	return outcomes, nil
}

func (s *Sweep) cancelled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: sweep: %w", ErrCancelled, err)
	}
	s.logger.Error("Sweep aborted", zap.String("stage", "sweep"), zap.Error(err))
	return err
}

// invoke runs one performance-tool process. The task error is reserved for
// cancellation; process failures are carried in the outcome.
func (s *Sweep) invoke(ctx context.Context, index int, shape Shape) (ShapeOutcome, error) {
	o := ShapeOutcome{Index: index, Shape: shape}
	startTime := time.Now()
	err := observe(ctx, s.logger, "sweep.perf", func(ctx context.Context) error {
		annotate(ctx,
			attribute.Int("index", index),
			attribute.String("m", shape.M),
			attribute.String("n", shape.N),
			attribute.String("k", shape.K))

		cmd := exec.CommandContext(ctx, s.interpreter, s.Args(index, shape)...)
		stderr := newTailCapture(defaultTailLines)
		cmd.Stdout = io.Discard
		cmd.Stderr = stderr
		cmd.WaitDelay = waitDelay
		err := cmd.Run()
		o.Stderr = stderr.Tail()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stageErr := &StageError{Stage: "perf", Kind: ErrPerfTool, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stageErr.ExitCode = exitErr.ExitCode()
		}
		return stageErr
	}, zap.Int("index", index))
	o.Duration = time.Since(startTime)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return o, ctxErr
	}
	o.Err = err
	return o, nil
}
