// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// State is a pipeline's position in its stage sequence.
type State int

const (
	StateIdle State = iota
	StateCompiled
	StateConverted
	StateRan
	StateDone
	StateFailed
)

var stateNames = []string{
	StateIdle:      "Idle",
	StateCompiled:  "Compiled",
	StateConverted: "Converted",
	StateRan:       "Ran",
	StateDone:      "Done",
	StateFailed:    "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// waitDelay bounds how long a killed child's inherited pipes may stay open.
const waitDelay = 2 * time.Second

// RunResult describes one simulator execution.
type RunResult struct {
	ExitCode int
	Duration time.Duration
	Output   []byte
	// LogFile is the copy of Output written under the run log directory, if
	// one was configured.
	LogFile string
	// Warning is set when the simulator exited with a non-zero code.
	Warning *RunWarning
}

// Pipeline drives the simulator through compile, convert and run. Stages
// must be called in order; a Pipeline is not safe for concurrent use.
type Pipeline struct {
	cfg    Config
	paths  PipelineConfig
	state  State
	stdout io.Writer
	logger *zap.Logger
	now    func() time.Time
	result *RunResult
	err    error
}

type PipelineOption func(*Pipeline)

func WithPipelineLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithStdout sets the console writer that receives progress messages and
// the output of every child process. The default discards it.
func WithStdout(w io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.stdout = w
	}
}

// NewPipeline creates an idle pipeline for cfg. The project root is made
// absolute since the simulator runs in its own binary's directory.
func NewPipeline(cfg Config, opts ...PipelineOption) *Pipeline {
	if root, err := filepath.Abs(cfg.ProjectRoot); err == nil {
		cfg.ProjectRoot = root
	}
	p := &Pipeline{
		cfg:    cfg,
		stdout: io.Discard,
		logger: zap.L(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(
		zap.String("component", "pipeline"),
		zap.Stringer("backend", cfg.Backend))
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

// Err returns the error that moved the pipeline to [StateFailed], if any.
func (p *Pipeline) Err() error {
	return p.err
}

// Result returns the last run's result, or nil before a run.
func (p *Pipeline) Result() *RunResult {
	return p.result
}

// Paths returns the resolved paths, resolving them first if needed. A
// resolution failure moves the pipeline to [StateFailed].
func (p *Pipeline) Paths() (PipelineConfig, error) {
	if err := p.ResolveConfig(); err != nil {
		return PipelineConfig{}, err
	}
	return p.paths, nil
}

// ResolveConfig validates the strategy and resolves every path. It makes no
// external calls.
func (p *Pipeline) ResolveConfig() error {
	if p.state == StateFailed {
		return p.err
	}
	if p.paths.Binary != "" {
		return nil
	}
	err := p.cfg.Strategy().Validate()
	if err == nil {
		p.paths, err = ResolvePaths(p.cfg.ProjectRoot, p.cfg.Backend, p.cfg.Workload)
	}
	if err != nil {
		return p.fail("resolve", err)
	}
	return nil
}

// Install runs the chakra installation script. It is only valid before
// compilation.
func (p *Pipeline) Install(ctx context.Context) error {
	if err := p.expect("install", StateIdle); err != nil {
		return err
	}
	p.printf("[ASTRA-sim] Installing Chakra...\n\n")
	err := p.stage(ctx, "install", func(ctx context.Context) error {
		return p.runCommand(ctx, "install", ErrBuild, p.cfg.Shell, p.paths.InstallChakra)
	})
	if err != nil {
		return err
	}
	p.printf("[ASTRA-sim] Chakra installation done.\n\n")
	return nil
}

// Compile runs the backend's build script.
func (p *Pipeline) Compile(ctx context.Context) error {
	if err := p.expect("compile", StateIdle); err != nil {
		return err
	}
	p.printf("[ASTRA-sim] Compiling ASTRA-sim with the %s Network Backend...\n\n", displayName(p.cfg.Backend))
	err := p.stage(ctx, "compile", func(ctx context.Context) error {
		return p.runCommand(ctx, "compile", ErrBuild, p.cfg.Shell, p.paths.buildArgs()...)
	})
	if err != nil {
		return err
	}
	p.state = StateCompiled
	p.printf("[ASTRA-sim] Compilation finished.\n\n")
	return nil
}

// Convert runs the text-to-binary trace converter.
func (p *Pipeline) Convert(ctx context.Context) error {
	if err := p.expect("convert", StateCompiled); err != nil {
		return err
	}
	p.printf("[ASTRA-sim] Running Text-to-Chakra converter...\n\n")
	err := p.stage(ctx, "convert", func(ctx context.Context) error {
		if err := os.MkdirAll(filepath.Dir(p.paths.WorkloadOutput), 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrConversion, err)
		}
		return p.runCommand(ctx, "convert", ErrConversion, p.cfg.Converter, p.paths.convertArgs(p.cfg.NPUs)...)
	})
	if err != nil {
		return err
	}
	p.state = StateConverted
	p.printf("[ASTRA-sim] Text-to-Chakra conversion done.\n\n")
	return nil
}

// Run executes the simulator once, streaming its combined output to the
// console writer. A non-zero exit is not fatal: it is reported through
// [RunResult.Warning] and the pipeline still reaches [StateDone].
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	if err := p.expect("run", StateIdle, StateCompiled, StateConverted); err != nil {
		return nil, err
	}
	p.printf("[ASTRA-sim] Running ASTRA-sim Example with %s Network Backend...\n\n", displayName(p.cfg.Backend))

	var result *RunResult
	err := p.stage(ctx, "run", func(ctx context.Context) error {
		var err error
		result, err = p.run(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.state = StateRan
	p.result = result

	p.printf("\n[ASTRA-sim] Runtime: %.2f seconds\n\n", result.Duration.Seconds())
	if result.LogFile != "" {
		p.printf("\n[ASTRA-sim] Finished. Log written to: %s\n", result.LogFile)
	} else {
		p.printf("\n[ASTRA-sim] Finished. No log file written.\n")
	}
	if result.Warning != nil {
		p.printf("[ASTRA-sim] Exited with code %d\n", result.ExitCode)
		p.logger.Warn("Simulator exited with non-zero code",
			zap.String("stage", "run"),
			zap.Int("exit_code", result.ExitCode),
			zap.Strings("tail", result.Warning.Tail))
	}
	p.state = StateDone
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*RunResult, error) {
	if _, err := os.Stat(p.paths.Binary); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingBinary, p.paths.Binary)
		}
		return nil, err
	}
	args := p.paths.runArgs()
	p.printf("[ASTRA-sim] Command: %s\n\n", strings.Join(append([]string{p.paths.Binary}, args...), " "))

	capture := newOutputCapture(p.stdout, defaultTailLines)
	cmd := exec.CommandContext(ctx, p.paths.Binary, args...)
	cmd.Dir = p.paths.BinaryDir()
	cmd.Stdout = capture
	cmd.Stderr = capture
	cmd.WaitDelay = waitDelay

	startTime := p.now()
	err := cmd.Run()
	result := &RunResult{
		Duration: p.now().Sub(startTime),
		Output:   capture.Output(),
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %w", ErrMissingBinary, err)
		}
		result.ExitCode = exitErr.ExitCode()
		result.Warning = &RunWarning{ExitCode: result.ExitCode, Tail: capture.Tail()}
	}
	annotate(ctx, attribute.Int("exit_code", result.ExitCode))

	if p.cfg.RunLogDir != "" {
		path, err := p.writeRunLog(result.Output, startTime)
		if err != nil {
			// The run itself succeeded; losing the copy is not fatal.
			p.logger.Warn("Error writing run log", zap.Error(err))
		} else {
			result.LogFile = path
		}
	}
	return result, nil
}

func (p *Pipeline) writeRunLog(output []byte, startTime time.Time) (string, error) {
	if err := os.MkdirAll(p.cfg.RunLogDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("astra_sim_output_%s.txt", startTime.Format("20060102_150405"))
	path := filepath.Join(p.cfg.RunLogDir, name)
	return path, os.WriteFile(path, output, 0o644)
}

// RunAll runs every enabled stage in order, stopping at the first fatal
// error. Installation runs only when configured; conversion is skipped when
// configured.
func (p *Pipeline) RunAll(ctx context.Context) (*RunResult, error) {
	if p.cfg.InstallChakra {
		if err := p.Install(ctx); err != nil {
			return nil, err
		}
	}
	if err := p.Compile(ctx); err != nil {
		return nil, err
	}
	if !p.cfg.SkipConvert {
		if err := p.Convert(ctx); err != nil {
			return nil, err
		}
	}
	return p.Run(ctx)
}

// expect resolves paths and checks that the pipeline is in one of the
// allowed states. An out-of-order call leaves the state unchanged.
func (p *Pipeline) expect(stage string, allowed ...State) error {
	if p.state != StateFailed {
		for _, s := range allowed {
			if p.state == s {
				return p.ResolveConfig()
			}
		}
	}
	return fmt.Errorf("%w: %s from state %v", ErrInvalidTransition, stage, p.state)
}

// stage runs fn under observation and moves the pipeline to
// [StateFailed] if it fails.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := observe(ctx, p.logger, "pipeline."+name, func(ctx context.Context) error {
		annotate(ctx, attribute.String("backend", p.cfg.Backend.String()))
		return fn(ctx)
	}, zap.String("stage", name))
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("%w: %s: %w", ErrCancelled, name, ctx.Err())
		}
		return p.fail(name, err)
	}
	return nil
}

func (p *Pipeline) fail(stage string, err error) error {
	p.state = StateFailed
	p.err = err
	p.logger.Error("Stage failed", zap.String("stage", stage), zap.Error(err))
	return err
}

// runCommand runs one external command to completion with its output
// streamed to the console writer. A non-zero exit is reported as a
// [*StageError] of the given kind.
func (p *Pipeline) runCommand(ctx context.Context, stage string, kind error, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stdout
	cmd.WaitDelay = waitDelay
	p.logger.Debug("Running command",
		zap.String("stage", stage),
		zap.String("command", name),
		zap.Strings("args", args))
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", ErrCancelled, stage, ctx.Err())
	}
	stageErr := &StageError{Stage: stage, Kind: kind, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stageErr.ExitCode = exitErr.ExitCode()
	}
	return stageErr
}

func (p *Pipeline) printf(format string, args ...any) {
	fmt.Fprintf(p.stdout, format, args...)
}

// displayName renders a backend the way progress messages name it.
func displayName(b Backend) string {
	name := b.String()
	return name[:1] + strings.ToLower(name[1:])
}
