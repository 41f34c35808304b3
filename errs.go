// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"fmt"
	"strings"
)

type constError string

func (e constError) Error() string {
	return string(e)
}

// Is reports [ErrUnsupportedConfiguration] as a kind of [ErrConfiguration].
func (e constError) Is(target error) bool {
	return e == ErrUnsupportedConfiguration && target == ErrConfiguration
}

// Sentinel errors. Match them with [errors.Is].
const (
	ErrConfiguration            = constError("configuration error")
	ErrUnsupportedConfiguration = constError("unsupported configuration")
	ErrParse                    = constError("parse error")
	ErrMissingFile              = constError("missing file")
	ErrBuild                    = constError("build failed")
	ErrPerfTool                 = constError("performance tool failed")
	ErrConversion               = constError("conversion failed")
	ErrMissingBinary            = constError("missing binary")
	ErrCancelled                = constError("cancelled")
	ErrInvalidTransition        = constError("invalid stage transition")
)

// ParseError reports a numeric report field that could not be read. It is
// recovered from: the field is replaced with zero.
type ParseError struct {
	Line int    // zero-based line index in the report
	Text string // offending line, or empty if the report was too short
	Err  error
}

func (e *ParseError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("%s: line %d: %v", ErrParse, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: line %d %q: %v", ErrParse, e.Line, strings.TrimSpace(e.Text), e.Err)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MissingFileError reports a report file that was expected but absent. The
// corresponding sweep entry is skipped.
type MissingFileError struct {
	Index int
	Path  string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingFile, e.Path)
}

func (e *MissingFileError) Is(target error) bool {
	return target == ErrMissingFile
}

// StageError reports an external process that exited unsuccessfully during a
// fatal pipeline stage. It matches the stage's sentinel (for example
// [ErrBuild]) and wraps the underlying process error.
type StageError struct {
	Stage    string
	Kind     error
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s: %s: exit code %d", e.Stage, e.Kind, e.ExitCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Is(target error) bool {
	return target == e.Kind
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunWarning reports a simulator run that exited with a non-zero code. It is
// not fatal: the pipeline still reaches [StateDone].
type RunWarning struct {
	ExitCode int
	Tail     []string // last lines of combined output
}

func (w *RunWarning) Error() string {
	return fmt.Sprintf("simulator exited with code %d", w.ExitCode)
}
