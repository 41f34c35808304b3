// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// Shape is one matrix-multiply problem of a sweep. Dimensions are kept as
// the text read from the sweep input, since they are only ever passed
// through to the performance tool and into report file names.
type Shape struct {
	M, N, K string
}

func (s Shape) String() string {
	return fmt.Sprintf("m=%s n=%s k=%s", s.M, s.N, s.K)
}

// ReportName returns the file name the performance tool writes for the
// shape at the given sweep index.
func ReportName(index int, s Shape) string {
	return fmt.Sprintf("detailed_metrics%d_m%s_n%s_k%s.txt", index, s.M, s.N, s.K)
}

// ReportLookup opens the report for one sweep entry. A report that does not
// exist must be reported with an error matching [fs.ErrNotExist].
type ReportLookup interface {
	OpenReport(index int, s Shape) (io.ReadCloser, error)
}

// DirLookup finds reports in a directory on the local file system.
type DirLookup string

func (d DirLookup) OpenReport(index int, s Shape) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), ReportName(index, s)))
}

// WorkloadTrace is the text workload trace handed to the converter.
type WorkloadTrace struct {
	Communication Communication
	Lines         []string
	// Skipped lists the sweep indices whose reports were missing.
	Skipped []int
}

// Count returns the declared record count, which is always the number of
// records present.
func (w *WorkloadTrace) Count() int {
	return len(w.Lines)
}

func (w *WorkloadTrace) WriteTo(out io.Writer) (int64, error) {
	bw := bufio.NewWriter(out)
	var n int64
	write := func(s string) error {
		k, err := bw.WriteString(s)
		n += int64(k)
		if err != nil {
			return err
		}
		k, err = bw.WriteString("\n")
		n += int64(k)
		return err
	}
	if err := write(w.Communication.String()); err != nil {
		return n, err
	}
	if err := write(strconv.Itoa(w.Count())); err != nil {
		return n, err
	}
	for _, line := range w.Lines {
		if err := write(line); err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// WriteFile writes the trace to path, creating parent directories.
func (w *WorkloadTrace) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TranslateAll reads the report of every shape, in input order, and builds
// the workload trace. Missing reports are logged and skipped; any other I/O
// failure is returned.
func (t *Translator) TranslateAll(shapes []Shape, lookup ReportLookup) (*WorkloadTrace, error) {
	trace := &WorkloadTrace{
		Communication: t.strategy.Communication,
		Lines:         make([]string, 0, len(shapes)),
	}
	for i, s := range shapes {
		lines, err := readReport(lookup, i, s)
		if err != nil {
			var missing *MissingFileError
			if errors.As(err, &missing) {
				t.logger.Warn("Report not found, skipping",
					zap.Int("index", i),
					zap.String("path", missing.Path))
				trace.Skipped = append(trace.Skipped, i)
				continue
			}
			t.logger.Error("Error reading report", zap.Int("index", i), zap.Error(err))
			return nil, err
		}
		m, _ := t.ParseReport(lines)
		trace.Lines = append(trace.Lines, m.Line())
	}
	t.logger.Info("Translated reports",
		zap.Int("records", trace.Count()),
		zap.Int("skipped", len(trace.Skipped)))
	return trace, nil
}

func readReport(lookup ReportLookup, index int, s Shape) ([]string, error) {
	rc, err := lookup.OpenReport(index, s)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingFileError{Index: index, Path: reportPath(err, index, s)}
		}
		return nil, fmt.Errorf("opening report %d: %w", index, err)
	}
	defer rc.Close()

	var lines []string
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading report %d: %w", index, err)
	}
	return lines, nil
}

func reportPath(err error, index int, s Shape) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}
	return ReportName(index, s)
}
