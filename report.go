// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Line offsets of the performance tool's detailed-metrics report. These are a
// fixed contract of the upstream format.
const (
	reportLineFrequency   = 5
	reportLineForwardTime = 9
	reportLineForwardSize = 10
	reportLineInputTime   = 14
	reportLineInputSize   = 15
	reportLineWeightTime  = 17
	reportLineWeightSize  = 18
)

const (
	bytesPerGiB = 1 << 30

	// Compute times are scaled down by this factor after unit conversion.
	reportTimeScale = 10

	// maxMetric is the smallest value past the int64 range.
	maxMetric = 1 << 63

	reservedSentinel = -1
	finalDelay       = 10
	layerName        = "layer1"
)

var columnWidths = [12]int{10, 3, 10, 10, 10, 10, 10, 10, 10, 10, 10, 6}

// PhaseMetrics is the compute and communication cost of one phase.
type PhaseMetrics struct {
	ComputeTime int64
	Collective  Collective
	CommSize    int64 // bytes
}

// LayerMetrics is one record of the workload trace.
type LayerMetrics struct {
	Name       string
	Reserved   int
	Forward    PhaseMetrics
	Input      PhaseMetrics
	Weight     PhaseMetrics
	FinalDelay int
}

// Fields returns the record's twelve columns in trace order.
func (m LayerMetrics) Fields() [12]string {
	return [12]string{
		m.Name,
		strconv.Itoa(m.Reserved),
		strconv.FormatInt(m.Forward.ComputeTime, 10),
		m.Forward.Collective.String(),
		strconv.FormatInt(m.Forward.CommSize, 10),
		strconv.FormatInt(m.Input.ComputeTime, 10),
		m.Input.Collective.String(),
		strconv.FormatInt(m.Input.CommSize, 10),
		strconv.FormatInt(m.Weight.ComputeTime, 10),
		m.Weight.Collective.String(),
		strconv.FormatInt(m.Weight.CommSize, 10),
		strconv.Itoa(m.FinalDelay),
	}
}

// Line serializes the record as tab-separated columns, each left-justified
// and space-padded to its minimum width. Wider values are never truncated.
func (m LayerMetrics) Line() string {
	var b strings.Builder
	for i, field := range m.Fields() {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(field)
		for pad := columnWidths[i] - len(field); pad > 0; pad-- {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// ColumnWidths returns the minimum width of each serialized column.
func ColumnWidths() [12]int {
	return columnWidths
}

// Translator converts performance reports into workload-trace records for one
// strategy.
type Translator struct {
	strategy    Strategy
	collectives [3]Collective
	logger      *zap.Logger
}

type TranslatorOption func(*Translator)

// WithTranslatorLogger sets the logger used for recovered diagnostics.
func WithTranslatorLogger(logger *zap.Logger) TranslatorOption {
	return func(t *Translator) {
		t.logger = logger
	}
}

// NewTranslator resolves each phase's collective for the strategy up front,
// so an unsupported strategy fails here rather than per report.
func NewTranslator(s Strategy, opts ...TranslatorOption) (*Translator, error) {
	t := &Translator{
		strategy: s,
		logger:   zap.L(),
	}
	for i, phase := range []Phase{PhaseForward, PhaseInput, PhaseWeight} {
		c, err := ResolveCollective(s.Parallelism, s.Communication, phase)
		if err != nil {
			return nil, err
		}
		t.collectives[i] = c
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("component", "translator"))
	return t, nil
}

// Strategy returns the strategy the translator was built for.
func (t *Translator) Strategy() Strategy {
	return t.strategy
}

// ParseReport reads one detailed-metrics report. A field that cannot be read
// is logged, replaced with zero and returned as a [*ParseError]; the record is
// always complete.
func (t *Translator) ParseReport(lines []string) (LayerMetrics, []*ParseError) {
	var errs []*ParseError
	record := func(err *ParseError) {
		errs = append(errs, err)
		t.logger.Warn("Error parsing report field",
			zap.Int("line", err.Line),
			zap.String("text", strings.TrimSpace(err.Text)),
			zap.Error(err.Err))
	}
	field := func(index int) float64 {
		v, err := reportValue(lines, index)
		if err != nil {
			record(err)
		}
		return v
	}
	// toInt replaces a converted value that does not fit in an int64 with
	// zero.
	toInt := func(index int, v float64) int64 {
		if v >= maxMetric {
			record(&ParseError{Line: index, Text: lines[index], Err: fmt.Errorf("converted value %g out of range", v)})
			return 0
		}
		return int64(v)
	}

	divisor := field(reportLineFrequency) / 1000
	computeTime := func(index int) int64 {
		// Truncate after unit conversion, then scale down with
		// round-half-to-even.
		v := math.Trunc(field(index) * divisor)
		return toInt(index, math.RoundToEven(v/reportTimeScale))
	}
	commSize := func(index int) int64 {
		return toInt(index, math.RoundToEven(field(index)*bytesPerGiB))
	}

	m := LayerMetrics{
		Name:     layerName,
		Reserved: reservedSentinel,
		Forward: PhaseMetrics{
			ComputeTime: computeTime(reportLineForwardTime),
			Collective:  t.collectives[0],
			CommSize:    commSize(reportLineForwardSize),
		},
		Input: PhaseMetrics{
			ComputeTime: computeTime(reportLineInputTime),
			Collective:  t.collectives[1],
			CommSize:    commSize(reportLineInputSize),
		},
		Weight: PhaseMetrics{
			ComputeTime: computeTime(reportLineWeightTime),
			Collective:  t.collectives[2],
			CommSize:    commSize(reportLineWeightSize),
		},
		FinalDelay: finalDelay,
	}
	return m, errs
}

var errReportTooShort = errors.New("report too short")

// reportValue extracts the number from a "<label>: <number> <unit>" line:
// the first whitespace-separated token after the last colon.
func reportValue(lines []string, index int) (float64, *ParseError) {
	if index >= len(lines) {
		return 0, &ParseError{Line: index, Err: errReportTooShort}
	}
	line := lines[index]
	segment := strings.TrimSpace(line)
	if i := strings.LastIndexByte(segment, ':'); i >= 0 {
		segment = segment[i+1:]
	}
	tokens := strings.Fields(segment)
	if len(tokens) == 0 {
		return 0, &ParseError{Line: index, Text: line, Err: errors.New("no value")}
	}
	v, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return 0, &ParseError{Line: index, Text: line, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, &ParseError{Line: index, Text: line, Err: fmt.Errorf("value %v out of range", v)}
	}
	return v, nil
}
