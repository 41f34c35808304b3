// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// reportFields are the raw values of one detailed-metrics report.
type reportFields struct {
	Frequency   string
	ForwardTime string
	ForwardSize string
	InputTime   string
	InputSize   string
	WeightTime  string
	WeightSize  string
}

// reportLines lays the fields out at the offsets the performance tool uses,
// surrounded by filler lines.
func reportLines(f reportFields) []string {
	return []string{
		"Detailed metrics",
		"================",
		"Device: A100",
		"Precision: fp16",
		"Batch: 1",
		"Core frequency: " + f.Frequency + " MHz",
		"",
		"Forward pass",
		"------------",
		"Forward compute time: " + f.ForwardTime + " ns",
		"Forward communication volume: " + f.ForwardSize + " GB",
		"",
		"Backward pass",
		"-------------",
		"Input gradient compute time: " + f.InputTime + " ns",
		"Input gradient communication volume: " + f.InputSize + " GB",
		"",
		"Weight gradient compute time: " + f.WeightTime + " ns",
		"Weight gradient communication volume: " + f.WeightSize + " GB",
		"End of report",
	}
}

var sampleReport = reportFields{
	Frequency:   "1500",
	ForwardTime: "1000",
	ForwardSize: "0.5",
	InputTime:   "2000.4",
	InputSize:   "1",
	WeightTime:  "333",
	WeightSize:  "0",
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	chk := require.New(t)
	chk.NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	chk.NoError(os.WriteFile(path, []byte(content), perm))
}

func writeReport(t *testing.T, path string, f reportFields) {
	t.Helper()
	writeFile(t, path, strings.Join(reportLines(f), "\n")+"\n", 0o644)
}
