// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunArgs(t *testing.T) {
	chk := require.New(t)

	p, err := ResolvePaths("/r", BackendAnalytical, "W")
	chk.NoError(err)
	chk.Equal([]string{
		"--workload-configuration=/r/examples/text_converter/workload/W",
		"--system-configuration=/r/examples/text_converter/system.json",
		"--remote-memory-configuration=/r/examples/text_converter/remote_memory.json",
		"--network-configuration=/r/examples/text_converter/network.yml",
	}, p.runArgs())
	chk.Equal([]string{"/r/build/astra_analytical/build.sh"}, p.buildArgs())

	p, err = ResolvePaths("/r", BackendNS3, "W")
	chk.NoError(err)
	chk.Equal([]string{
		"--workload-configuration=/r/examples/text_converter/workload/W",
		"--system-configuration=/r/examples/text_converter/system.json",
		"--remote-memory-configuration=/r/examples/text_converter/remote_memory.json",
		"--network-configuration=/r/extern/network_backend/ns-3/scratch/config/config.txt",
		"--logical-topology-configuration=/r/examples/ns3/sample_8nodes_1D.json",
		`--comm-group-configuration="empty"`,
	}, p.runArgs())
	chk.Equal([]string{"/r/build/astra_ns3/build.sh", "-c"}, p.buildArgs())
}

func TestConvertArgs(t *testing.T) {
	chk := require.New(t)
	p, err := ResolvePaths("/r", BackendAnalytical, "W")
	chk.NoError(err)
	chk.Equal([]string{
		"Text",
		"--input=/r/examples/text_converter/text_workloads/W.txt",
		"--output=/r/examples/text_converter/workload/W",
		"--num-npus=16",
		"--num-passes=1",
	}, p.convertArgs(16))
}

func TestOutputCaptureTail(t *testing.T) {
	chk := require.New(t)
	var console []byte
	c := newOutputCapture(writerFunc(func(p []byte) (int, error) {
		console = append(console, p...)
		return len(p), nil
	}), 3)

	for _, chunk := range []string{"one\ntw", "o\r\nthree\n", "four\nfive\nsi", "x"} {
		n, err := c.Write([]byte(chunk))
		chk.NoError(err)
		chk.Equal(len(chunk), n)
	}
	chk.Equal("one\ntwo\r\nthree\nfour\nfive\nsix", string(c.Output()))
	chk.Equal(string(c.Output()), string(console))
	chk.Equal([]string{"four", "five", "six"}, c.Tail())
}

func TestOutputCaptureTailComplete(t *testing.T) {
	chk := require.New(t)
	c := newOutputCapture(nil, 0)
	_, _ = c.Write([]byte("a\nb\n"))
	chk.Equal([]string{"a", "b"}, c.Tail())
}

func TestTailCaptureBounded(t *testing.T) {
	chk := require.New(t)
	c := newTailCapture(2)
	for i := 0; i < 1000; i++ {
		_, _ = c.Write([]byte("line\n"))
	}
	_, _ = c.Write([]byte("last\n"))
	chk.Nil(c.Output())
	chk.Equal([]string{"line", "last"}, c.Tail())

	chunk := bytes.Repeat([]byte{'x'}, maxPartialLine/2+1)
	for i := 0; i < 4; i++ {
		_, _ = c.Write(chunk)
	}
	tail := c.Tail()
	chk.Len(tail, 2)
	chk.Equal("last", tail[0])
	chk.Len(tail[1], maxPartialLine)
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
