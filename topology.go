// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ring topology link defaults for the ns-3 backend.
const (
	DefaultRingBandwidth = "25Gbps"
	DefaultRingLatency   = "0.005ms"
	DefaultRingErrorRate = "0"
)

// RingTopologyPath is where the ns-3 backend looks for a physical topology,
// relative to the project root.
var RingTopologyPath = filepath.Join("extern", "network_backend", "ns-3", "scratch", "topology", "ring_topology_config.txt")

// RingTopology renders an ns-3 physical topology in which every node links to
// its successor, the last wrapping around to the first. The header declares
// nodes nodes, no switches and nodes links.
func RingTopology(nodes int, bandwidth, latency, errorRate string) (string, error) {
	if nodes < 1 {
		return "", fmt.Errorf("%w: ring needs at least one node, got %d", ErrConfiguration, nodes)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d 0 %d\n\n", nodes, nodes)
	for i := range nodes {
		fmt.Fprintf(&b, "%d %d %s %s %s\n", i, (i+1)%nodes, bandwidth, latency, errorRate)
	}
	return b.String(), nil
}

// WriteRingTopology writes a ring topology to path, or to
// [RingTopologyPath] under root when path is empty, and returns the path
// written.
func WriteRingTopology(root, path string, nodes int, bandwidth, latency, errorRate string) (string, error) {
	text, err := RingTopology(nodes, bandwidth, latency, errorRate)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(root, RingTopologyPath)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte(text), 0o644)
}
