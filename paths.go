// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package simflow

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PipelineConfig holds every path the simulator stages need. It is derived
// only from the backend, project root and workload name.
type PipelineConfig struct {
	Backend Backend

	Binary        string
	BuildScript   string
	InstallChakra string

	System       string
	Network      string
	RemoteMemory string
	Logging      string
	// LogicalTopology is empty for backends that take none.
	LogicalTopology string

	// WorkloadInput is the text trace read by the converter; WorkloadOutput
	// is the prefix of the converted trace read by the simulator.
	WorkloadInput  string
	WorkloadOutput string
}

// BinaryDir is the working directory of the simulator process.
func (p PipelineConfig) BinaryDir() string {
	return filepath.Dir(p.Binary)
}

// ResolvePaths lays out the project tree under root for the given backend.
// It touches no files.
func ResolvePaths(root string, backend Backend, workload string) (PipelineConfig, error) {
	if workload == "" {
		return PipelineConfig{}, fmt.Errorf("%w: workload name is empty", ErrConfiguration)
	}
	exampleDir := filepath.Join(root, "examples", "text_converter")
	ns3Dir := filepath.Join(root, "extern", "network_backend", "ns-3")

	p := PipelineConfig{
		Backend:        backend,
		BuildScript:    filepath.Join(root, "build", "astra_"+strings.ToLower(backend.String()), "build.sh"),
		InstallChakra:  filepath.Join(root, "utils", "install_chakra.sh"),
		System:         filepath.Join(exampleDir, "system.json"),
		RemoteMemory:   filepath.Join(exampleDir, "remote_memory.json"),
		Logging:        filepath.Join(exampleDir, "logger.toml"),
		WorkloadInput:  filepath.Join(exampleDir, "text_workloads", workload+".txt"),
		WorkloadOutput: filepath.Join(exampleDir, "workload", workload),
	}
	switch backend {
	case BackendAnalytical:
		p.Binary = filepath.Join(root, "build", "astra_analytical", "build", "bin", "AstraSim_Analytical_Congestion_Aware")
		p.Network = filepath.Join(exampleDir, "network.yml")
	case BackendNS3:
		p.Binary = filepath.Join(ns3Dir, "build", "scratch", "ns3.42-AstraSimNetwork-default")
		p.Network = filepath.Join(ns3Dir, "scratch", "config", "config.txt")
		p.LogicalTopology = filepath.Join(root, "examples", "ns3", "sample_8nodes_1D.json")
	case BackendGarnet:
		return PipelineConfig{}, fmt.Errorf("%w: backend %v is not supported yet", ErrConfiguration, backend)
	default:
		return PipelineConfig{}, fmt.Errorf("%w: unsupported backend %v", ErrConfiguration, backend)
	}
	return p, nil
}

// buildArgs returns the arguments for the backend's build script.
func (p PipelineConfig) buildArgs() []string {
	if p.Backend == BackendAnalytical {
		return []string{p.BuildScript}
	}
	return []string{p.BuildScript, "-c"}
}

// runArgs returns the simulator's command-line arguments.
func (p PipelineConfig) runArgs() []string {
	args := []string{
		"--workload-configuration=" + p.WorkloadOutput,
		"--system-configuration=" + p.System,
		"--remote-memory-configuration=" + p.RemoteMemory,
		"--network-configuration=" + p.Network,
	}
	if p.Backend == BackendNS3 {
		// The ns-3 frontend expects the quotes around "empty" verbatim.
		args = append(args,
			"--logical-topology-configuration="+p.LogicalTopology,
			`--comm-group-configuration="empty"`,
		)
	}
	return args
}

// convertArgs returns the converter's command-line arguments.
func (p PipelineConfig) convertArgs(npus int) []string {
	return []string{
		"Text",
		"--input=" + p.WorkloadInput,
		"--output=" + p.WorkloadOutput,
		fmt.Sprintf("--num-npus=%d", npus),
		"--num-passes=1",
	}
}
