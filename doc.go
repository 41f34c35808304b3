// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package simflow drives a multi-stage simulation workflow for
// distributed-training performance studies. It sweeps matrix-multiply shapes
// through an external performance-modeling tool, translates the resulting
// per-layer reports into a text workload trace, and then compiles, converts
// and runs an external network simulator against that trace.
//
// The decision layer is pure: [ResolvePartitionFactors] and
// [ResolveCollective] map a parallelism strategy and a communication strategy
// onto partition factors and per-phase collective operations. [Translator]
// turns fixed-layout reports into [LayerMetrics] records and a
// [WorkloadTrace]. [Sweep] fans the performance tool out over a bounded worker
// pool, and [Pipeline] sequences the build, convert and run stages as a small
// state machine.
//
// Every component takes its configuration explicitly; nothing is read from
// process-wide state. Unsupported combinations are reported as errors matching
// [ErrConfiguration] before any external process is started;
// [ErrUnsupportedConfiguration] narrows that to an unsupported enum value.
package simflow
