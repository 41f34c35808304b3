// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package scatter launches (scatters) tasks into bounded pools and
// aggregates (gathers) their results on the calling goroutine. Tasks run
// concurrently while gathering stays sequential, so gather functions may mutate
// local state without synchronization.
//
// A [Job] is the unit of gathering; [Job.GatherAll] doubles as the barrier that
// separates a fan-out stage from whatever consumes its results. A [TaskPool]
// bounds how many tasks of one kind run at once. When a pool is full,
// [Gather.Scatter] gathers completed results until a slot frees, which is what
// keeps an unbounded list of external invocations from all starting at once.
package scatter
