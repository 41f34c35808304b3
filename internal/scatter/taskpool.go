// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"context"
)

// A TaskPool defines a virtual set of task execution slots bound to a [Job].
// Use [Gather.Scatter] to launch tasks into a TaskPool.
type TaskPool struct {
	job      *Job
	limit    int
	inFlight inFlightCounter
}

// NewTaskPool creates a pool bound to job. A negative limit means no limit;
// zero is rejected since no task could ever launch.
func NewTaskPool(job *Job, limit int) *TaskPool {
	if job == nil {
		panic("job must be non-nil")
	}
	if limit == 0 {
		panic("limit must be non-zero")
	}
	return &TaskPool{
		job:   job,
		limit: limit,
	}
}

// Limit returns the pool's concurrency limit.
func (p *TaskPool) Limit() int {
	return p.limit
}

// InFlight returns the number of tasks currently running in the pool.
func (p *TaskPool) InFlight() int {
	return int(p.inFlight.Load())
}

// acquire reserves a slot, gathering completed results to make room when the
// pool is full.
func (p *TaskPool) acquire(ctx context.Context) error {
	for !p.inFlight.incrementIfUnder(p.limit) {
		// A full pool implies at least one task in flight at the job level,
		// so this blocks until some task posts its result.
		if _, err := p.job.GatherOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *TaskPool) release() {
	p.inFlight.decrement()
}
