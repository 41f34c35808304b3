// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"context"
)

// A TaskFunc is executed asynchronously within a [TaskPool]. It receives the
// job's task context, which is canceled by [Job.Cancel].
//
// A TaskFunc must not call [Gather.Scatter] for the same job, since that may
// deadlock when the pool is full. Scatter from the associated [GatherFunc]
// instead.
type TaskFunc[T any] = func(context.Context) (T, error)

// A GatherFunc processes the result of a completed [TaskFunc] on the
// goroutine that called Scatter or one of the gathering methods of [Job].
// Returning a non-nil error stops the current gathering call.
type GatherFunc[T any] = func(context.Context, T, error) error

// Gather binds a [GatherFunc] to the tasks scattered through it.
type Gather[T any] struct {
	gatherFunc GatherFunc[T]
}

func NewGather[T any](gatherFunc GatherFunc[T]) *Gather[T] {
	if gatherFunc == nil {
		panic("gather function must be non-nil")
	}
	return &Gather[T]{
		gatherFunc: gatherFunc,
	}
}

// Scatter launches taskFunc in a new goroutine once pool has a free slot.
// After the task completes, its result is passed to the gather function during
// a later call to Scatter or to one of the gathering methods of the pool's
// [Job].
//
// Before launching, Scatter gathers up to two already-completed results to
// keep gathering from falling behind. If the pool is full it keeps gathering
// until a slot becomes available. A non-nil error means the task was not
// launched.
func (g *Gather[T]) Scatter(ctx context.Context, pool *TaskPool, taskFunc TaskFunc[T]) error {
	if taskFunc == nil {
		panic("task function must be non-nil")
	}
	j := pool.job
	if j.isTaskContext(ctx) {
		panic("Scatter called from within TaskFunc; move call to GatherFunc instead")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.ctx.Err(); err != nil {
		return err
	}

	for range 2 {
		ok, err := j.TryGatherOne(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}

	if err := pool.acquire(ctx); err != nil {
		return err
	}

	j.inFlight++
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		value, err := taskFunc(j.ctx)

		// Release the slot before posting so that the gather function may
		// scatter into this same pool without deadlock.
		pool.release()

		gather := func(ctx context.Context) error {
			return g.gatherFunc(ctx, value, err)
		}
		select {
		case j.gatherChan <- gather:
		case <-j.ctx.Done():
		}
	}()
	return nil
}
