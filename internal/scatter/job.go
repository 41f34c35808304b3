// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"context"
	"sync"
)

// Job represents a single-threaded scatter-gather execution environment. It
// tracks tasks launched with [Gather.Scatter] across its [TaskPool]s and
// provides [Job.GatherOne] and [Job.GatherAll] for gathering their results.
//
// All calls to Scatter and the gathering methods must come from the same
// goroutine. Task functions run in their own goroutines and must be
// thread-safe.
//
// Each call to NewJob should typically be followed by a deferred call to
// [Job.CancelAndWait] so that an early return does not leave tasks running.
type Job struct {
	ctx        context.Context
	cancelFunc context.CancelFunc
	inFlight   int
	gatherChan chan boundGatherFunc
	wg         sync.WaitGroup
}

type boundGatherFunc = func(ctx context.Context) error

type taskContextKey struct {
	j *Job
}

// NewJob creates a scatter-gather execution environment. The given context is
// the root of the context passed to every task function.
func NewJob(ctx context.Context) *Job {
	j := &Job{}
	ctx, j.cancelFunc = context.WithCancel(ctx)
	j.ctx = context.WithValue(ctx, taskContextKey{j}, struct{}{})
	j.gatherChan = make(chan boundGatherFunc)
	return j
}

func (j *Job) isTaskContext(ctx context.Context) bool {
	return ctx.Value(taskContextKey{j}) != nil
}

// Cancel terminates in-flight tasks by canceling their context and forfeits
// any ungathered results. Outstanding and future gathering calls fail with
// [context.Canceled]. Cancel is thread-safe and idempotent.
func (j *Job) Cancel() {
	j.cancelFunc()
}

// CancelAndWait cancels the job and waits for every task goroutine to return.
func (j *Job) CancelAndWait() {
	j.cancelFunc()
	j.wg.Wait()
}

// GatherOne processes at most a single result from a task previously
// scattered into one of the job's pools, blocking until one is available.
//
//   - true, nil: a task completed and was successfully gathered
//   - true, non-nil: a task completed but its gather function failed
//   - false, nil: there were no tasks in flight
//   - false, non-nil: the argument or job context was canceled
func (j *Job) GatherOne(ctx context.Context) (bool, error) {
	return j.gatherOne(ctx, true)
}

// TryGatherOne is like [Job.GatherOne] but returns false, nil instead of
// blocking when no completed task is ready.
func (j *Job) TryGatherOne(ctx context.Context) (bool, error) {
	return j.gatherOne(ctx, false)
}

func (j *Job) gatherOne(ctx context.Context, block bool) (bool, error) {
	if j.inFlight == 0 {
		return false, nil
	}
	if block {
		select {
		case gather := <-j.gatherChan:
			return true, j.executeGather(ctx, gather)
		case <-ctx.Done():
			return false, ctx.Err()
		case <-j.ctx.Done():
			return false, j.ctx.Err()
		}
	}
	select {
	case gather := <-j.gatherChan:
		return true, j.executeGather(ctx, gather)
	case <-ctx.Done():
		return false, ctx.Err()
	case <-j.ctx.Done():
		return false, j.ctx.Err()
	default:
		return false, nil
	}
}

// GatherAll processes results until no tasks remain in flight, blocking for
// tasks that have not completed. It returns the first error from the context
// or from a gather function.
func (j *Job) GatherAll(ctx context.Context) error {
	for {
		ok, err := j.GatherOne(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

func (j *Job) executeGather(ctx context.Context, gather boundGatherFunc) error {
	// Decrement only after the gather returns so that the in-flight count
	// never reaches zero before the gather has had a chance to scatter more.
	defer func() { j.inFlight-- }()
	return gather(ctx)
}
