// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/petenewcomb/simflow/internal/scatter"
	"github.com/stretchr/testify/require"
)

func TestGatherScatterNilTaskFuncPanic(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	chk.PanicsWithValue("task function must be non-nil", func() {
		gather := scatter.NewGather(
			func(ctx context.Context, result int, err error) error {
				return nil
			},
		)
		_ = gather.Scatter(ctx, pool, nil)
	})
}

func TestGatherNilGatherFuncPanic(t *testing.T) {
	chk := require.New(t)
	chk.PanicsWithValue("gather function must be non-nil", func() {
		scatter.NewGather[int](nil)
	})
}

func TestGatherScatterFromTaskFunc(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	var panicValue any
	gather := scatter.NewGather(
		func(ctx context.Context, result int, err error) error {
			chk.NoError(err)
			return nil
		},
	)
	err := gather.Scatter(ctx, pool, func(ctx context.Context) (int, error) {
		func() {
			defer func() { panicValue = recover() }()
			_ = gather.Scatter(ctx, pool, func(ctx context.Context) (int, error) {
				return 0, nil
			})
		}()
		return 0, nil
	})
	chk.NoError(err)
	chk.NoError(job.GatherAll(ctx))
	chk.Equal("Scatter called from within TaskFunc; move call to GatherFunc instead", panicValue)
}

func TestGatherScatterFromGatherFunc(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	var results []int
	var gather *scatter.Gather[int]
	gather = scatter.NewGather(
		func(ctx context.Context, result int, err error) error {
			chk.NoError(err)
			results = append(results, result)
			if result < 3 {
				return gather.Scatter(ctx, pool, func(context.Context) (int, error) {
					return result + 1, nil
				})
			}
			return nil
		},
	)
	chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (int, error) {
		return 1, nil
	}))
	chk.NoError(job.GatherAll(ctx))
	chk.Equal([]int{1, 2, 3}, results)
}

func TestGatherTaskErrorIsDelivered(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 2)

	taskErr := errors.New("task failed")
	var gathered []error
	gather := scatter.NewGather(
		func(ctx context.Context, result string, err error) error {
			gathered = append(gathered, err)
			return nil
		},
	)
	chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (string, error) {
		return "", taskErr
	}))
	chk.NoError(job.GatherAll(ctx))
	chk.Len(gathered, 1)
	chk.ErrorIs(gathered[0], taskErr)
}

func TestGatherFuncErrorStopsGatherAll(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	stop := errors.New("stop")
	gather := scatter.NewGather(
		func(ctx context.Context, result int, err error) error {
			return stop
		},
	)
	chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (int, error) {
		return 1, nil
	}))
	chk.ErrorIs(job.GatherAll(ctx), stop)
}
