// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter_test

import (
	"context"
	"testing"

	"github.com/petenewcomb/simflow/internal/scatter"
	"github.com/stretchr/testify/require"
)

func TestJobGatherOneWithNothingInFlight(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()

	ok, err := job.GatherOne(ctx)
	chk.False(ok)
	chk.NoError(err)
	chk.NoError(job.GatherAll(ctx))
}

func TestJobCancelStopsGathering(t *testing.T) {
	chk := require.New(t)
	ctx := context.Background()
	job := scatter.NewJob(ctx)
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	gather := scatter.NewGather(
		func(ctx context.Context, result int, err error) error {
			chk.Fail("should not get here")
			return nil
		},
	)
	chk.NoError(gather.Scatter(ctx, pool, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}))
	// Once the task goroutine has exited there is no result left to race
	// with the job's canceled context.
	job.CancelAndWait()
	chk.ErrorIs(job.GatherAll(ctx), context.Canceled)

	// Further scattering is refused.
	chk.ErrorIs(gather.Scatter(ctx, pool, func(context.Context) (int, error) {
		return 0, nil
	}), context.Canceled)
}

func TestJobCanceledArgumentContext(t *testing.T) {
	chk := require.New(t)
	job := scatter.NewJob(context.Background())
	defer job.CancelAndWait()
	pool := scatter.NewTaskPool(job, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gather := scatter.NewGather(
		func(ctx context.Context, result int, err error) error {
			return nil
		},
	)
	chk.ErrorIs(gather.Scatter(ctx, pool, func(context.Context) (int, error) {
		return 0, nil
	}), context.Canceled)
}
