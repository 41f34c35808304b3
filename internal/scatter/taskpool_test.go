// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petenewcomb/simflow/internal/scatter"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTaskPoolNilJobPanic(t *testing.T) {
	chk := require.New(t)
	chk.PanicsWithValue("job must be non-nil", func() {
		_ = scatter.NewTaskPool(nil, 1)
	})
}

func TestTaskPoolZeroLimitPanic(t *testing.T) {
	chk := require.New(t)
	job := scatter.NewJob(context.Background())
	defer job.CancelAndWait()
	chk.PanicsWithValue("limit must be non-zero", func() {
		_ = scatter.NewTaskPool(job, 0)
	})
}

// Every scattered task is gathered exactly once and the pool never runs more
// than its limit concurrently.
func TestTaskPoolRespectsLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chk := require.New(t)
		limit := rapid.IntRange(1, 4).Draw(t, "limit")
		taskCount := rapid.IntRange(0, 20).Draw(t, "taskCount")

		ctx := context.Background()
		job := scatter.NewJob(ctx)
		defer job.CancelAndWait()
		pool := scatter.NewTaskPool(job, limit)

		var running, peak atomic.Int64
		seen := make(map[int]int)
		gather := scatter.NewGather(
			func(ctx context.Context, index int, err error) error {
				chk.NoError(err)
				seen[index]++
				return nil
			},
		)
		for i := range taskCount {
			chk.NoError(gather.Scatter(ctx, pool, func(context.Context) (int, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				running.Add(-1)
				return i, nil
			}))
		}
		chk.NoError(job.GatherAll(ctx))

		chk.LessOrEqual(peak.Load(), int64(limit))
		chk.Len(seen, taskCount)
		for i := range taskCount {
			chk.Equal(1, seen[i], "task %d", i)
		}
		chk.Zero(pool.InFlight())
	})
}
