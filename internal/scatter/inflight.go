// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package scatter

import (
	"sync/atomic"
)

// inFlightCounter tracks running tasks in a [TaskPool]. It is incremented by
// the scattering goroutine and decremented by task goroutines, so it must be
// thread-safe.
type inFlightCounter struct {
	atomic.Int64
}

// incrementIfUnder increments the counter and returns true if the incremented
// value is less than or equal to limit. Otherwise it reverts its change and
// returns false. A negative limit means no limit.
func (c *inFlightCounter) incrementIfUnder(limit int) bool {
	if limit < 0 {
		c.Add(1)
		return true
	}
	// Tentatively increment and check against limit. If over, back out and try
	// again if another goroutine made room in between.
	for c.Add(1) > int64(limit) {
		if c.Add(-1) >= int64(limit) {
			return false
		}
	}
	return true
}

func (c *inFlightCounter) decrement() {
	if c.Add(-1) < 0 {
		panic("no tasks in flight")
	}
}
