// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_WaitToStart(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(2)
	var wg sync.WaitGroup
	var count atomic.Int32
	for range 10 {
		wg.Add(1)
		pool.WaitToStart(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout before all tasks were executed.")
	}
	assert.Equal(t, int32(10), count.Load())

	// No parallelism: runs inline.
	pool.SetMaxParallelism(0)
	count.Store(0)
	pool.WaitToStart(func() { count.Add(1) })
	assert.Equal(t, int32(1), count.Load())
	assert.False(t, pool.StartIfAvailable(func() {}))
}

func TestPool_ParallelFor(t *testing.T) {
	for _, parallelism := range []int{0, 1, 3, -1} {
		pool := New()
		pool.SetMaxParallelism(parallelism)
		const numItems = 1000
		var visits [numItems]atomic.Int32
		pool.ParallelFor(numItems, 7, func(start, end int) {
			for ii := start; ii < end; ii++ {
				visits[ii].Add(1)
			}
		})
		for ii := range visits {
			require.Equalf(t, int32(1), visits[ii].Load(), "parallelism=%d, item #%d", parallelism, ii)
		}
	}

	// Empty range.
	New().ParallelFor(0, 1, func(start, end int) { t.Fatal("should not be called") })
}

func TestPool_ParallelForPanic(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(4)
	require.PanicsWithValue(t, "boom", func() {
		pool.ParallelFor(100, 1, func(start, end int) {
			if start <= 50 && 50 < end {
				panic("boom")
			}
		})
	})
}
