package parallelfor

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_For_visitsEveryIndexExactlyOnce(t *testing.T) {
	n := 1000
	seen := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	})
	for i, c := range seen {
		require.EqualValues(t, 1, c, "index %d", i)
	}
}

func Test_ForChunks_workerIDsStableWithinChunk(t *testing.T) {
	n := 500
	workerOf := make([]int, n)
	ForChunks(n, func(workerID, start, end int) {
		for i := start; i < end; i++ {
			workerOf[i] = workerID
		}
	})

	// Every index in the same contiguous chunk must report the same
	// worker id the whole call saw. Chunks are contiguous and handed out
	// in worker order, so the ids never decrease along the range.
	require.Equal(t, n, len(workerOf))
	for i := 1; i < n; i++ {
		require.GreaterOrEqual(t, workerOf[i], workerOf[i-1], "index %d", i)
	}
	require.Less(t, workerOf[n-1], NumWorkers())
}

func Test_SetNumWorkers_boundsConcurrency(t *testing.T) {
	orig := NumWorkers()
	defer SetNumWorkers(orig)

	SetNumWorkers(2)
	require.Equal(t, 2, NumWorkers())

	max := int32(0)
	var active int32
	ForChunks(100, func(workerID, start, end int) {
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&max)
			if n <= cur || atomic.CompareAndSwapInt32(&max, cur, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
	})
	require.LessOrEqual(t, max, int32(2))
}

func Test_For_zeroN_noop(t *testing.T) {
	called := false
	For(0, func(i int) { called = true })
	require.False(t, called)
}
