// Package parallelfor provides a minimal parallel-for with stable
// per-chunk worker ids, generalized from the hand-rolled goroutine split
// in coder-hnsw's Graph.ParallelSearch. The core HNSW package treats this
// as a pluggable executor: any type exposing the same two functions could
// stand in for it, but this one is what the index actually runs on.
package parallelfor

import (
	"runtime"
	"sync"
)

// numWorkers is sized once at package init, matching the teacher's
// runtime.NumCPU() fallback in ParallelSearch.
var numWorkers = runtime.GOMAXPROCS(0)

// NumWorkers returns the fixed number of worker slots parallel-for work
// is partitioned across. Per-worker RNGs (see level.go) are seeded from
// slot indices in [0, NumWorkers()), so strict determinism requires a
// fixed worker count across runs -- exactly the caveat the design notes
// call out.
func NumWorkers() int {
	return numWorkers
}

// SetNumWorkers overrides the worker count, primarily for deterministic
// tests. It must be called before any Index is built, never concurrently
// with in-flight work.
func SetNumWorkers(n int) {
	if n > 0 {
		numWorkers = n
	}
}

// For runs body(i) for i in [0, n), fanned out across up to NumWorkers()
// goroutines, and returns once every call has completed -- a global
// barrier, matching the phase-boundary requirement of the concurrency
// model: every For call is itself the barrier between construction
// phases and between layers.
func For(n int, body func(i int)) {
	ForChunks(n, func(_ int, start, end int) {
		for i := start; i < end; i++ {
			body(i)
		}
	})
}

// ForChunks partitions [0, n) into up to NumWorkers() contiguous chunks
// and runs body(workerID, start, end) for each, where workerID is a
// stable index in [0, NumWorkers()) for the duration of the call. This is
// the primitive the batched inserter uses when a step
// needs a per-worker resource (an RNG, a stat-counter slot) rather than
// just an index.
func ForChunks(n int, body func(workerID, start, end int)) {
	if n <= 0 {
		return
	}
	workers := numWorkers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		body(0, 0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(workerID, start, end int) {
			defer wg.Done()
			body(workerID, start, end)
		}(w, start, end)
	}
	wg.Wait()
}
