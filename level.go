package hnsw

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// workerRand holds one *rand.Rand per worker slot, seeded once from the
// worker id, per the design note "seed with worker_id() at first use" --
// the Go analogue of the original's thread_local mt19937 seeded from
// parlay::worker_id(). Strict determinism across runs requires a fixed
// worker count, since the slot a given insert lands on depends on how
// work was chunked.
type workerRand struct {
	seed int64
	rngs []*rand.Rand
}

func newWorkerRand(seed int64, numWorkers int) *workerRand {
	return &workerRand{seed: seed, rngs: make([]*rand.Rand, numWorkers)}
}

func (w *workerRand) forWorker(id int) *rand.Rand {
	if w.rngs[id] == nil {
		w.rngs[id] = rand.New(rand.NewSource(w.seed + int64(id)))
	}
	return w.rngs[id]
}

// sampleLevel draws u ~ Uniform(0,1] and returns floor(-ln(u) * ml),
// the closed-form geometric-level draw of spec.md §4.1 (the original's
// get_level_random: `uint32_t(-log(dis(gen)) * m_l)`).
func sampleLevel(rng *rand.Rand, ml float64) uint32 {
	// rng.Float64() draws from [0,1); flip to (0,1] so log never sees 0.
	u := 1 - rng.Float64()
	lvl := math32.Floor(-math32.Log(float32(u)) * float32(ml))
	if lvl < 0 {
		return 0
	}
	return uint32(lvl)
}
