package hnsw

import (
	"fmt"
	"sync"
	"time"

	"github.com/TFMV/hnsw/internal/parallelfor"
)

// NodeID is a dense, append-only index into the vertex pool. Ids are
// stable for the life of the index (spec.md §3 invariant 6).
type NodeID = uint32

// node is a single vertex: its sampled level, its point data, and one
// outgoing neighbor list per layer it participates in (neighbors[l] for
// l in [0, level]). The order within a neighbor list carries no semantic
// meaning beyond being a stable enumeration (spec.md §3).
type node[P any] struct {
	level     uint32
	data      P
	neighbors [][]NodeID
}

type state int32

const (
	stateEmpty state = iota
	stateBuilding
	stateReady
)

// Params are the index's immutable-after-construction-begins parameters
// (spec.md §3).
type Params struct {
	// Dim is the vector dimension every point must share.
	Dim uint32
	// M is the target degree in layers >= 1; layer 0 uses 2*M.
	M uint32
	// Ml is the level-sampling scale (the source's m_l).
	Ml float64
	// EfConstruction is the beam width used while building.
	EfConstruction uint32
	// Alpha is the pruning coefficient used by the neighbor selector.
	// There is no default: spec.md's open question 1 flags the source's
	// alpha=5 default as a likely debugging artifact, so callers must
	// pick one. Published HNSW/Vamana work suggests 1.2-1.5.
	Alpha float32
	// BatchBase is the growth ratio for progressive batching.
	BatchBase float64
	// Seed fixes the per-worker RNG seed base for reproducible builds at
	// a given parallelism. Zero uses the current time.
	Seed int64
}

func (p Params) validate() error {
	switch {
	case p.Dim == 0:
		return fmt.Errorf("dim must be greater than 0")
	case p.M == 0:
		return fmt.Errorf("m must be greater than 0")
	case p.Ml <= 0:
		return fmt.Errorf("ml must be greater than 0, got %f", p.Ml)
	case p.EfConstruction == 0:
		return fmt.Errorf("ef_construction must be greater than 0")
	case p.Alpha < 1:
		return fmt.Errorf("alpha must be >= 1, got %f", p.Alpha)
	case p.BatchBase <= 1:
		return fmt.Errorf("batch_base must be greater than 1, got %f", p.BatchBase)
	}
	return nil
}

// Index is a Hierarchical Navigable Small World graph over points of type
// P, compared through the compile-time Descriptor D. The zero value is
// not usable; construct with NewIndex.
type Index[P any, D Descriptor[P]] struct {
	Params

	desc D

	mu       sync.RWMutex
	pool     []node[P]
	entrance []NodeID
	st       state

	rng      *workerRand
	counters *statSet
}

// NewIndex creates an empty index with the given descriptor and
// parameters.
func NewIndex[P any, D Descriptor[P]](desc D, params Params) (*Index[P, D], error) {
	if err := params.validate(); err != nil {
		return nil, newErr(InvalidArgument, "NewIndex", err)
	}
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Index[P, D]{
		Params:   params,
		desc:     desc,
		rng:      newWorkerRand(seed, parallelfor.NumWorkers()),
		counters: newStatSet(parallelfor.NumWorkers()),
	}, nil
}

// thresholdM returns the degree cap for layer l: 2*M at layer 0, M above.
func (idx *Index[P, D]) thresholdM(level uint32) uint32 {
	if level == 0 {
		return 2 * idx.M
	}
	return idx.M
}

// height returns L, the level of the entrance set, or 0 on an empty index.
func (idx *Index[P, D]) height() uint32 {
	if len(idx.entrance) == 0 {
		return 0
	}
	return idx.pool[idx.entrance[0]].level
}

// Len returns the number of points in the index.
func (idx *Index[P, D]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.pool)
}

// State reports the index's current lifecycle state.
func (idx *Index[P, D]) State() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	switch idx.st {
	case stateBuilding:
		return "Building"
	case stateReady:
		return "Ready"
	default:
		return "Empty"
	}
}

// Lookup returns the point stored at the given internal node id.
func (idx *Index[P, D]) Lookup(id NodeID) (P, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var zero P
	if int(id) >= len(idx.pool) {
		return zero, false
	}
	return idx.pool[id].data, true
}

// Stats returns a snapshot of the per-worker counters accumulated during
// InsertBatch/Build calls, merged into a single map (spec.md §9 "thread-local
// statistics"). Search does not contribute to these counters; use
// SearchControl.CountCmps for per-query accounting instead.
func (idx *Index[P, D]) Stats() map[string]uint64 {
	return idx.counters.Merge()
}

// externalID is a small helper so call sites read like the spec's
// id(p) -> u32 rather than a method on the descriptor value.
func (idx *Index[P, D]) externalID(id NodeID) uint32 {
	return idx.desc.ID(idx.pool[id].data)
}

// distance evaluates the configured Descriptor between two points.
func (idx *Index[P, D]) distance(a, b P) float32 {
	return idx.desc.Distance(a, b, idx.Dim)
}

// ptr is a small convenience for building the optional-uint64 knobs
// (SearchControl.LimitEval) from a literal.
func ptr[T any](v T) *T { return &v }
