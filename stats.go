package hnsw

import "golang.org/x/exp/maps"

// statSet holds a per-worker array of named counters, merged only when
// reporting, per the design note on thread-local statistics: this avoids
// any contention on the hot insertion/search path.
type statSet struct {
	perWorker []map[string]uint64
}

func newStatSet(numWorkers int) *statSet {
	s := &statSet{perWorker: make([]map[string]uint64, numWorkers)}
	for i := range s.perWorker {
		s.perWorker[i] = make(map[string]uint64, 4)
	}
	return s
}

func (s *statSet) add(workerID int, name string, n uint64) {
	if s == nil || workerID < 0 || workerID >= len(s.perWorker) {
		return
	}
	s.perWorker[workerID][name] += n
}

// Merge sums every worker's counters into a single snapshot.
func (s *statSet) Merge() map[string]uint64 {
	out := make(map[string]uint64)
	if s == nil {
		return out
	}
	for _, m := range s.perWorker {
		for _, k := range maps.Keys(m) {
			out[k] += m[k]
		}
	}
	return out
}

const (
	statVisited  = "visited"
	statEval     = "eval"
	statSizeC    = "candidates"
	statRangeCut = "range_candidate"
)
