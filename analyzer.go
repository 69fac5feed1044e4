package hnsw

// Analyzer provides introspection over an Index's layered structure,
// adapted from the teacher's Analyzer[T Embeddable] -- fixed here to
// work against Index[P, D] (the teacher's original pairs Analyzer[T
// Embeddable] with Graph[T], which requires T cmp.Ordered; Embeddable
// values are not in general comparable, so the teacher's own types
// could never have satisfied that constraint together).
type Analyzer[P any, D Descriptor[P]] struct {
	Index *Index[P, D]
}

// Height returns L+1, the number of layers present (layer 0 through the
// entrance's level), or 0 on an empty index.
func (a *Analyzer[P, D]) Height() int {
	a.Index.mu.RLock()
	defer a.Index.mu.RUnlock()
	if len(a.Index.pool) == 0 {
		return 0
	}
	return int(a.Index.height()) + 1
}

// Connectivity returns the average out-degree at each non-empty layer,
// indexed from layer 0 upward.
func (a *Analyzer[P, D]) Connectivity() []float64 {
	a.Index.mu.RLock()
	defer a.Index.mu.RUnlock()

	h := a.Index.height()
	out := make([]float64, h+1)
	counts := make([]int, h+1)
	for i := range a.Index.pool {
		n := &a.Index.pool[i]
		for l := uint32(0); l <= n.level; l++ {
			out[l] += float64(len(n.neighbors[l]))
			counts[l]++
		}
	}
	for l := range out {
		if counts[l] > 0 {
			out[l] /= float64(counts[l])
		}
	}
	return out
}

// Topography returns the number of nodes present at each layer, indexed
// from layer 0 upward (layer 0 always equals Index.Len()).
func (a *Analyzer[P, D]) Topography() []int {
	a.Index.mu.RLock()
	defer a.Index.mu.RUnlock()

	h := a.Index.height()
	out := make([]int, h+1)
	for i := range a.Index.pool {
		lvl := a.Index.pool[i].level
		for l := uint32(0); l <= lvl; l++ {
			out[l]++
		}
	}
	return out
}
