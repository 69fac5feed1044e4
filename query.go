package hnsw

import "sort"

// Result is one hit returned by Search or SearchExact: the point's
// external id (spec.md's Descriptor.ID) and its distance to the query.
type Result struct {
	ID       uint32
	Distance float32
}

// Search runs the query driver of spec.md §4.5: a single-candidate
// descent from the entrance down to layer 1, followed by an ef-wide beam
// search at layer 0, truncated to the k closest results.
func (idx *Index[P, D]) Search(q P, k int, ef int, ctrl SearchControl) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.pool) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, newErr(InvalidArgument, "Search", errZeroK)
	}
	if ef < k {
		ef = k
	}

	entrance := idx.entrance
	if ctrl.IndicateEP != nil {
		entrance = []NodeID{*ctrl.IndicateEP}
	}

	cur := append([]NodeID(nil), entrance...)
	L := idx.pool[cur[0]].level
	for l := L; l > 0; l-- {
		res, err := searchLayer(idx, q, cur, 1, l, ctrl)
		if err != nil {
			return nil, err
		}
		if len(res) == 0 {
			break
		}
		cur = []NodeID{res[0].id}
	}

	res, err := searchLayer(idx, q, cur, ef, 0, ctrl)
	if err != nil {
		return nil, err
	}
	if len(res) > k {
		res = res[:k]
	}

	out := make([]Result, len(res))
	for i, c := range res {
		out[i] = Result{ID: idx.externalID(c.id), Distance: c.dist}
	}
	return out, nil
}

// Reranker recomputes distances for a small candidate set against a
// higher-fidelity representation than the one the index was built over
// -- the integration point product/scalar quantization would hook into,
// kept out of this package's scope (spec.md's Non-goals).
type Reranker[P any] interface {
	Rerank(q P, candidates []Result) ([]Result, error)
}

// SearchWithRerank runs Search with a widened beam (ef*expandFactor),
// then asks r to recompute distances over the wider candidate set before
// truncating to k. A nil Reranker makes this equivalent to Search.
func (idx *Index[P, D]) SearchWithRerank(q P, k, ef, expandFactor int, ctrl SearchControl, r Reranker[P]) ([]Result, error) {
	if r == nil {
		return idx.Search(q, k, ef, ctrl)
	}
	if expandFactor <= 0 {
		expandFactor = 3
	}
	wide, err := idx.Search(q, ef*expandFactor, ef*expandFactor, ctrl)
	if err != nil {
		return nil, err
	}
	ranked, err := r.Rerank(q, wide)
	if err != nil {
		return nil, err
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Distance < ranked[j].Distance })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// SearchExact performs a linear scan, used as the ground truth baseline
// for recall measurement (spec.md §8, S8).
func (idx *Index[P, D]) SearchExact(q P, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.pool) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, newErr(InvalidArgument, "SearchExact", errZeroK)
	}

	all := make([]Result, len(idx.pool))
	for i := range idx.pool {
		all[i] = Result{ID: idx.externalID(NodeID(i)), Distance: idx.distance(q, idx.pool[i].data)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}
