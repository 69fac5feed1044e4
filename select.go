package hnsw

import "sort"

// selectNeighbors implements the alpha-pruning diversification rule of
// spec.md §4.3 ("select_neighbors_heuristic"), grounded directly on
// Parlay-HNSW's prune_heuristic: sort candidates ascending by distance to
// q, then greedily admit a candidate only if no already-admitted neighbor
// is alpha-closer to it than q is. Tie-breaking is stable with respect to
// the (dist, id) sort applied up front.
//
// When keepPruned is true, rejected candidates (best-first) pad the
// result up to M if the alpha rule alone admitted fewer -- the "Kept-
// pruned policy" of spec.md §4.3, default off.
func (idx *Index[P, D]) selectNeighbors(c []candidate, m uint32, keepPruned bool) []NodeID {
	sorted := make([]candidate, len(c))
	copy(sorted, c)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	var admitted []candidate
	var rejected []candidate
	for _, cand := range sorted {
		if uint32(len(admitted)) >= m {
			break
		}
		good := true
		for _, r := range admitted {
			d := idx.distance(idx.pool[cand.id].data, idx.pool[r.id].data)
			if d < cand.dist*idx.Alpha {
				good = false
				break
			}
		}
		if good {
			admitted = append(admitted, cand)
		} else {
			rejected = append(rejected, cand)
		}
	}

	if keepPruned {
		for _, cand := range rejected {
			if uint32(len(admitted)) >= m {
				break
			}
			admitted = append(admitted, cand)
		}
	}

	ids := make([]NodeID, len(admitted))
	for i, cand := range admitted {
		ids[i] = cand.id
	}
	return ids
}

// topM is the plain top-M truncation used by the batched inserter's
// reverse-edge installation (spec.md §4.4 phase C): sort ascending by
// distance and keep the first m, with no diversification. This is the
// intentional asymmetry documented in spec.md §9: forward edges are
// alpha-pruned, reverse-edge overflow is not.
func (idx *Index[P, D]) topM(c []candidate, m uint32) []NodeID {
	sorted := make([]candidate, len(c))
	copy(sorted, c)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	if uint32(len(sorted)) > m {
		sorted = sorted[:m]
	}
	ids := make([]NodeID, len(sorted))
	for i, cand := range sorted {
		ids[i] = cand.id
	}
	return ids
}
