package hnsw

import (
	"errors"
	"sort"

	"github.com/chewxy/math32"

	"github.com/TFMV/hnsw/heap"
)

var (
	errEmptySeeds    = errors.New("empty seed set")
	errZeroEf        = errors.New("ef must be greater than 0")
	errZeroK         = errors.New("k must be greater than 0")
	errZeroLimitEval = errors.New("limit_eval must be greater than 0 if set")
)

// SearchControl carries the recognized search-tuning knobs of spec.md §6.
type SearchControl struct {
	// LimitEval caps the number of vertices popped from the unvisited
	// frontier. Nil means unbounded, mirroring the original's
	// std::optional<uint32_t> limit_eval with value_or(n) semantics. A
	// non-nil value pointing at 0 is rejected with InvalidArgument.
	LimitEval *uint64
	// Beta is the early-termination slack: the layer search stops once
	// the best remaining candidate's distance exceeds Beta times the
	// worst distance currently held in the frontier. Zero is treated as
	// 1.0 (no early termination from this rule, since the best candidate
	// can never exceed the worst member of a frontier it would join).
	Beta float32
	// IndicateEP overrides the entrance for this query.
	IndicateEP *NodeID
	// CountCmps, if non-nil, is incremented by the number of distance
	// computations performed.
	CountCmps *uint64
	// Filter, if non-nil, is consulted during layer-0 expansion; a
	// neighbor whose external id it rejects is never added to the
	// frontier. Seeds are not checked against it, so a rejected seed can
	// still appear in the result. This is the inline hook
	// payload.FilteredSearch builds on.
	Filter func(externalID uint32) bool
	// K and Cut together enable the optional k-cut frontier truncation
	// of spec.md §4.2: when both are set (K>0, Cut>1), the frontier may
	// be pruned to the largest prefix whose distances do not exceed
	// Cut*d_k, never below the frontier's size before the merge that
	// produced it.
	K   int
	Cut float32
}

func (c SearchControl) beta() float32 {
	if c.Beta == 0 {
		return 1.0
	}
	return c.Beta
}

// candidate is a (node, distance) pair ordered (dist asc, id asc), the
// load-bearing tie-break of spec.md §4.2.
type candidate struct {
	id   NodeID
	dist float32
}

func (c candidate) Less(o candidate) bool {
	cmp := cmpDist(c.dist, o.dist)
	if cmp != 0 {
		return cmp < 0
	}
	return c.id < o.id
}

// seenFilter is the fixed-capacity, single-probe hash filter of spec.md
// §4.2: collisions are accepted as false positives that cause missed
// expansions, which is the point -- it trades recall for a flat, cache-
// friendly membership structure instead of a tree or growable hash map.
type seenFilter struct {
	slots []int64 // NodeID stored widened so -1 can mean "empty" (NodeID is unsigned)
	mask  uint32
}

func newSeenFilter(ef int) *seenFilter {
	b := 10
	if ef > 0 {
		lg := 0
		sq := ef * ef
		for (1 << lg) < sq {
			lg++
		}
		if lg-2 > b {
			b = lg - 2
		}
	}
	size := 1 << uint(b)
	slots := make([]int64, size)
	for i := range slots {
		slots[i] = -1
	}
	return &seenFilter{slots: slots, mask: uint32(size - 1)}
}

func (f *seenFilter) hash(id NodeID) uint32 {
	x := id
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x & f.mask
}

// testAndSet reports whether id was already seen (a true visit or a hash
// collision with a different id occupying its slot), and marks the slot
// occupied by id either way.
func (f *seenFilter) testAndSet(id NodeID) bool {
	slot := f.hash(id)
	occupant := f.slots[slot]
	f.slots[slot] = int64(id)
	return occupant != -1
}

// searchLayer implements the beam search of spec.md §4.2 over the
// subgraph induced by vertices with level >= l, using neighbors[l] as
// adjacency, starting from seeds. It returns at most ef candidates sorted
// ascending by (dist, id).
func searchLayer[P any, D Descriptor[P]](idx *Index[P, D], q P, seeds []NodeID, ef int, l uint32, ctrl SearchControl) ([]candidate, error) {
	if len(seeds) == 0 {
		return nil, newErr(InvalidArgument, "searchLayer", errEmptySeeds)
	}
	if ef <= 0 {
		return nil, newErr(InvalidArgument, "searchLayer", errZeroEf)
	}
	if ctrl.LimitEval != nil && *ctrl.LimitEval == 0 {
		return nil, newErr(InvalidArgument, "searchLayer", errZeroLimitEval)
	}
	// Unbounded resolves to the pool size, the original's limit_eval.value_or(n):
	// large enough that the loop below is never cut short by it, while still
	// satisfying the >=2*ef early-exit heuristic the way a real bound would.
	limitEval := uint64(len(idx.pool))
	if ctrl.LimitEval != nil {
		limitEval = *ctrl.LimitEval
	}

	var cmps uint64
	dist := func(id NodeID) float32 {
		cmps++
		return idx.distance(q, idx.pool[id].data)
	}

	seen := newSeenFilter(ef)
	visited := make(map[NodeID]bool, ef*2)
	inF := make(map[NodeID]bool, ef)

	var F []candidate
	uf := heap.Heap[candidate]{}
	uf.Init(make([]candidate, 0, ef*2))

	for _, s := range seeds {
		if seen.testAndSet(s) {
			continue
		}
		c := candidate{id: s, dist: dist(s)}
		F = insertSorted(F, c, ef)
		inF[c.id] = true
		uf.Push(c)
	}

	var visitedCount uint64
	beta := ctrl.beta()

	for uf.Len() > 0 && visitedCount < limitEval {
		var current candidate
		found := false
		for uf.Len() > 0 {
			c := uf.Pop()
			if !inF[c.id] || visited[c.id] {
				continue
			}
			current = c
			found = true
			break
		}
		if !found {
			break
		}

		if len(F) > 0 {
			worst := F[len(F)-1].dist
			if current.dist > beta*worst {
				break
			}
		}

		visited[current.id] = true
		visitedCount++

		nbh := idx.pool[current.id].neighbors
		if int(l) >= len(nbh) {
			continue
		}
		var expanded []candidate
		for _, v := range nbh[l] {
			if seen.testAndSet(v) {
				continue
			}
			if ctrl.Filter != nil && l == 0 && !ctrl.Filter(idx.externalID(v)) {
				continue
			}
			expanded = append(expanded, candidate{id: v, dist: dist(v)})
		}

		cutoff := math32.Inf(1)
		if len(F) == ef {
			cutoff = F[ef-1].dist
		}
		var survivors []candidate
		for _, c := range expanded {
			if c.dist < cutoff {
				survivors = append(survivors, c)
			}
		}

		moreRemains := uf.Len() > 0
		if len(survivors) == 0 || (limitEval >= uint64(2*ef) && len(survivors) < ef/8 && moreRemains) {
			continue
		}

		sort.Slice(survivors, func(i, j int) bool { return survivors[i].Less(survivors[j]) })
		newF := mergeSorted(F, survivors, ef)
		for _, c := range newF {
			if !inF[c.id] {
				inF[c.id] = true
				if !visited[c.id] {
					uf.Push(c)
				}
			}
		}
		// Drop membership for anything truncated out of the frontier so
		// stale heap entries are recognized as such on a later pop.
		stillIn := make(map[NodeID]bool, len(newF))
		for _, c := range newF {
			stillIn[c.id] = true
		}
		for id := range inF {
			if !stillIn[id] {
				delete(inF, id)
			}
		}
		prevLen := len(F)
		F = newF

		if ctrl.K > 0 && ctrl.Cut > 1 && len(F) > ctrl.K {
			F = kCut(F, ctrl.K, ctrl.Cut, prevLen)
		}
	}

	if ctrl.CountCmps != nil {
		*ctrl.CountCmps += cmps
	}

	if len(F) > ef {
		F = F[:ef]
	}
	return F, nil
}

// insertSorted inserts c into the ascending-sorted slice F, keeping it
// capped at ef elements (dropping the new worst element if at capacity).
func insertSorted(F []candidate, c candidate, ef int) []candidate {
	i := sort.Search(len(F), func(i int) bool { return c.Less(F[i]) })
	F = append(F, candidate{})
	copy(F[i+1:], F[i:])
	F[i] = c
	if len(F) > ef {
		F = F[:ef]
	}
	return F
}

// mergeSorted merges two ascending-sorted, duplicate-free slices and
// truncates the result to ef, matching spec.md §4.2's "sort candidates,
// deduplicate, set-union with F ordered, truncate to top ef".
func mergeSorted(a, b []candidate, ef int) []candidate {
	out := make([]candidate, 0, len(a)+len(b))
	seen := make(map[NodeID]bool, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		var next candidate
		if a[i].Less(b[j]) {
			next = a[i]
			i++
		} else {
			next = b[j]
			j++
		}
		if !seen[next.id] {
			seen[next.id] = true
			out = append(out, next)
		}
	}
	for ; i < len(a); i++ {
		if !seen[a[i].id] {
			seen[a[i].id] = true
			out = append(out, a[i])
		}
	}
	for ; j < len(b); j++ {
		if !seen[b[j].id] {
			seen[b[j].id] = true
			out = append(out, b[j])
		}
	}
	if len(out) > ef {
		out = out[:ef]
	}
	return out
}

// kCut truncates F to the largest prefix whose distances do not exceed
// cut*d_k, where d_k is the distance of the k-th best, never shrinking
// below floor (the frontier's size before the merge).
func kCut(F []candidate, k int, cut float32, floor int) []candidate {
	if k <= 0 || k > len(F) {
		return F
	}
	dk := F[k-1].dist
	limit := dk * cut
	n := len(F)
	for n > floor && n > 0 && F[n-1].dist > limit {
		n--
	}
	if n < floor {
		n = floor
	}
	if n > len(F) {
		n = len(F)
	}
	return F[:n]
}
