package hnsw

import (
	"math"

	"github.com/TFMV/hnsw/internal/parallelfor"
)

// InsertBatch runs the per-batch pipeline of spec.md §4.4 for exactly the
// batch given -- it does not itself split points into progressively
// growing batches; see Build for that. It is the primitive the two-batch
// vs. one-batch recall comparison (spec.md §8, S5) exercises directly:
// splitting the same points into different batches generally yields a
// different graph, so only the recall of the two is compared.
func (idx *Index[P, D]) InsertBatch(points []P) error {
	if len(points) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.st = stateBuilding

	if len(idx.pool) == 0 {
		idx.bootstrap(points[0])
		points = points[1:]
		if len(points) == 0 {
			idx.st = stateReady
			return nil
		}
	}

	idx.insertBatchLocked(points)
	idx.st = stateReady
	return nil
}

// Build processes the full corpus in geometrically growing batches
// (spec.md §4.4 "Progressive batching"), bootstrapping the index from
// the first point if it is currently empty.
func (idx *Index[P, D]) Build(points []P) error {
	if len(points) == 0 {
		return nil
	}

	idx.mu.Lock()
	bootstrapped := false
	if len(idx.pool) == 0 {
		idx.st = stateBuilding
		idx.bootstrap(points[0])
		bootstrapped = true
	}
	idx.mu.Unlock()

	rest := points
	if bootstrapped {
		rest = points[1:]
	}
	if len(rest) == 0 {
		idx.mu.Lock()
		idx.st = stateReady
		idx.mu.Unlock()
		return nil
	}

	n := len(idx.pool) + len(rest)
	sizeLimit := int(math.Ceil(0.02 * float64(n)))
	if sizeLimit < 1 {
		sizeLimit = 1
	}

	pos := 0
	for pos < len(rest) {
		built := len(idx.pool)
		batchEnd := int(math.Ceil(float64(built) * idx.BatchBase)) // count of points to add this round, relative to rest
		if batchEnd > sizeLimit {
			batchEnd = sizeLimit
		}
		if batchEnd <= 0 {
			batchEnd = 1
		}
		if pos+batchEnd > len(rest) {
			batchEnd = len(rest) - pos
		}

		idx.mu.Lock()
		idx.insertBatchLocked(rest[pos : pos+batchEnd])
		idx.mu.Unlock()

		pos += batchEnd
	}

	idx.mu.Lock()
	idx.st = stateReady
	idx.mu.Unlock()
	return nil
}

// bootstrap creates the very first node as the sole entrance, with no
// search (spec.md §4.4 "Initial bootstrap"). Caller holds idx.mu.
func (idx *Index[P, D]) bootstrap(p P) {
	lvl := sampleLevel(idx.rng.forWorker(0), idx.Ml)
	idx.pool = append(idx.pool, node[P]{
		level:     lvl,
		data:      p,
		neighbors: make([][]NodeID, lvl+1),
	})
	idx.entrance = []NodeID{0}
}

// insertBatchLocked runs the 4-step per-batch pipeline of spec.md §4.4 on
// a non-empty index. Caller holds idx.mu for the duration.
func (idx *Index[P, D]) insertBatchLocked(points []P) {
	L := idx.height()
	offset := NodeID(len(idx.pool))
	b := len(points)

	// Step 1: materialize new nodes in parallel.
	idx.pool = append(idx.pool, make([]node[P], b)...)
	newIDs := make([]NodeID, b)
	parallelfor.ForChunks(b, func(workerID, start, end int) {
		rng := idx.rng.forWorker(workerID)
		for i := start; i < end; i++ {
			lvl := sampleLevel(rng, idx.Ml)
			id := offset + NodeID(i)
			idx.pool[id] = node[P]{
				level:     lvl,
				data:      points[i],
				neighbors: make([][]NodeID, lvl+1),
			}
			newIDs[i] = id
		}
	})

	// Step 2: descend upper layers to find a warm seed for each new node.
	seeds := make([][]NodeID, b)
	parallelfor.ForChunks(b, func(workerID, start, end int) {
		for i := start; i < end; i++ {
			id := newIDs[i]
			lvl := idx.pool[id].level
			cur := append([]NodeID(nil), idx.entrance...)
			var cmps uint64
			for l := L; l > lvl && l > 0; l-- {
				res, err := searchLayer(idx, idx.pool[id].data, cur, int(idx.EfConstruction), l, SearchControl{CountCmps: &cmps})
				if err != nil || len(res) == 0 {
					break
				}
				cur = []NodeID{res[0].id}
			}
			idx.counters.add(workerID, statEval, cmps)
			seeds[i] = cur
		}
	})

	// Step 3: install layer by layer, L down to 0, with a barrier between
	// phases and between levels.
	for lvl := int(L); lvl >= 0; lvl-- {
		l := uint32(lvl)
		selected := make([][]NodeID, b)
		type reverseEdge struct {
			target NodeID
			source NodeID
		}
		pending := make([][]reverseEdge, b)

		// Phase A: search + select, per new node.
		parallelfor.ForChunks(b, func(workerID, start, end int) {
			for i := start; i < end; i++ {
				id := newIDs[i]
				if l > idx.pool[id].level {
					continue
				}
				var cmps uint64
				res, err := searchLayer(idx, idx.pool[id].data, seeds[i], int(idx.EfConstruction), l, SearchControl{CountCmps: &cmps})
				idx.counters.add(workerID, statEval, cmps)
				if err != nil {
					continue
				}
				idx.counters.add(workerID, statVisited, uint64(len(res)))
				chosen := idx.selectNeighbors(res, idx.thresholdM(l), false)
				selected[i] = chosen

				edges := make([]reverseEdge, len(chosen))
				for j, v := range chosen {
					edges[j] = reverseEdge{target: v, source: id}
				}
				pending[i] = edges

				warmSeeds := make([]NodeID, len(res))
				for j, c := range res {
					warmSeeds[j] = c.id
				}
				seeds[i] = warmSeeds
			}
		})

		// Phase B: install forward edges, one writer per new node.
		parallelfor.For(b, func(i int) {
			id := newIDs[i]
			if l > idx.pool[id].level {
				return
			}
			idx.pool[id].neighbors[l] = selected[i]
		})

		// Phase C: group pending reverse edges by target, install with at
		// most one worker touching any given target's neighbor list.
		grouped := make(map[NodeID][]NodeID)
		for i := range pending {
			for _, e := range pending[i] {
				grouped[e.target] = append(grouped[e.target], e.source)
			}
		}
		targets := make([]NodeID, 0, len(grouped))
		for v := range grouped {
			targets = append(targets, v)
		}
		parallelfor.For(len(targets), func(i int) {
			v := targets[i]
			add := grouped[v]
			idx.installReverseEdges(v, l, add)
		})
	}

	// Step 4: entrance update.
	var highest NodeID
	highestLevel := uint32(0)
	for i, id := range newIDs {
		if i == 0 || idx.pool[id].level > highestLevel {
			highest = id
			highestLevel = idx.pool[id].level
		}
	}
	switch {
	case highestLevel > L:
		idx.entrance = []NodeID{highest}
	case highestLevel == L:
		idx.entrance = append(idx.entrance, highest)
	}
}

// installReverseEdges forms the union of v's current neighbors[l] and the
// newly proposed incoming edges, installing the union directly if it fits
// under the degree cap, or a plain top-M truncation (not alpha-pruned)
// otherwise -- the asymmetry documented in spec.md §9.
func (idx *Index[P, D]) installReverseEdges(v NodeID, l uint32, add []NodeID) {
	if int(l) >= len(idx.pool[v].neighbors) {
		return
	}
	existing := idx.pool[v].neighbors[l]
	seen := make(map[NodeID]bool, len(existing)+len(add))
	union := make([]NodeID, 0, len(existing)+len(add))
	for _, id := range existing {
		if id == v || seen[id] {
			continue
		}
		seen[id] = true
		union = append(union, id)
	}
	for _, id := range add {
		if id == v || seen[id] {
			continue
		}
		seen[id] = true
		union = append(union, id)
	}

	limit := idx.thresholdM(l)
	if uint32(len(union)) <= limit {
		idx.pool[v].neighbors[l] = union
		return
	}

	cands := make([]candidate, len(union))
	for i, id := range union {
		cands[i] = candidate{id: id, dist: idx.distance(idx.pool[v].data, idx.pool[id].data)}
	}
	idx.pool[v].neighbors[l] = idx.topM(cands, limit)
}
