package hnsw

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomCorpus(n int, dim int, seed int64) []WithID {
	rng := rand.New(rand.NewSource(seed))
	out := make([]WithID, n)
	for i := 0; i < n; i++ {
		v := make(Vector, dim)
		for d := range v {
			v[d] = rng.Float32()
		}
		out[i] = WithID{ExtID: uint32(i), Vec: v}
	}
	return out
}

func buildIndex(t *testing.T, points []WithID, params Params) *Index[WithID, L2Descriptor] {
	t.Helper()
	idx, err := NewIndex[WithID, L2Descriptor](L2Descriptor{}, params)
	require.NoError(t, err)
	require.NoError(t, idx.Build(points))
	return idx
}

func Test_Build_degreeCapInvariant(t *testing.T) {
	points := randomCorpus(300, 8, 1)
	idx := buildIndex(t, points, testParams())

	for i := range idx.pool {
		n := &idx.pool[i]
		for l := uint32(0); l <= n.level; l++ {
			require.LessOrEqual(t, len(n.neighbors[l]), int(idx.thresholdM(l)))
		}
	}
}

func Test_Build_levelMonotonicity(t *testing.T) {
	points := randomCorpus(300, 8, 2)
	idx := buildIndex(t, points, testParams())

	for i := range idx.pool {
		n := &idx.pool[i]
		for l := uint32(0); l <= n.level; l++ {
			for _, nb := range n.neighbors[l] {
				require.GreaterOrEqual(t, idx.pool[nb].level, l)
			}
		}
	}
}

func Test_Build_entranceValidity(t *testing.T) {
	points := randomCorpus(300, 8, 3)
	idx := buildIndex(t, points, testParams())

	require.NotEmpty(t, idx.entrance)
	L := idx.height()
	for _, e := range idx.entrance {
		require.Equal(t, L, idx.pool[e].level)
	}
}

func Test_Build_noSelfEdgesNoDuplicates(t *testing.T) {
	points := randomCorpus(300, 8, 4)
	idx := buildIndex(t, points, testParams())

	for i := range idx.pool {
		n := &idx.pool[i]
		for l := uint32(0); l <= n.level; l++ {
			seen := make(map[NodeID]bool, len(n.neighbors[l]))
			for _, nb := range n.neighbors[l] {
				require.NotEqual(t, NodeID(i), nb)
				require.False(t, seen[nb])
				seen[nb] = true
			}
		}
	}
}

func Test_Build_exactCorrectnessOnTinyInput(t *testing.T) {
	points := randomCorpus(50, 4, 5)
	params := testParams()
	params.Dim = 4
	params.EfConstruction = 64
	idx := buildIndex(t, points, params)

	q := points[7]
	approx, err := idx.Search(q, 5, len(points), SearchControl{})
	require.NoError(t, err)
	exact, err := idx.SearchExact(q, 5)
	require.NoError(t, err)

	require.Equal(t, len(exact), len(approx))
	for i := range exact {
		require.Equal(t, exact[i].ID, approx[i].ID)
		require.InDelta(t, exact[i].Distance, approx[i].Distance, 1e-5)
	}
}

func Test_Build_recallMonotonicity(t *testing.T) {
	points := randomCorpus(500, 8, 6)
	params := testParams()
	params.EfConstruction = 64
	idx := buildIndex(t, points, params)

	recallAt := func(ef int) float64 {
		var hits, total int
		for i := 0; i < 20; i++ {
			q := points[i*5]
			approx, err := idx.Search(q, 10, ef, SearchControl{})
			require.NoError(t, err)
			exact, err := idx.SearchExact(q, 10)
			require.NoError(t, err)
			exactSet := make(map[uint32]bool, len(exact))
			for _, r := range exact {
				exactSet[r.ID] = true
			}
			for _, r := range approx {
				if exactSet[r.ID] {
					hits++
				}
			}
			total += len(exact)
		}
		return float64(hits) / float64(total)
	}

	require.LessOrEqual(t, recallAt(10), recallAt(80)+1e-9)
}

func Test_Build_twoBatchesVsOneBatchRecallWithinTolerance(t *testing.T) {
	points := randomCorpus(1000, 8, 9)
	params := testParams()
	params.Seed = 123
	params.EfConstruction = 48

	idxTwoBatch, err := NewIndex[WithID, L2Descriptor](L2Descriptor{}, params)
	require.NoError(t, err)
	require.NoError(t, idxTwoBatch.InsertBatch(points[:500]))
	require.NoError(t, idxTwoBatch.InsertBatch(points[500:]))

	idxOneBatch, err := NewIndex[WithID, L2Descriptor](L2Descriptor{}, params)
	require.NoError(t, err)
	require.NoError(t, idxOneBatch.InsertBatch(points))

	queries := randomCorpus(50, 8, 10)
	var hitsTwo, hitsOne, total int
	for _, q := range queries {
		exact, err := idxOneBatch.SearchExact(q, 10)
		require.NoError(t, err)
		exactSet := make(map[uint32]bool, len(exact))
		for _, r := range exact {
			exactSet[r.ID] = true
		}
		total += len(exact)

		a, err := idxTwoBatch.Search(q, 10, 48, SearchControl{})
		require.NoError(t, err)
		for _, r := range a {
			if exactSet[r.ID] {
				hitsTwo++
			}
		}

		b, err := idxOneBatch.Search(q, 10, 48, SearchControl{})
		require.NoError(t, err)
		for _, r := range b {
			if exactSet[r.ID] {
				hitsOne++
			}
		}
	}

	recallTwo := float64(hitsTwo) / float64(total)
	recallOne := float64(hitsOne) / float64(total)
	require.LessOrEqual(t, math.Abs(recallTwo-recallOne), 0.02)
}

func Test_Build_bootstrapSingleNodeIsSoleEntrance(t *testing.T) {
	idx, err := NewIndex[WithID, L2Descriptor](L2Descriptor{}, testParams())
	require.NoError(t, err)
	require.NoError(t, idx.Build([]WithID{{ExtID: 1, Vec: Vector{0, 0}}}))

	require.Equal(t, 1, idx.Len())
	require.Equal(t, []NodeID{0}, idx.entrance)
}
