package payload

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TFMV/hnsw"
)

type doc struct {
	Category string `json:"category"`
}

func buildTestIndex(t *testing.T, n int) (*hnsw.Index[hnsw.WithID, hnsw.L2Descriptor], *MemoryStore) {
	t.Helper()
	idx, err := hnsw.NewIndex[hnsw.WithID, hnsw.L2Descriptor](hnsw.L2Descriptor{}, hnsw.Params{
		Dim: 4, M: 8, Ml: 8, EfConstruction: 32, Alpha: 1.2, BatchBase: 2, Seed: 1,
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	store := NewMemoryStore()
	points := make([]hnsw.WithID, n)
	for i := 0; i < n; i++ {
		v := make(hnsw.Vector, 4)
		for d := range v {
			v[d] = rng.Float32()
		}
		points[i] = hnsw.WithID{ExtID: uint32(i), Vec: v}

		category := "a"
		if i%2 == 0 {
			category = "b"
		}
		require.NoError(t, Add(store, uint32(i), doc{Category: category}))
	}
	require.NoError(t, idx.Build(points))
	return idx, store
}

func Test_MemoryStore_addGetDelete(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, Add(s, 1, doc{Category: "x"}))

	v, ok := s.Get(1)
	require.True(t, ok)
	var d doc
	require.NoError(t, json.Unmarshal(v, &d))
	require.Equal(t, "x", d.Category)

	require.True(t, s.Delete(1))
	_, ok = s.Get(1)
	require.False(t, ok)
}

func Test_Add_rejectsInvalidJSONString(t *testing.T) {
	s := NewMemoryStore()
	err := Add(s, 1, "not json")
	require.Error(t, err)
}

func Test_BatchAdd_mismatchedLengthsIsError(t *testing.T) {
	s := NewMemoryStore()
	err := s.BatchAdd([]uint32{1, 2}, []json.RawMessage{[]byte("{}")})
	require.Error(t, err)
}

func Test_FilteredSearch_onlyReturnsMatchingCategory(t *testing.T) {
	idx, store := buildTestIndex(t, 300)

	q, ok := idx.Lookup(0)
	require.True(t, ok)

	byCategory := func(want string) Filter {
		return func(meta json.RawMessage) bool {
			var d doc
			if err := json.Unmarshal(meta, &d); err != nil {
				return false
			}
			return d.Category == want
		}
	}

	results, err := FilteredSearch[hnsw.WithID, hnsw.L2Descriptor](idx, store, q, 5, 16, 3, byCategory("b"))
	require.NoError(t, err)
	for _, r := range results {
		raw, ok := store.Get(r.ID)
		require.True(t, ok)
		var d doc
		require.NoError(t, json.Unmarshal(raw, &d))
		require.Equal(t, "b", d.Category)
	}
}

func Test_FilteredSearch_zeroKIsError(t *testing.T) {
	idx, store := buildTestIndex(t, 20)
	q, _ := idx.Lookup(0)
	_, err := FilteredSearch[hnsw.WithID, hnsw.L2Descriptor](idx, store, q, 0, 10, 3)
	require.Error(t, err)
}
