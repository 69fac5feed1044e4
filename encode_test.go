package hnsw

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// S3: build, save to a buffer, load back, re-query -- results must be
// bit-identical.
func Test_ExportImport_S3_roundTripIdenticalResults(t *testing.T) {
	points := randomCorpus(2000, 16, 21)
	params := testParams()
	params.Dim = 16
	idx := buildIndex(t, points, params)

	byID := make(map[uint32]WithID, len(points))
	for _, p := range points {
		byID[p.ExtID] = p
	}

	var buf bytes.Buffer
	require.NoError(t, idx.Export(&buf))

	loaded, err := Import[WithID, L2Descriptor](&buf, L2Descriptor{}, func(id uint32) (WithID, error) {
		return byID[id], nil
	})
	require.NoError(t, err)
	require.Equal(t, idx.Len(), loaded.Len())

	queries := randomCorpus(20, 16, 22)
	for _, q := range queries {
		a, err := idx.Search(q, 10, 40, SearchControl{})
		require.NoError(t, err)
		b, err := loaded.Search(q, 10, 40, SearchControl{})
		require.NoError(t, err)
		require.Equal(t, a, b)
	}
}

func Test_ExportImport_neighborSetsPreserved(t *testing.T) {
	points := randomCorpus(300, 8, 23)
	idx := buildIndex(t, points, testParams())

	byID := make(map[uint32]WithID, len(points))
	for _, p := range points {
		byID[p.ExtID] = p
	}

	var buf bytes.Buffer
	require.NoError(t, idx.Export(&buf))
	loaded, err := Import[WithID, L2Descriptor](&buf, L2Descriptor{}, func(id uint32) (WithID, error) {
		return byID[id], nil
	})
	require.NoError(t, err)

	for i := range idx.pool {
		orig := &idx.pool[i]
		reloaded := &loaded.pool[i]
		require.Equal(t, orig.level, reloaded.level)
		for l := uint32(0); l <= orig.level; l++ {
			require.ElementsMatch(t, orig.neighbors[l], reloaded.neighbors[l])
		}
	}
}

// S6: flipping the version byte must surface InvalidFormat with no
// partial index returned.
func Test_Import_S6_corruptedVersionRejected(t *testing.T) {
	points := randomCorpus(50, 4, 24)
	params := testParams()
	params.Dim = 4
	idx := buildIndex(t, points, params)

	var buf bytes.Buffer
	require.NoError(t, idx.Export(&buf))

	data := buf.Bytes()
	// version is a little-endian u32 right after the 4-byte magic.
	data[4] = 2

	byID := make(map[uint32]WithID, len(points))
	for _, p := range points {
		byID[p.ExtID] = p
	}

	loaded, err := Import[WithID, L2Descriptor](bytes.NewReader(data), L2Descriptor{}, func(id uint32) (WithID, error) {
		return byID[id], nil
	})
	require.Error(t, err)
	require.Nil(t, loaded)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func Test_Import_badMagicRejected(t *testing.T) {
	_, err := Import[WithID, L2Descriptor](bytes.NewReader([]byte("XXXX")), L2Descriptor{}, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func Test_SavedIndex_createsFreshWhenMissing(t *testing.T) {
	dir := t.TempDir()
	saved, err := LoadSavedIndex[WithID, L2Descriptor](dir+"/idx.bin", L2Descriptor{}, testParams(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, saved.Len())
}

func Test_SavedIndex_saveAndReload(t *testing.T) {
	dir := t.TempDir()
	points := randomCorpus(100, 4, 25)
	params := testParams()
	params.Dim = 4

	byID := make(map[uint32]WithID, len(points))
	for _, p := range points {
		byID[p.ExtID] = p
	}
	get := func(id uint32) (WithID, error) { return byID[id], nil }

	saved, err := LoadSavedIndex[WithID, L2Descriptor](dir+"/idx.bin", L2Descriptor{}, params, get)
	require.NoError(t, err)
	require.NoError(t, saved.Build(points))
	require.NoError(t, saved.Save())

	reloaded, err := LoadSavedIndex[WithID, L2Descriptor](dir+"/idx.bin", L2Descriptor{}, params, get)
	require.NoError(t, err)
	require.Equal(t, len(points), reloaded.Len())
}
