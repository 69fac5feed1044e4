// Command example builds a small HNSW index over random vectors, runs one
// search, writes a result summary to disk, and opens example_index.bin,
// saving the index there if that file is missing or empty.
package main

import (
	"bytes"
	"fmt"
	"log"
	"math/rand"

	"github.com/natefinch/atomic"

	"github.com/TFMV/hnsw"
)

const dim = 8

func randomPoint(id uint32, rng *rand.Rand) hnsw.WithID {
	v := make(hnsw.Vector, dim)
	for i := range v {
		v[i] = rng.Float32()
	}
	return hnsw.WithID{ExtID: id, Vec: v}
}

func main() {
	idx, err := hnsw.NewIndex[hnsw.WithID, hnsw.L2Descriptor](hnsw.L2Descriptor{}, hnsw.Params{
		Dim:            dim,
		M:              16,
		Ml:             16,
		EfConstruction: 50,
		Alpha:          1.2,
		BatchBase:      2,
		Seed:           1,
	})
	if err != nil {
		log.Fatalf("failed to create index: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	points := make([]hnsw.WithID, 1000)
	byID := make(map[uint32]hnsw.WithID, len(points))
	for i := range points {
		p := randomPoint(uint32(i), rng)
		points[i] = p
		byID[p.ExtID] = p
	}

	if err := idx.Build(points); err != nil {
		log.Fatalf("failed to build index: %v", err)
	}
	fmt.Printf("built index: %s, %d points\n", idx.State(), idx.Len())

	query := points[0]
	results, err := idx.Search(query, 5, 32, hnsw.SearchControl{})
	if err != nil {
		log.Fatalf("failed to search index: %v", err)
	}

	var summary bytes.Buffer
	fmt.Fprintf(&summary, "query %d nearest neighbors:\n", query.ExtID)
	for _, r := range results {
		fmt.Fprintf(&summary, "  id=%d dist=%f\n", r.ID, r.Distance)
	}

	if err := atomic.WriteFile("example_results.txt", &summary); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}
	fmt.Print(summary.String())

	saved, err := hnsw.LoadSavedIndex[hnsw.WithID, hnsw.L2Descriptor]("example_index.bin", hnsw.L2Descriptor{}, idx.Params, func(id uint32) (hnsw.WithID, error) {
		return byID[id], nil
	})
	if err != nil {
		log.Fatalf("failed to open saved index: %v", err)
	}
	if saved.Len() == 0 {
		saved.Index = idx
		if err := saved.Save(); err != nil {
			log.Fatalf("failed to save index: %v", err)
		}
		fmt.Println("saved index to example_index.bin")
	}
}
