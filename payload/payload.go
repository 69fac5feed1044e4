// Package payload provides an optional external-id -> JSON metadata
// store and an expand-then-filter re-ranking search built on top of an
// Index's SearchControl.Filter hook, adapted from the teacher's
// hnsw-extensions/{meta,facets} packages -- simplified to a fixed
// uint32 key since the core index's external identifier space is no
// longer a generic cmp.Ordered key.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/TFMV/hnsw"
)

// Store holds JSON metadata keyed by external id.
type Store interface {
	Add(id uint32, metadata json.RawMessage) error
	Get(id uint32) (json.RawMessage, bool)
	Delete(id uint32) bool
	BatchAdd(ids []uint32, metadatas []json.RawMessage) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	data map[uint32]json.RawMessage
}

// NewMemoryStore creates an empty in-memory metadata store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[uint32]json.RawMessage)}
}

// Add stores metadata for id, accepting anything json.Marshal can
// handle in addition to raw JSON bytes or a pre-validated RawMessage.
func Add(s Store, id uint32, metadata any) error {
	raw, err := toRawMessage(metadata)
	if err != nil {
		return err
	}
	return s.Add(id, raw)
}

func toRawMessage(metadata any) (json.RawMessage, error) {
	switch m := metadata.(type) {
	case json.RawMessage:
		return m, nil
	case []byte:
		if !json.Valid(m) {
			return nil, fmt.Errorf("payload: invalid JSON metadata")
		}
		return json.RawMessage(m), nil
	case string:
		if !json.Valid([]byte(m)) {
			return nil, fmt.Errorf("payload: invalid JSON metadata string")
		}
		return json.RawMessage(m), nil
	default:
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("payload: marshaling metadata: %w", err)
		}
		return raw, nil
	}
}

func (s *MemoryStore) Add(id uint32, metadata json.RawMessage) error {
	s.data[id] = metadata
	return nil
}

func (s *MemoryStore) Get(id uint32) (json.RawMessage, bool) {
	v, ok := s.data[id]
	return v, ok
}

func (s *MemoryStore) Delete(id uint32) bool {
	_, ok := s.data[id]
	delete(s.data, id)
	return ok
}

func (s *MemoryStore) BatchAdd(ids []uint32, metadatas []json.RawMessage) error {
	if len(ids) != len(metadatas) {
		return fmt.Errorf("payload: ids and metadatas must have the same length")
	}
	for i, id := range ids {
		s.data[id] = metadatas[i]
	}
	return nil
}

// Filter is a predicate over a result's decoded metadata. Filters
// receiving an id with no stored metadata are not called; such results
// are excluded.
type Filter func(metadata json.RawMessage) bool

// FilteredSearch runs an expand-then-filter search: it searches ef*expandFactor
// candidates (growing the expansion once if that isn't enough), applies
// every filter against each candidate's stored metadata, and returns the
// first k survivors in the index's distance order. It also wires the
// store lookup into the index's own layer-0 Filter hook so non-matching
// candidates can be skipped during expansion instead of only after,
// matching the inline enrichment documented for SearchControl.Filter.
func FilteredSearch[P any, D hnsw.Descriptor[P]](idx *hnsw.Index[P, D], store Store, q P, k, ef, expandFactor int, filters ...Filter) ([]hnsw.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("payload: k must be greater than 0")
	}
	if expandFactor <= 0 {
		expandFactor = 3
	}

	matches := func(id uint32) bool {
		meta, ok := store.Get(id)
		if !ok {
			return false
		}
		for _, f := range filters {
			if !f(meta) {
				return false
			}
		}
		return true
	}

	expandedEf := ef * expandFactor
	ctrl := hnsw.SearchControl{Filter: matches}
	candidates, err := idx.Search(q, expandedEf, expandedEf, ctrl)
	if err != nil {
		return nil, err
	}

	survivors := filterSurvivors(candidates, matches)
	if len(survivors) < k && len(candidates) == expandedEf {
		moreEf := expandedEf * 2
		more, err := idx.Search(q, moreEf, moreEf, ctrl)
		if err != nil {
			return nil, err
		}
		survivors = filterSurvivors(more, matches)
	}

	sort.Slice(survivors, func(i, j int) bool { return survivors[i].Distance < survivors[j].Distance })
	if len(survivors) > k {
		survivors = survivors[:k]
	}
	return survivors, nil
}

func filterSurvivors(candidates []hnsw.Result, matches func(uint32) bool) []hnsw.Result {
	out := make([]hnsw.Result, 0, len(candidates))
	for _, c := range candidates {
		if matches(c.ID) {
			out = append(out, c)
		}
	}
	return out
}
