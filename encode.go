package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"reflect"
	"unsafe"

	"github.com/google/renameio"
)

var byteOrder = binary.LittleEndian

const (
	magic           = "HNSW"
	encodingVersion = 3
)

func typeTag[P any, D Descriptor[P]](desc D) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s", reflect.TypeOf(desc).String(), reflect.TypeOf((*P)(nil)).Elem().String())
	return h.Sum64()
}

func nodeSize[P any]() uint64 {
	var z P
	return uint64(unsafe.Sizeof(z))
}

func writeU64(w io.Writer, v uint64) error { return binary.Write(w, byteOrder, v) }
func writeU32(w io.Writer, v uint32) error { return binary.Write(w, byteOrder, v) }
func writeF32(w io.Writer, v float32) error { return binary.Write(w, byteOrder, v) }

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, byteOrder, &v)
	return v, err
}
func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, byteOrder, &v)
	return v, err
}
func readF32(r io.Reader) (float32, error) {
	var v float32
	err := binary.Read(r, byteOrder, &v)
	return v, err
}

// Export writes the exact v3 on-disk format of spec.md §6 to w: header,
// parameter block, per-node (level, external_id) records, per-node
// per-level neighbor lists, entrance list. Point vectors are not written
// -- the point store lives outside the core, per the design note that
// Load takes a caller-supplied point getter.
func (idx *Index[P, D]) Export(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if _, err := io.WriteString(w, magic); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeU32(w, encodingVersion); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeU64(w, typeTag[P, D](idx.desc)); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeU64(w, nodeSize[P]()); err != nil {
		return newErr(IoError, "Export", err)
	}

	if err := writeU32(w, idx.Dim); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeF32(w, float32(idx.Ml)); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeU32(w, idx.M); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeU32(w, idx.EfConstruction); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeF32(w, idx.Alpha); err != nil {
		return newErr(IoError, "Export", err)
	}
	if err := writeU32(w, uint32(len(idx.pool))); err != nil {
		return newErr(IoError, "Export", err)
	}

	for i := range idx.pool {
		if err := writeU32(w, idx.pool[i].level); err != nil {
			return newErr(IoError, "Export", err)
		}
		if err := writeU32(w, idx.externalID(NodeID(i))); err != nil {
			return newErr(IoError, "Export", err)
		}
	}

	for i := range idx.pool {
		n := &idx.pool[i]
		for l := uint32(0); l <= n.level; l++ {
			nbh := n.neighbors[l]
			if err := writeU64(w, uint64(len(nbh))); err != nil {
				return newErr(IoError, "Export", err)
			}
			for _, id := range nbh {
				if err := writeU32(w, id); err != nil {
					return newErr(IoError, "Export", err)
				}
			}
		}
	}

	if err := writeU64(w, uint64(len(idx.entrance))); err != nil {
		return newErr(IoError, "Export", err)
	}
	for _, id := range idx.entrance {
		if err := writeU32(w, id); err != nil {
			return newErr(IoError, "Export", err)
		}
	}

	return nil
}

// PointGetter maps an external id (as stored on disk) back to its point,
// since the point store lives outside the core (spec.md §6 "Load").
type PointGetter[P any] func(externalID uint32) (P, error)

// Import reconstructs an index from r, written by Export. desc must
// match the descriptor the index was built with; the parameters are read
// back from r (BatchBase, which is not stored, is set to 2). get resolves
// each stored external_id back to its point data. Rejects a bad magic,
// unsupported version, or a type_tag/node_size mismatch with
// InvalidFormat, leaking no partial index (spec.md §7, §8 S6).
func Import[P any, D Descriptor[P]](r io.Reader, desc D, get PointGetter[P]) (*Index[P, D], error) {
	hdr := make([]byte, len(magic))
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	if string(hdr) != magic {
		return nil, newErr(InvalidFormat, "Import", fmt.Errorf("bad magic %q", hdr))
	}
	version, err := readU32(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	if version != encodingVersion {
		return nil, newErr(InvalidFormat, "Import", fmt.Errorf("unsupported version %d", version))
	}
	gotTag, err := readU64(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	if wantTag := typeTag[P, D](desc); gotTag != wantTag {
		return nil, newErr(InvalidFormat, "Import", fmt.Errorf("type_tag mismatch: got %x want %x", gotTag, wantTag))
	}
	gotSize, err := readU64(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	if wantSize := nodeSize[P](); gotSize != wantSize {
		return nil, newErr(InvalidFormat, "Import", fmt.Errorf("node_size mismatch: got %d want %d", gotSize, wantSize))
	}

	var params Params
	dim, err := readU32(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	params.Dim = dim
	ml, err := readF32(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	params.Ml = float64(ml)
	m, err := readU32(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	params.M = m
	efc, err := readU32(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	params.EfConstruction = efc
	alpha, err := readF32(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	params.Alpha = alpha
	params.BatchBase = 2 // not persisted: only affects future Build calls, not the stored graph
	n, err := readU32(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}

	idx, ierr := NewIndex[P, D](desc, params)
	if ierr != nil {
		return nil, ierr
	}

	type record struct {
		level uint32
		extID uint32
	}
	records := make([]record, n)
	for i := uint32(0); i < n; i++ {
		lvl, err := readU32(r)
		if err != nil {
			return nil, newErr(InvalidFormat, "Import", err)
		}
		ext, err := readU32(r)
		if err != nil {
			return nil, newErr(InvalidFormat, "Import", err)
		}
		records[i] = record{level: lvl, extID: ext}
	}

	pool := make([]node[P], n)
	for i, rec := range records {
		p, err := get(rec.extID)
		if err != nil {
			return nil, newErr(InvalidFormat, "Import", fmt.Errorf("resolving external id %d: %w", rec.extID, err))
		}
		pool[i] = node[P]{level: rec.level, data: p, neighbors: make([][]NodeID, rec.level+1)}
	}

	for i := range pool {
		for l := uint32(0); l <= pool[i].level; l++ {
			deg, err := readU64(r)
			if err != nil {
				return nil, newErr(InvalidFormat, "Import", err)
			}
			nbh := make([]NodeID, deg)
			for j := range nbh {
				id, err := readU32(r)
				if err != nil {
					return nil, newErr(InvalidFormat, "Import", err)
				}
				nbh[j] = id
			}
			pool[i].neighbors[l] = nbh
		}
	}

	entSize, err := readU64(r)
	if err != nil {
		return nil, newErr(InvalidFormat, "Import", err)
	}
	entrance := make([]NodeID, entSize)
	for i := range entrance {
		id, err := readU32(r)
		if err != nil {
			return nil, newErr(InvalidFormat, "Import", err)
		}
		entrance[i] = id
	}

	idx.pool = pool
	idx.entrance = entrance
	idx.st = stateReady
	return idx, nil
}

// SavedIndex is a convenience wrapper that persists an Index to a file
// path, grounded on the teacher's SavedGraph.
type SavedIndex[P any, D Descriptor[P]] struct {
	*Index[P, D]
	Path string
}

// LoadSavedIndex opens path, and if it exists and is non-empty, imports
// it; otherwise returns a fresh empty index backed by that path.
func LoadSavedIndex[P any, D Descriptor[P]](path string, desc D, params Params, get PointGetter[P]) (*SavedIndex[P, D], error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, newErr(IoError, "LoadSavedIndex", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newErr(IoError, "LoadSavedIndex", err)
	}

	if info.Size() == 0 {
		idx, err := NewIndex[P, D](desc, params)
		if err != nil {
			return nil, err
		}
		return &SavedIndex[P, D]{Index: idx, Path: path}, nil
	}

	idx, err := Import[P, D](bufio.NewReader(f), desc, get)
	if err != nil {
		return nil, err
	}
	return &SavedIndex[P, D]{Index: idx, Path: path}, nil
}

// Save atomically replaces the file at Path with the current index
// contents, via renameio -- the teacher's own atomic-save mechanism.
func (s *SavedIndex[P, D]) Save() error {
	tmp, err := renameio.TempFile("", s.Path)
	if err != nil {
		return newErr(IoError, "Save", err)
	}
	defer tmp.Cleanup()

	wr := bufio.NewWriter(tmp)
	if err := s.Index.Export(wr); err != nil {
		return err
	}
	if err := wr.Flush(); err != nil {
		return newErr(IoError, "Save", err)
	}
	if err := tmp.CloseAtomicallyReplace(); err != nil {
		return newErr(IoError, "Save", err)
	}
	return nil
}
