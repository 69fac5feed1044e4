package hnsw

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek"
)

// Descriptor is the capability set the core needs from a point type:
// a distance evaluator and an external identifier. Implementations are
// expected to be cheap to copy (typically a single method set over a
// comparable or pointer-sized type) since the index holds one compile-time
// Descriptor value, never a per-call interface value, per the "avoid
// runtime virtual dispatch in the hot path" design note.
//
// distance must be non-negative and, for metric distances, symmetric.
// The selector (see select.go) only relies on the weaker property
// d(a,c) < alpha*d(a,b) => c is "covered" by b.
type Descriptor[P any] interface {
	// Distance computes the distance between two points of dimension dim.
	Distance(a, b P, dim uint32) float32

	// ID returns the external identifier of a point.
	ID(p P) uint32
}

// Vector is the point representation used by the built-in descriptors:
// a flat, dense float32 embedding. The external id is carried alongside
// the vector by the caller (see WithID) since a raw []float32 has no
// identity of its own.
type Vector = []float32

// WithID pairs a Vector with an external identifier for use with the
// built-in descriptors below.
type WithID struct {
	ExtID uint32
	Vec   Vector
}

// L2Descriptor computes Euclidean distance over WithID points.
type L2Descriptor struct{}

func (L2Descriptor) Distance(a, b WithID, dim uint32) float32 {
	return vek.Distance(a.Vec, b.Vec)
}

func (L2Descriptor) ID(p WithID) uint32 { return p.ExtID }

// DotDescriptor computes a distance from the negative inner product,
// suitable for points that are meant to be compared by similarity rather
// than by metric distance (e.g. unnormalized embeddings trained with a
// dot-product objective). Its values are negative whenever the inner
// product is positive, so unlike the other built-in descriptors it does
// not meet the non-negativity described on Descriptor.
type DotDescriptor struct{}

func (DotDescriptor) Distance(a, b WithID, dim uint32) float32 {
	return -vek.Dot(a.Vec, b.Vec)
}

func (DotDescriptor) ID(p WithID) uint32 { return p.ExtID }

// CosineDescriptor computes cosine distance (1 - cosine similarity).
type CosineDescriptor struct{}

func (CosineDescriptor) Distance(a, b WithID, dim uint32) float32 {
	return 1 - vek.CosineSimilarity(a.Vec, b.Vec)
}

func (CosineDescriptor) ID(p WithID) uint32 { return p.ExtID }

// cmpDist orders two distances, treating NaN as +Inf per the spec's
// comparison rule (NaN distances are not meaningfully orderable, so they
// are pushed to the back rather than causing undefined comparator
// behavior).
func cmpDist(a, b float32) int {
	if math32.IsNaN(a) {
		a = math32.Inf(1)
	}
	if math32.IsNaN(b) {
		b = math32.Inf(1)
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
