// Package heap provides a small generic binary min-heap used by the
// beam search frontier and candidate sets.
package heap

import "container/heap"

// Lesser orders two values of the same type. Less reports whether the
// receiver should sort before o.
type Lesser[T any] interface {
	Less(o T) bool
}

// Heap is a generic binary heap over any type implementing Lesser.
// The zero value is an empty heap ready for Push; Init replaces the
// contents with a given slice.
type Heap[T Lesser[T]] struct {
	items sliceHeap[T]
}

// Init prepares the heap using the given backing slice as its initial
// contents. The slice is heapified in place.
func (h *Heap[T]) Init(items []T) {
	h.items = sliceHeap[T](items)
	heap.Init(&h.items)
}

// Push adds v to the heap.
func (h *Heap[T]) Push(v T) {
	if h.items == nil {
		h.items = sliceHeap[T]{}
	}
	heap.Push(&h.items, v)
}

// Pop removes and returns the minimum element.
func (h *Heap[T]) Pop() T {
	return heap.Pop(&h.items).(T)
}

// PopLast removes and returns the maximum element. It is O(n).
func (h *Heap[T]) PopLast() T {
	worst := 0
	for i := 1; i < len(h.items); i++ {
		if h.items[worst].Less(h.items[i]) {
			worst = i
		}
	}
	v := h.items[worst]
	heap.Remove(&h.items, worst)
	return v
}

// Min returns the minimum element without removing it.
func (h *Heap[T]) Min() T {
	return h.items[0]
}

// Max returns the maximum element without removing it. It is O(n).
func (h *Heap[T]) Max() T {
	worst := 0
	for i := 1; i < len(h.items); i++ {
		if h.items[worst].Less(h.items[i]) {
			worst = i
		}
	}
	return h.items[worst]
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int {
	return len(h.items)
}

// Slice returns the heap's elements in unspecified order. Callers that
// need sorted output should sort the result themselves.
func (h *Heap[T]) Slice() []T {
	return h.items
}

type sliceHeap[T Lesser[T]] []T

func (s sliceHeap[T]) Len() int            { return len(s) }
func (s sliceHeap[T]) Less(i, j int) bool  { return s[i].Less(s[j]) }
func (s sliceHeap[T]) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }
func (s *sliceHeap[T]) Push(x interface{}) { *s = append(*s, x.(T)) }
func (s *sliceHeap[T]) Pop() interface{} {
	old := *s
	n := len(old)
	v := old[n-1]
	*s = old[:n-1]
	return v
}
