// Package knn implements bounded k-nearest-neighbor selection via two
// heap-backed strategies: MaxHeapKnn retains the k smallest distances,
// MinHeapKnn retains the k largest similarities. Both satisfy the same
// Knn interface, dispatched via interface value rather than inheritance.
package knn

import (
	"container/heap"
	"sort"

	"github.com/arvelius/recoengine/internal/kernel"
	"github.com/arvelius/recoengine/internal/sparse"
)

// Neighbor is one kNN heap element: the key is the f64 score only — ratings
// are carried through so downstream prediction can rescore without
// re-querying the store.
type Neighbor[User, Item comparable] struct {
	ID      User
	Score   float64
	Ratings sparse.Ratings[Item]
}

// Knn is the capability shared by MaxHeapKnn and MinHeapKnn: accumulate
// candidates across possibly-many Update calls, then drain them sorted
// ascending by the underlying distance/similarity value.
type Knn[User, Item comparable] interface {
	Update(userRatings sparse.Ratings[Item], batch sparse.MapedRatings[User, Item])
	IntoSlice() []Neighbor[User, Item]
}

// New picks MaxHeapKnn for distance methods and MinHeapKnn for similarity
// methods, matching the classification in package kernel.
func New[User, Item comparable](k int, method kernel.Method, p float64) Knn[User, Item] {
	if method.IsSimilarity() {
		return NewMinHeapKnn[User, Item](k, method, p)
	}
	return NewMaxHeapKnn[User, Item](k, method, p)
}

// neighborHeap is the shared container/heap.Interface implementation;
// MaxHeapKnn and MinHeapKnn differ only in Less's direction.
type neighborHeap[User, Item comparable] struct {
	items []Neighbor[User, Item]
	less  func(a, b float64) bool
}

func (h *neighborHeap[User, Item]) Len() int { return len(h.items) }
func (h *neighborHeap[User, Item]) Less(i, j int) bool {
	return h.less(h.items[i].Score, h.items[j].Score)
}
func (h *neighborHeap[User, Item]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *neighborHeap[User, Item]) Push(x any)    { h.items = append(h.items, x.(Neighbor[User, Item])) }
func (h *neighborHeap[User, Item]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// MaxHeapKnn retains the k candidates with the smallest distance, using a
// max-heap so the current worst-kept candidate is always at the root.
type MaxHeapKnn[User, Item comparable] struct {
	k      int
	method kernel.Method
	p      float64
	h      *neighborHeap[User, Item]
}

// NewMaxHeapKnn constructs a distance-based selector for k>=1 neighbors.
func NewMaxHeapKnn[User, Item comparable](k int, method kernel.Method, p float64) *MaxHeapKnn[User, Item] {
	return &MaxHeapKnn[User, Item]{
		k:      k,
		method: method,
		p:      p,
		h:      &neighborHeap[User, Item]{less: func(a, b float64) bool { return a > b }}, // max at root
	}
}

func (m *MaxHeapKnn[User, Item]) Update(userRatings sparse.Ratings[Item], batch sparse.MapedRatings[User, Item]) {
	for otherID, otherRatings := range batch {
		d, err := kernel.Distance(m.method, userRatings, otherRatings, m.p)
		if err != nil {
			continue
		}
		if m.h.Len() < m.k {
			heap.Push(m.h, Neighbor[User, Item]{ID: otherID, Score: d, Ratings: otherRatings})
			continue
		}
		if m.h.Len() == 0 {
			continue
		}
		worst := m.h.items[0].Score
		if d < worst {
			heap.Pop(m.h)
			heap.Push(m.h, Neighbor[User, Item]{ID: otherID, Score: d, Ratings: otherRatings})
		}
	}
}

func (m *MaxHeapKnn[User, Item]) IntoSlice() []Neighbor[User, Item] {
	return sortedAscending(m.h.items)
}

// MinHeapKnn retains the k candidates with the largest similarity, using a
// min-heap (conceptually a Reverse-wrapped heap) so the current
// worst-kept candidate is always at the root.
type MinHeapKnn[User, Item comparable] struct {
	k      int
	method kernel.Method
	p      float64
	h      *neighborHeap[User, Item]
}

// NewMinHeapKnn constructs a similarity-based selector for k>=1 neighbors.
func NewMinHeapKnn[User, Item comparable](k int, method kernel.Method, p float64) *MinHeapKnn[User, Item] {
	return &MinHeapKnn[User, Item]{
		k:      k,
		method: method,
		p:      p,
		h:      &neighborHeap[User, Item]{less: func(a, b float64) bool { return a < b }}, // min at root
	}
}

func (m *MinHeapKnn[User, Item]) Update(userRatings sparse.Ratings[Item], batch sparse.MapedRatings[User, Item]) {
	for otherID, otherRatings := range batch {
		sim, err := kernel.Distance(m.method, userRatings, otherRatings, m.p)
		if err != nil {
			continue
		}
		if m.h.Len() < m.k {
			heap.Push(m.h, Neighbor[User, Item]{ID: otherID, Score: sim, Ratings: otherRatings})
			continue
		}
		if m.h.Len() == 0 {
			continue
		}
		worst := m.h.items[0].Score
		if sim > worst {
			heap.Pop(m.h)
			heap.Push(m.h, Neighbor[User, Item]{ID: otherID, Score: sim, Ratings: otherRatings})
		}
	}
}

func (m *MinHeapKnn[User, Item]) IntoSlice() []Neighbor[User, Item] {
	return sortedAscending(m.h.items)
}

// sortedAscending returns elements sorted ascending by Score: for
// distances that is best-first; for similarities the MinHeapKnn already
// only retained the k largest, and ascending order here lists the weakest
// of those k first.
func sortedAscending[User, Item comparable](items []Neighbor[User, Item]) []Neighbor[User, Item] {
	out := make([]Neighbor[User, Item], len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}
