package knn

import (
	"testing"

	"github.com/arvelius/recoengine/internal/kernel"
	"github.com/arvelius/recoengine/internal/sparse"
)

func TestMaxHeapKnnEuclideanScenario(t *testing.T) {
	// Five candidates with ratings engineered so their Euclidean distance
	// to the target user is exactly the value named in the scenario:
	// u1:1.0 u2:2.5 u3:0.7 u4:3.1 u5:1.2 -> nearest 3 are u3, u1, u5.
	target := sparse.Ratings[string]{"i1": 0}
	batch := sparse.MapedRatings[string, string]{
		"u1": {"i1": 1.0},
		"u2": {"i1": 2.5},
		"u3": {"i1": 0.7},
		"u4": {"i1": 3.1},
		"u5": {"i1": 1.2},
	}

	selector := NewMaxHeapKnn[string, string](3, kernel.Euclidean, 0)
	selector.Update(target, batch)
	got := selector.IntoSlice()

	wantOrder := []string{"u3", "u1", "u5"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d neighbors, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestMaxHeapKnnRespectsK(t *testing.T) {
	target := sparse.Ratings[int]{1: 0}
	batch := sparse.MapedRatings[int, int]{
		10: {1: 1}, 20: {1: 2}, 30: {1: 3}, 40: {1: 4},
	}
	selector := NewMaxHeapKnn[int, int](2, kernel.Manhattan, 0)
	selector.Update(target, batch)
	got := selector.IntoSlice()
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[0].ID != 10 || got[1].ID != 20 {
		t.Errorf("expected [10, 20], got [%v, %v]", got[0].ID, got[1].ID)
	}
}

func TestMinHeapKnnRetainsLargestSimilarity(t *testing.T) {
	target := sparse.Ratings[string]{"a": 1, "b": 1, "c": 1}
	batch := sparse.MapedRatings[string, string]{
		"u1": {"a": 1, "b": 1, "c": 1}, // identical, sim=1
		"u2": {"a": 1, "b": 1, "c": 0}, // partial overlap
		"u3": {"a": -1, "b": -1, "c": -1},
	}
	selector := NewMinHeapKnn[string, string](2, kernel.CosineSimilarity, 0)
	selector.Update(target, batch)
	got := selector.IntoSlice()
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[len(got)-1].ID != "u1" {
		t.Errorf("expected u1 (similarity 1.0) last (ascending order), got %s", got[len(got)-1].ID)
	}
	for _, n := range got {
		if n.ID == "u3" {
			t.Errorf("expected u3 (lowest similarity) to be evicted, got it in result")
		}
	}
}

func TestSkipsKernelFailures(t *testing.T) {
	target := sparse.Ratings[int]{1: 5}
	batch := sparse.MapedRatings[int, int]{
		10: {2: 5}, // disjoint, kernel fails
		20: {1: 3},
	}
	selector := NewMaxHeapKnn[int, int](5, kernel.Euclidean, 0)
	selector.Update(target, batch)
	got := selector.IntoSlice()
	if len(got) != 1 || got[0].ID != 20 {
		t.Fatalf("expected only the matching candidate to survive, got %+v", got)
	}
}

func TestNewDispatchesOnMethodClassification(t *testing.T) {
	if _, ok := New[int, int](3, kernel.Euclidean, 0).(*MaxHeapKnn[int, int]); !ok {
		t.Error("expected distance method to select MaxHeapKnn")
	}
	if _, ok := New[int, int](3, kernel.CosineSimilarity, 0).(*MinHeapKnn[int, int]); !ok {
		t.Error("expected similarity method to select MinHeapKnn")
	}
}

func TestIntoSliceNeverExceedsK(t *testing.T) {
	target := sparse.Ratings[int]{1: 0}
	batch := make(sparse.MapedRatings[int, int], 50)
	for i := 0; i < 50; i++ {
		batch[i] = sparse.Ratings[int]{1: float64(i)}
	}
	selector := NewMaxHeapKnn[int, int](5, kernel.Manhattan, 0)
	selector.Update(target, batch)
	if got := len(selector.IntoSlice()); got != 5 {
		t.Errorf("expected exactly k=5 neighbors, got %d", got)
	}
}
