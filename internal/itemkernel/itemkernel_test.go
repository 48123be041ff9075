package itemkernel

import (
	"math"
	"testing"

	"github.com/arvelius/recoengine/internal/sparse"
)

func TestSlopeOneAntisymmetry(t *testing.T) {
	a := sparse.Ratings[string]{"u1": 4, "u2": 2, "u3": 5}
	b := sparse.Ratings[string]{"u1": 3, "u2": 3, "u3": 4}

	devAB, cardAB, err := SlopeOne(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	devBA, cardBA, err := SlopeOne(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(devAB+devBA) > 1e-12 {
		t.Errorf("expected antisymmetric deviations, got %v and %v", devAB, devBA)
	}
	if cardAB != cardBA {
		t.Errorf("expected equal cardinality, got %d and %d", cardAB, cardBA)
	}
}

func TestSlopeOneNoMatchFails(t *testing.T) {
	a := sparse.Ratings[int]{1: 1}
	b := sparse.Ratings[int]{2: 2}
	if _, _, err := SlopeOne(a, b); err == nil {
		t.Error("expected failure when no co-raters")
	}
}

func TestAdjCosineCalculate(t *testing.T) {
	means := map[string]float64{"u1": 3, "u2": 3, "u3": 3}
	cache := NewAdjCosine[string]()
	cache.AddNewMeans(means)

	itemA := sparse.Ratings[string]{"u1": 4, "u2": 2, "u3": 5}
	itemB := sparse.Ratings[string]{"u1": 5, "u2": 2, "u3": 4}

	sim, err := cache.Calculate(itemA, itemB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim < -1.0001 || sim > 1.0001 {
		t.Errorf("expected similarity in [-1,1], got %v", sim)
	}
	for _, u := range []string{"u1", "u2", "u3"} {
		if cache.counters[u] != 1 {
			t.Errorf("expected counter=1 for %s, got %d", u, cache.counters[u])
		}
	}
}

func TestAdjCosineMissingMeanFails(t *testing.T) {
	cache := NewAdjCosine[string]()
	itemA := sparse.Ratings[string]{"u1": 4}
	itemB := sparse.Ratings[string]{"u1": 5}

	if _, err := cache.Calculate(itemA, itemB); err == nil {
		t.Error("expected failure when no user has a cached mean")
	}
}

func TestAdjCosineShrinkMeansEvictsLowestQuartile(t *testing.T) {
	cache := NewAdjCosine[int]()
	cache.AddNewMeans(map[int]float64{1: 1, 2: 2, 3: 3, 4: 4})
	// simulate usage: user 1 accessed often, user 4 never
	cache.counters[1] = 10
	cache.counters[2] = 5
	cache.counters[3] = 3
	cache.counters[4] = 0

	cache.ShrinkMeans(2)
	if cache.Len() >= 4 {
		t.Errorf("expected eviction to shrink the cache, got len=%d", cache.Len())
	}
	if cache.HasMeanFor(4) {
		t.Error("expected lowest-usage entry to be evicted first")
	}
}

func TestAdjustedCosineMeansSkipsEmptyUsers(t *testing.T) {
	ratings := sparse.MapedRatings[string, string]{
		"u1": {"a": 2, "b": 4},
		"u2": {},
	}
	means := AdjustedCosineMeans(ratings)
	if _, ok := means["u2"]; ok {
		t.Error("expected user with no ratings to be excluded from means")
	}
	if means["u1"] != 3 {
		t.Errorf("expected mean 3 for u1, got %v", means["u1"])
	}
}
