package engine

import (
	"context"
	"math"
	"testing"

	"github.com/arvelius/recoengine/internal/kernel"
	"github.com/arvelius/recoengine/pkg/store"
)

func seedEngineStore(t *testing.T) *store.MemoryStore[string, string] {
	t.Helper()
	s := store.NewMemoryStore[string, string](1, 5, nil, nil)
	ctx := context.Background()
	users := []string{"u1", "u2", "u3", "u4"}
	items := []string{"i1", "i2", "i3", "i4"}
	for _, u := range users {
		if err := s.InsertUser(ctx, store.Entity[string]{ID: u}); err != nil {
			t.Fatalf("InsertUser: %v", err)
		}
	}
	for _, it := range items {
		if err := s.InsertItem(ctx, store.Entity[string]{ID: it}); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}
	ratings := []struct {
		user, item string
		score      float64
	}{
		{"u1", "i1", 5}, {"u1", "i2", 3}, {"u1", "i3", 4},
		{"u2", "i1", 4}, {"u2", "i2", 2}, {"u2", "i3", 5}, {"u2", "i4", 3},
		{"u3", "i1", 1}, {"u3", "i2", 5}, {"u3", "i4", 2},
		{"u4", "i2", 4}, {"u4", "i3", 3}, {"u4", "i4", 5},
	}
	for _, r := range ratings {
		if err := s.InsertRating(ctx, r.user, r.item, r.score); err != nil {
			t.Fatalf("InsertRating: %v", err)
		}
	}
	return s
}

func TestPredictUserBasedWithinScoreRange(t *testing.T) {
	ctx := context.Background()
	s := seedEngineStore(t)
	e := New[string, string](s)

	got, err := e.PredictUserBased(ctx, 2, "u1", "i4", kernel.Euclidean, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < 1 || got > 5 {
		t.Errorf("expected prediction within score range [1,5], got %v", got)
	}
}

func TestPredictUserBasedChunked(t *testing.T) {
	ctx := context.Background()
	s := seedEngineStore(t)
	e := New[string, string](s)

	unchunked, err := e.PredictUserBased(ctx, 2, "u1", "i4", kernel.Euclidean, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error (unchunked): %v", err)
	}
	chunked, err := e.PredictUserBased(ctx, 2, "u1", "i4", kernel.Euclidean, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error (chunked): %v", err)
	}
	if math.Abs(unchunked-chunked) > 1e-9 {
		t.Errorf("expected chunked and unchunked predictions to agree, got %v vs %v", chunked, unchunked)
	}
}

func TestPredictUserBasedZeroKFails(t *testing.T) {
	ctx := context.Background()
	s := seedEngineStore(t)
	e := New[string, string](s)
	if _, err := e.PredictUserBased(ctx, 0, "u1", "i4", kernel.Euclidean, 0, 0); err == nil {
		t.Error("expected EmptyKNearestNeighbors for k=0")
	}
}

func TestPredictUserBasedNoNeighborsFails(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore[string, string](1, 5, nil, nil)
	ctx2 := context.Background()
	_ = s.InsertUser(ctx2, store.Entity[string]{ID: "solo"})
	_ = s.InsertItem(ctx2, store.Entity[string]{ID: "only"})
	_ = s.InsertRating(ctx2, "solo", "only", 3)

	e := New[string, string](s)
	if _, err := e.PredictUserBased(ctx, 2, "solo", "only", kernel.Euclidean, 0, 0); err == nil {
		t.Error("expected EmptyKNearestNeighbors with no other users")
	}
}

func TestPredictItemBasedWithinScoreRange(t *testing.T) {
	ctx := context.Background()
	s := seedEngineStore(t)
	e := New[string, string](s)

	got, err := e.PredictItemBased(ctx, "u1", "i4", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < 1 || got > 5 {
		t.Errorf("expected prediction within score range [1,5], got %v", got)
	}
}

func TestPredictSlopeOneWithinPlausibleRange(t *testing.T) {
	ctx := context.Background()
	s := seedEngineStore(t)
	e := New[string, string](s)

	got, err := e.PredictSlopeOne(ctx, "u1", "i4", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("expected a finite prediction, got %v", got)
	}
}

func TestPredictSlopeOneNoRatedItemsFails(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore[string, string](1, 5, nil, nil)
	_ = s.InsertUser(ctx, store.Entity[string]{ID: "fresh"})
	_ = s.InsertItem(ctx, store.Entity[string]{ID: "target"})
	_ = s.InsertUser(ctx, store.Entity[string]{ID: "other"})
	_ = s.InsertRating(ctx, "other", "target", 4)

	e := New[string, string](s)
	if _, err := e.PredictSlopeOne(ctx, "fresh", "target", 2); err == nil {
		t.Error("expected DivisionByZero when the user has no other rated items")
	}
}
