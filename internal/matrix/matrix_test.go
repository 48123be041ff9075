package matrix

import (
	"context"
	"testing"

	"github.com/arvelius/recoengine/pkg/store"
)

func seedItemStore(t *testing.T) *store.MemoryStore[string, string] {
	t.Helper()
	s := store.NewMemoryStore[string, string](1, 5, nil, nil)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		if err := s.InsertUser(ctx, store.Entity[string]{ID: id}); err != nil {
			t.Fatalf("InsertUser: %v", err)
		}
	}
	for _, id := range []string{"i1", "i2", "i3"} {
		if err := s.InsertItem(ctx, store.Entity[string]{ID: id}); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}
	ratings := []struct {
		user, item string
		score      float64
	}{
		{"u1", "i1", 5}, {"u1", "i2", 3}, {"u1", "i3", 4},
		{"u2", "i1", 4}, {"u2", "i2", 2}, {"u2", "i3", 5},
		{"u3", "i1", 2}, {"u3", "i2", 5}, {"u3", "i3", 1},
	}
	for _, r := range ratings {
		if err := s.InsertRating(ctx, r.user, r.item, r.score); err != nil {
			t.Fatalf("InsertRating: %v", err)
		}
	}
	return s
}

func TestSimilarityMatrixDiagonalIsOne(t *testing.T) {
	ctx := context.Background()
	s := seedItemStore(t)
	cfg := Config{ChunkSizeThreshold: 0.5, PartialUsersChunkSize: 2, AllowChunkOptimization: false}
	m := NewSimilarityMatrix[string, string](ctx, s, cfg, 3, 3)

	if err := m.CalculateChunk(ctx, 0, 0); err != nil {
		t.Fatalf("CalculateChunk: %v", err)
	}
	for _, item := range []string{"i1", "i2", "i3"} {
		v, ok := m.GetValue(item, item)
		if !ok || v != 1.0 {
			t.Errorf("expected diagonal value 1.0 for %s, got %v ok=%v", item, v, ok)
		}
	}
}

func TestSimilarityMatrixSymmetricFallback(t *testing.T) {
	ctx := context.Background()
	s := seedItemStore(t)
	cfg := Config{ChunkSizeThreshold: 1, PartialUsersChunkSize: 10, AllowChunkOptimization: false}
	m := NewSimilarityMatrix[string, string](ctx, s, cfg, 3, 3)
	if err := m.CalculateChunk(ctx, 0, 0); err != nil {
		t.Fatalf("CalculateChunk: %v", err)
	}

	forward, fok := m.GetValue("i1", "i2")
	backward, bok := m.GetValue("i2", "i1")
	if !fok || !bok {
		t.Fatalf("expected both directions present, got fok=%v bok=%v", fok, bok)
	}
	if forward != backward {
		t.Errorf("expected symmetric similarity, got %v vs %v", forward, backward)
	}
}

func TestSimilarityMatrixIndexOutOfBound(t *testing.T) {
	ctx := context.Background()
	s := seedItemStore(t)
	cfg := Config{ChunkSizeThreshold: 1, PartialUsersChunkSize: 10}
	m := NewSimilarityMatrix[string, string](ctx, s, cfg, 3, 3)
	if err := m.CalculateChunk(ctx, 5, 0); err == nil {
		t.Error("expected IndexOutOfBound for a chunk index beyond the stream")
	}
}

func TestDeviationMatrixDiagonalIsZero(t *testing.T) {
	ctx := context.Background()
	s := seedItemStore(t)
	cfg := Config{}
	m := NewDeviationMatrix[string, string](ctx, s, cfg, 3, 3)
	if err := m.CalculateChunk(ctx, 0, 0); err != nil {
		t.Fatalf("CalculateChunk: %v", err)
	}
	for _, item := range []string{"i1", "i2", "i3"} {
		v, ok := m.GetValue(item, item)
		if !ok || v != 0.0 {
			t.Errorf("expected diagonal value 0.0 for %s, got %v ok=%v", item, v, ok)
		}
	}
}

func TestDeviationMatrixAntisymmetricFallback(t *testing.T) {
	ctx := context.Background()
	s := seedItemStore(t)
	cfg := Config{}
	m := NewDeviationMatrix[string, string](ctx, s, cfg, 3, 3)
	if err := m.CalculateChunk(ctx, 0, 0); err != nil {
		t.Fatalf("CalculateChunk: %v", err)
	}

	forward, fok := m.GetValue("i1", "i2")
	backward, bok := m.GetValue("i2", "i1")
	if !fok || !bok {
		t.Fatalf("expected both directions present, got fok=%v bok=%v", fok, bok)
	}
	if forward != -backward {
		t.Errorf("expected antisymmetric deviation, got %v vs %v", forward, backward)
	}
}

func TestOptimizeChunkSizeDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	s := seedItemStore(t)
	cfg := Config{AllowChunkOptimization: false}
	m := NewSimilarityMatrix[string, string](ctx, s, cfg, 4, 4)
	m.OptimizeChunkSize()
	if m.verChunkSize != 4 || m.horChunkSize != 4 {
		t.Errorf("expected chunk sizes unchanged when disabled, got ver=%d hor=%d", m.verChunkSize, m.horChunkSize)
	}
}

func TestOptimizeChunkSizeHalvesUntilFloor(t *testing.T) {
	ctx := context.Background()
	s := seedItemStore(t)
	cfg := Config{AllowChunkOptimization: true, ChunkSizeThreshold: 0.1}
	m := NewSimilarityMatrix[string, string](ctx, s, cfg, 8, 8)
	m.OptimizeChunkSize()
	if m.verChunkSize != 1 || m.horChunkSize != 1 {
		t.Errorf("expected halving to terminate at the size-1 floor, got ver=%d hor=%d", m.verChunkSize, m.horChunkSize)
	}
}
