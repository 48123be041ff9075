package store

import (
	"context"
	"testing"
)

func seedStore(t *testing.T) *MemoryStore[string, string] {
	t.Helper()
	s := NewMemoryStore[string, string](1, 5, nil, nil)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		if err := s.InsertUser(ctx, Entity[string]{ID: id, Name: id}); err != nil {
			t.Fatalf("InsertUser(%s): %v", id, err)
		}
	}
	for _, id := range []string{"i1", "i2", "i3"} {
		if err := s.InsertItem(ctx, Entity[string]{ID: id, Name: id}); err != nil {
			t.Fatalf("InsertItem(%s): %v", id, err)
		}
	}
	ratings := []struct {
		user, item string
		score      float64
	}{
		{"u1", "i1", 5}, {"u1", "i2", 3},
		{"u2", "i1", 4}, {"u2", "i3", 2},
		{"u3", "i2", 1},
	}
	for _, r := range ratings {
		if err := s.InsertRating(ctx, r.user, r.item, r.score); err != nil {
			t.Fatalf("InsertRating(%s,%s): %v", r.user, r.item, err)
		}
	}
	return s
}

func TestInsertRatingIndexesBothTables(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	ur, err := s.UserRatings(ctx, "u1")
	if err != nil {
		t.Fatalf("UserRatings: %v", err)
	}
	if ur["i1"] != 5 || ur["i2"] != 3 {
		t.Errorf("unexpected primary table contents: %+v", ur)
	}

	inverted, err := s.UsersWhoRated(ctx, []string{"i1"})
	if err != nil {
		t.Fatalf("UsersWhoRated: %v", err)
	}
	if inverted["i1"]["u1"] != 5 || inverted["i1"]["u2"] != 4 {
		t.Errorf("unexpected secondary index contents: %+v", inverted["i1"])
	}
}

func TestUpdateRatingKeepsTablesInSync(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	if err := s.UpdateRating(ctx, "u1", "i1", 2); err != nil {
		t.Fatalf("UpdateRating: %v", err)
	}
	ur, _ := s.UserRatings(ctx, "u1")
	if ur["i1"] != 2 {
		t.Errorf("expected updated primary value 2, got %v", ur["i1"])
	}
	inverted, _ := s.UsersWhoRated(ctx, []string{"i1"})
	if inverted["i1"]["u1"] != 2 {
		t.Errorf("expected updated secondary value 2, got %v", inverted["i1"]["u1"])
	}
}

func TestRemoveRatingKeepsTablesInSync(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	if err := s.RemoveRating(ctx, "u1", "i1"); err != nil {
		t.Fatalf("RemoveRating: %v", err)
	}
	ur, _ := s.UserRatings(ctx, "u1")
	if _, ok := ur["i1"]; ok {
		t.Error("expected rating removed from primary table")
	}
	inverted, _ := s.UsersWhoRated(ctx, []string{"i1"})
	if _, ok := inverted["i1"]["u1"]; ok {
		t.Error("expected rating removed from secondary index")
	}
}

func TestRemoveRatingMissingFails(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	if err := s.RemoveRating(ctx, "u3", "i1"); err == nil {
		t.Error("expected error removing a rating that was never set")
	}
}

func TestUsersRatingsExceptExcludesOneUser(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	out, err := s.UsersRatingsExcept(ctx, "u1")
	if err != nil {
		t.Fatalf("UsersRatingsExcept: %v", err)
	}
	if _, ok := out["u1"]; ok {
		t.Error("expected u1 excluded")
	}
	if len(out) != 2 {
		t.Errorf("expected 2 remaining users, got %d", len(out))
	}
}

func TestItemsByChunksNth(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	chunks := s.ItemsByChunks(ctx, 2)

	first, ok := chunks.Nth(0)
	if !ok || len(first) != 2 {
		t.Fatalf("expected first chunk of 2, got %v ok=%v", first, ok)
	}
	second, ok := chunks.Nth(1)
	if !ok || len(second) != 1 {
		t.Fatalf("expected second chunk of 1, got %v ok=%v", second, ok)
	}
	if _, ok := chunks.Nth(2); ok {
		t.Error("expected out-of-bound chunk to report false")
	}
}

func TestCreatePartialUsersCarriesOnlyID(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	partials, err := s.CreatePartialUsers(ctx, []string{"ghost"})
	if err != nil {
		t.Fatalf("CreatePartialUsers: %v", err)
	}
	if len(partials) != 1 || partials[0].ID != "ghost" || partials[0].Name != "" {
		t.Errorf("expected a bare id-only stub, got %+v", partials)
	}
}

func TestUsersMeansComputesAverage(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	means, err := s.UsersMeans(ctx, []Entity[string]{{ID: "u1"}, {ID: "u2"}})
	if err != nil {
		t.Fatalf("UsersMeans: %v", err)
	}
	if means["u1"] != 4 { // (5+3)/2
		t.Errorf("expected mean 4 for u1, got %v", means["u1"])
	}
	if means["u2"] != 3 { // (4+2)/2
		t.Errorf("expected mean 3 for u2, got %v", means["u2"])
	}
}

func TestInsertRatingUnknownUserFails(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	if err := s.InsertRating(ctx, "ghost", "i1", 3); err == nil {
		t.Error("expected failure inserting a rating for an unknown user")
	}
}
