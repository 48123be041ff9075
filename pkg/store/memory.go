package store

import (
	"context"
	"sync"

	"github.com/arvelius/recoengine/internal/recoerr"
	"github.com/arvelius/recoengine/internal/sparse"
)

// MemoryStore is the in-memory reference Store, guarded by a single
// RWMutex the way the teacher's pkg/tenant.Manager guards its tenant map.
// Ratings are held in a primary table (user -> item -> score) plus a
// secondary inverted index (item -> user -> score); every rating CUD
// operation writes the primary table first and reverts it if indexing the
// secondary table fails, honoring the atomicity contract in full (the
// in-memory index cannot actually fail, but the compensation path is real
// so a Store backed by two physically separate tables can follow the
// same shape).
type MemoryStore[UserID, ItemID comparable] struct {
	mu sync.RWMutex

	users     map[UserID]Entity[UserID]
	items     map[ItemID]Entity[ItemID]
	userOrder []UserID
	itemOrder []ItemID

	ratings   map[UserID]sparse.Ratings[ItemID]
	itemUsers map[ItemID]sparse.Ratings[UserID]

	scoreMin, scoreMax float64

	userFields []Field
	itemFields []Field
}

// NewMemoryStore constructs an empty store with the declared score range
// and the metadata field schemas used by FieldsForUsers/FieldsForItems.
func NewMemoryStore[UserID, ItemID comparable](scoreMin, scoreMax float64, userFields, itemFields []Field) *MemoryStore[UserID, ItemID] {
	return &MemoryStore[UserID, ItemID]{
		users:      make(map[UserID]Entity[UserID]),
		items:      make(map[ItemID]Entity[ItemID]),
		ratings:    make(map[UserID]sparse.Ratings[ItemID]),
		itemUsers:  make(map[ItemID]sparse.Ratings[UserID]),
		scoreMin:   scoreMin,
		scoreMax:   scoreMax,
		userFields: userFields,
		itemFields: itemFields,
	}
}

func (s *MemoryStore[UserID, ItemID]) Users(ctx context.Context) ([]Entity[UserID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity[UserID], 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) Items(ctx context.Context) ([]Entity[ItemID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity[ItemID], 0, len(s.itemOrder))
	for _, id := range s.itemOrder {
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) UsersBy(ctx context.Context, q EntityQuery[UserID]) ([]Entity[UserID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch q.Kind {
	case ByID:
		out := make([]Entity[UserID], 0, len(q.IDs))
		for _, id := range q.IDs {
			e, ok := s.users[id]
			if !ok {
				return nil, recoerr.New(recoerr.NotFoundByID)
			}
			out = append(out, e)
		}
		return out, nil
	case ByName:
		return filterByName(s.userOrder, s.users, q.Names), nil
	case ByCustom:
		return filterByCustom(s.userOrder, s.users, q.Key, q.Value), nil
	default:
		return nil, recoerr.New(recoerr.NotFoundByID)
	}
}

func (s *MemoryStore[UserID, ItemID]) ItemsBy(ctx context.Context, q EntityQuery[ItemID]) ([]Entity[ItemID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch q.Kind {
	case ByID:
		out := make([]Entity[ItemID], 0, len(q.IDs))
		for _, id := range q.IDs {
			e, ok := s.items[id]
			if !ok {
				return nil, recoerr.New(recoerr.NotFoundByID)
			}
			out = append(out, e)
		}
		return out, nil
	case ByName:
		return filterByName(s.itemOrder, s.items, q.Names), nil
	case ByCustom:
		return filterByCustom(s.itemOrder, s.items, q.Key, q.Value), nil
	default:
		return nil, recoerr.New(recoerr.NotFoundByID)
	}
}

func filterByName[ID comparable](order []ID, table map[ID]Entity[ID], names []string) []Entity[ID] {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	out := make([]Entity[ID], 0)
	for _, id := range order {
		e := table[id]
		if _, ok := wanted[e.Name]; ok {
			out = append(out, e)
		}
	}
	return out
}

func filterByCustom[ID comparable](order []ID, table map[ID]Entity[ID], key string, value any) []Entity[ID] {
	out := make([]Entity[ID], 0)
	for _, id := range order {
		e := table[id]
		if e.Metadata == nil {
			continue
		}
		if v, ok := e.Metadata[key]; ok && v == value {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore[UserID, ItemID]) UsersOffsetLimit(ctx context.Context, offset, limit int) ([]Entity[UserID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := pageOf(s.userOrder, offset, limit)
	out := make([]Entity[UserID], 0, len(page))
	for _, id := range page {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) ItemsOffsetLimit(ctx context.Context, offset, limit int) ([]Entity[ItemID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := pageOf(s.itemOrder, offset, limit)
	out := make([]Entity[ItemID], 0, len(page))
	for _, id := range page {
		out = append(out, s.items[id])
	}
	return out, nil
}

func pageOf[ID comparable](order []ID, offset, limit int) []ID {
	if offset >= len(order) {
		return nil
	}
	end := offset + limit
	if end > len(order) {
		end = len(order)
	}
	return order[offset:end]
}

func (s *MemoryStore[UserID, ItemID]) UsersByChunks(ctx context.Context, size int) ChunkStream[UserID] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]UserID, len(s.userOrder))
	copy(ids, s.userOrder)
	return &sliceChunkStream[UserID]{items: ids, size: size}
}

func (s *MemoryStore[UserID, ItemID]) ItemsByChunks(ctx context.Context, size int) ChunkStream[ItemID] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ItemID, len(s.itemOrder))
	copy(ids, s.itemOrder)
	return &sliceChunkStream[ItemID]{items: ids, size: size}
}

// sliceChunkStream is a finite lazy stream backed by an already-materialized
// slice: Nth addresses chunks directly, mirroring Rust's Iterator::nth.
type sliceChunkStream[ID comparable] struct {
	items []ID
	size  int
}

func (c *sliceChunkStream[ID]) Nth(i int) ([]ID, bool) {
	if c.size <= 0 {
		return nil, false
	}
	start := i * c.size
	if start >= len(c.items) {
		return nil, false
	}
	end := start + c.size
	if end > len(c.items) {
		end = len(c.items)
	}
	return c.items[start:end], true
}

func (s *MemoryStore[UserID, ItemID]) UserRatings(ctx context.Context, user UserID) (sparse.Ratings[ItemID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[user]; !ok {
		return nil, recoerr.New(recoerr.NotFoundByID)
	}
	return cloneRatings(s.ratings[user]), nil
}

func (s *MemoryStore[UserID, ItemID]) UsersRatings(ctx context.Context, users []UserID) (sparse.MapedRatings[UserID, ItemID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(sparse.MapedRatings[UserID, ItemID], len(users))
	for _, u := range users {
		if _, ok := s.users[u]; !ok {
			continue
		}
		out[u] = cloneRatings(s.ratings[u])
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) UsersRatingsExcept(ctx context.Context, user UserID) (sparse.MapedRatings[UserID, ItemID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(sparse.MapedRatings[UserID, ItemID], len(s.userOrder))
	for _, u := range s.userOrder {
		if u == user {
			continue
		}
		out[u] = cloneRatings(s.ratings[u])
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) UsersWhoRated(ctx context.Context, items []ItemID) (sparse.MapedRatings[ItemID, UserID], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(sparse.MapedRatings[ItemID, UserID], len(items))
	for _, it := range items {
		out[it] = cloneRatings(s.itemUsers[it])
	}
	return out, nil
}

func cloneRatings[K comparable](r sparse.Ratings[K]) sparse.Ratings[K] {
	out := make(sparse.Ratings[K], len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (s *MemoryStore[UserID, ItemID]) CreatePartialUsers(ctx context.Context, ids []UserID) ([]Entity[UserID], error) {
	out := make([]Entity[UserID], 0, len(ids))
	for _, id := range ids {
		out = append(out, Entity[UserID]{ID: id})
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) CreatePartialItems(ctx context.Context, ids []ItemID) ([]Entity[ItemID], error) {
	out := make([]Entity[ItemID], 0, len(ids))
	for _, id := range ids {
		out = append(out, Entity[ItemID]{ID: id})
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) UsersMeans(ctx context.Context, users []Entity[UserID]) (map[UserID]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[UserID]float64, len(users))
	for _, u := range users {
		r := s.ratings[u.ID]
		if len(r) == 0 {
			continue
		}
		var sum float64
		for _, v := range r {
			sum += v
		}
		out[u.ID] = sum / float64(len(r))
	}
	return out, nil
}

func (s *MemoryStore[UserID, ItemID]) ScoreRange(ctx context.Context) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoreMin, s.scoreMax, nil
}

func (s *MemoryStore[UserID, ItemID]) InsertUser(ctx context.Context, u Entity[UserID]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; !exists {
		s.userOrder = append(s.userOrder, u.ID)
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore[UserID, ItemID]) InsertItem(ctx context.Context, i Entity[ItemID]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[i.ID]; !exists {
		s.itemOrder = append(s.itemOrder, i.ID)
	}
	s.items[i.ID] = i
	return nil
}

func (s *MemoryStore[UserID, ItemID]) InsertRating(ctx context.Context, user UserID, item ItemID, score float64) error {
	return s.writeRating(user, item, score, recoerr.InsertRatingFailed)
}

func (s *MemoryStore[UserID, ItemID]) UpdateRating(ctx context.Context, user UserID, item ItemID, score float64) error {
	return s.writeRating(user, item, score, recoerr.UpdateRatingFailed)
}

// writeRating writes the primary table first (source of truth), then the
// secondary inverted index; a secondary-index failure reverts the primary
// write so no half-applied state is ever observable externally.
func (s *MemoryStore[UserID, ItemID]) writeRating(user UserID, item ItemID, score float64, failureKind recoerr.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user]; !ok {
		return recoerr.New(recoerr.NotFoundByID)
	}
	if _, ok := s.items[item]; !ok {
		return recoerr.New(recoerr.NotFoundByID)
	}

	var previousValue float64
	hadPrevious := false
	if r, ok := s.ratings[user]; ok {
		previousValue, hadPrevious = r[item]
	}

	if s.ratings[user] == nil {
		s.ratings[user] = sparse.Ratings[ItemID]{}
	}
	s.ratings[user][item] = score

	if err := s.indexRating(item, user, score); err != nil {
		if hadPrevious {
			s.ratings[user][item] = previousValue
		} else {
			delete(s.ratings[user], item)
		}
		return recoerr.WrapCause(failureKind, "rating", err)
	}
	return nil
}

func (s *MemoryStore[UserID, ItemID]) indexRating(item ItemID, user UserID, score float64) error {
	if s.itemUsers[item] == nil {
		s.itemUsers[item] = sparse.Ratings[UserID]{}
	}
	s.itemUsers[item][user] = score
	return nil
}

func (s *MemoryStore[UserID, ItemID]) RemoveRating(ctx context.Context, user UserID, item ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, hasUser := s.ratings[user]
	if !hasUser {
		return recoerr.New(recoerr.NotFoundByID)
	}
	if _, hasRating := r[item]; !hasRating {
		return recoerr.New(recoerr.NotFoundByID)
	}
	delete(s.ratings[user], item)

	if s.itemUsers[item] != nil {
		delete(s.itemUsers[item], user)
	}
	return nil
}

func (s *MemoryStore[UserID, ItemID]) FieldsForUsers(ctx context.Context) []Field {
	return s.userFields
}

func (s *MemoryStore[UserID, ItemID]) FieldsForItems(ctx context.Context) []Field {
	return s.itemFields
}
