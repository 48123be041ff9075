// Package engine is the composition root for the prediction core: it
// wires the distance/item kernels, the k-NN selector, and the mean cache
// against a Store to produce the three prediction flavors.
package engine

import (
	"context"
	"math"

	"github.com/arvelius/recoengine/internal/itemkernel"
	"github.com/arvelius/recoengine/internal/kernel"
	"github.com/arvelius/recoengine/internal/knn"
	"github.com/arvelius/recoengine/internal/matrix"
	"github.com/arvelius/recoengine/internal/normalize"
	"github.com/arvelius/recoengine/internal/recoerr"
	"github.com/arvelius/recoengine/internal/sparse"
	"github.com/arvelius/recoengine/pkg/store"
)

// Logger is the narrow logging capability Engine needs at each prediction
// checkpoint; pkg/observability's Logger satisfies this structurally.
type Logger interface {
	Infof(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any) {}

// Engine holds a single Store collaborator and drives the three
// prediction algorithms over it.
type Engine[UserID, ItemID comparable] struct {
	store  store.Store[UserID, ItemID]
	logger Logger
}

// New constructs an Engine over the given store with a no-op logger;
// use WithLogger to attach a real one.
func New[UserID, ItemID comparable](s store.Store[UserID, ItemID]) *Engine[UserID, ItemID] {
	return &Engine[UserID, ItemID]{store: s, logger: noopLogger{}}
}

// WithLogger attaches a logger and returns the same Engine for chaining.
func (e *Engine[UserID, ItemID]) WithLogger(l Logger) *Engine[UserID, ItemID] {
	if l != nil {
		e.logger = l
	}
	return e
}

// PredictUserBased predicts user's rating for item via k-NN over the
// chosen method, then reweights surviving neighbors with Pearson
// approximation regardless of which method selected them. chunkSize <= 0
// fetches all other users' ratings in one call.
func (e *Engine[UserID, ItemID]) PredictUserBased(ctx context.Context, k int, user UserID, item ItemID, method kernel.Method, p float64, chunkSize int) (float64, error) {
	if k <= 0 {
		return 0, recoerr.New(recoerr.EmptyKNearestNeighbors)
	}

	e.logger.Infof("gathering user ratings for prediction")
	userRatings, err := e.store.UserRatings(ctx, user)
	if err != nil {
		return 0, err
	}

	selector := knn.New[UserID, ItemID](k, method, p)

	if chunkSize > 0 {
		e.logger.Infof("iterating users by chunks of size %d", chunkSize)
		stream := e.store.UsersByChunks(ctx, chunkSize)
		for i := 0; ; i++ {
			chunk, ok := stream.Nth(i)
			if !ok {
				break
			}
			batch, err := e.store.UsersRatings(ctx, chunk)
			if err != nil {
				return 0, err
			}
			filterHasItem(batch, item)
			selector.Update(userRatings, batch)
		}
	} else {
		batch, err := e.store.UsersRatingsExcept(ctx, user)
		if err != nil {
			return 0, err
		}
		filterHasItem(batch, item)
		selector.Update(userRatings, batch)
	}

	neighbors := selector.IntoSlice()
	if len(neighbors) == 0 {
		return 0, recoerr.New(recoerr.EmptyKNearestNeighbors)
	}

	e.logger.Infof("reweighting %d neighbors via pearson approximation", len(neighbors))
	var weightedSum, weightSum float64
	contributed := false
	for _, n := range neighbors {
		weight, err := kernel.PearsonApprox(userRatings, n.Ratings)
		if err != nil {
			continue
		}
		rating, ok := n.Ratings[item]
		if !ok {
			continue
		}
		weightedSum += weight * rating
		weightSum += weight
		contributed = true
	}
	if !contributed {
		return 0, recoerr.New(recoerr.EmptyKNearestNeighbors)
	}
	if weightSum == 0 {
		return 0, recoerr.New(recoerr.DivisionByZero)
	}
	return weightedSum / weightSum, nil
}

func filterHasItem[UserID, ItemID comparable](batch sparse.MapedRatings[UserID, ItemID], item ItemID) {
	for u, r := range batch {
		if _, ok := r[item]; !ok {
			delete(batch, u)
		}
	}
}

// PredictItemBased predicts user's rating for item via adjusted cosine
// over co-rated items, iterating the item space in chunks of itemChunkSize.
func (e *Engine[UserID, ItemID]) PredictItemBased(ctx context.Context, user UserID, item ItemID, itemChunkSize int) (float64, error) {
	userRatings, err := e.store.UserRatings(ctx, user)
	if err != nil {
		return 0, err
	}
	min, max, err := e.store.ScoreRange(ctx)
	if err != nil {
		return 0, err
	}
	normalized, err := normalize.Ratings(userRatings, min, max)
	if err != nil {
		return 0, err
	}

	e.logger.Infof("gathering users who rated for target item")
	targetUsers, err := e.store.UsersWhoRated(ctx, []ItemID{item})
	if err != nil {
		return 0, err
	}
	target := targetUsers[item]

	meanCache := itemkernel.NewAdjCosine[UserID]()
	var num, den float64

	stream := e.store.ItemsByChunks(ctx, itemChunkSize)
	for i := 0; ; i++ {
		chunk, ok := stream.Nth(i)
		if !ok {
			break
		}

		filtered := make([]ItemID, 0, len(chunk))
		for _, it := range chunk {
			if _, rated := userRatings[it]; rated {
				filtered = append(filtered, it)
			}
		}
		if len(filtered) == 0 {
			continue
		}

		coRaters, err := e.store.UsersWhoRated(ctx, filtered)
		if err != nil {
			return 0, err
		}
		for it, ratings := range coRaters {
			if _, ok := ratings[user]; !ok {
				delete(coRaters, it)
			}
		}
		coRaters[item] = target

		allUsers := make(map[UserID]struct{})
		for _, r := range coRaters {
			for u := range r {
				allUsers[u] = struct{}{}
			}
		}

		e.logger.Infof("shrinking means based on their usage")
		meanCache.ShrinkMeans(matrix.MeanCacheSoftLimit)

		need := make([]UserID, 0, len(allUsers))
		for u := range allUsers {
			if !meanCache.HasMeanFor(u) {
				need = append(need, u)
			}
		}
		partials, err := e.store.CreatePartialUsers(ctx, need)
		if err != nil {
			return 0, err
		}
		means, err := e.store.UsersMeans(ctx, partials)
		if err != nil {
			return 0, err
		}
		meanCache.AddNewMeans(means)

		for otherItem, otherRatings := range coRaters {
			if otherItem == item {
				continue
			}
			sim, err := meanCache.Calculate(target, otherRatings)
			if err != nil {
				continue
			}
			num += sim * normalized[otherItem]
			den += math.Abs(sim)
		}
	}

	if den == 0 {
		return 0, recoerr.New(recoerr.DivisionByZero)
	}
	e.logger.Infof("denormalizing the final score")
	return normalize.Denormalize(num/den, min, max), nil
}

// PredictSlopeOne predicts user's rating for item via Slope-One deviations
// over the user's own rated items, paginated in chunks of itemChunkSize.
func (e *Engine[UserID, ItemID]) PredictSlopeOne(ctx context.Context, user UserID, item ItemID, itemChunkSize int) (float64, error) {
	targetUsers, err := e.store.UsersWhoRated(ctx, []ItemID{item})
	if err != nil {
		return 0, err
	}
	target := targetUsers[item]

	userRatings, err := e.store.UserRatings(ctx, user)
	if err != nil {
		return 0, err
	}
	ratedItems := make([]ItemID, 0, len(userRatings))
	for it := range userRatings {
		if it == item {
			continue
		}
		ratedItems = append(ratedItems, it)
	}

	size := itemChunkSize
	if size <= 0 {
		size = len(ratedItems)
	}
	if size == 0 {
		size = 1
	}

	var num, den float64
	for start := 0; start < len(ratedItems); start += size {
		end := start + size
		if end > len(ratedItems) {
			end = len(ratedItems)
		}
		chunk := ratedItems[start:end]

		coRaters, err := e.store.UsersWhoRated(ctx, chunk)
		if err != nil {
			return 0, err
		}
		for j, rj := range coRaters {
			dev, card, err := itemkernel.SlopeOne(target, rj)
			if err != nil {
				continue
			}
			num += (dev + userRatings[j]) * float64(card)
			den += float64(card)
		}
	}

	if den == 0 {
		return 0, recoerr.New(recoerr.DivisionByZero)
	}
	return num / den, nil
}
