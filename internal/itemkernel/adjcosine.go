// Package itemkernel implements the item-item similarity kernels used by
// the chunked matrix engine: adjusted cosine (with a memoized per-user mean
// cache) and Slope-One deviation.
package itemkernel

import (
	"math"
	"sort"

	"github.com/arvelius/recoengine/internal/recoerr"
	"github.com/arvelius/recoengine/internal/sparse"
)

// AdjCosine memoizes per-user mean ratings for the adjusted-cosine kernel.
// Every key in means has a matching counter entry; keys are never in
// counters but not means. It is owned exclusively by one matrix or predict
// driver for the duration of a single operation, never a process-wide
// singleton.
type AdjCosine[User comparable] struct {
	means    map[User]float64
	counters map[User]int
}

// NewAdjCosine returns an empty mean cache.
func NewAdjCosine[User comparable]() *AdjCosine[User] {
	return &AdjCosine[User]{
		means:    make(map[User]float64),
		counters: make(map[User]int),
	}
}

// HasMeanFor reports whether a mean is cached for the given user.
func (c *AdjCosine[User]) HasMeanFor(user User) bool {
	_, ok := c.means[user]
	return ok
}

// AddNewMeans bulk-inserts means, initializing each new entry's counter to
// 0. Existing entries are left untouched (their counters are not reset).
func (c *AdjCosine[User]) AddNewMeans(batch map[User]float64) {
	for u, mean := range batch {
		if _, exists := c.means[u]; exists {
			continue
		}
		c.means[u] = mean
		c.counters[u] = 0
	}
}

// ShrinkMeans evicts entries whose usage counter falls in the lowest
// quartile, once the cache exceeds softLimit entries. This realizes the
// suggested eviction policy from the design notes; softLimit is an
// implementation-chosen free parameter, not mandated by the source.
func (c *AdjCosine[User]) ShrinkMeans(softLimit int) {
	if softLimit <= 0 || len(c.means) <= softLimit {
		return
	}
	type kc struct {
		user    User
		counter int
	}
	entries := make([]kc, 0, len(c.counters))
	for u, cnt := range c.counters {
		entries = append(entries, kc{u, cnt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].counter < entries[j].counter })

	evict := len(c.means) - softLimit
	quartile := len(entries) / 4
	if evict > quartile {
		evict = quartile
	}
	for i := 0; i < evict; i++ {
		u := entries[i].user
		delete(c.means, u)
		delete(c.counters, u)
	}
}

// Len returns the number of cached means.
func (c *AdjCosine[User]) Len() int { return len(c.means) }

// Calculate computes adjusted cosine similarity between two item->user
// rating vectors ra, rb. Every common user with a known mean contributes;
// that user's usage counter is incremented. Fails with IndeterminateForm
// when no user contributed, either running sum of squares is 0, or the
// result is NaN/Inf.
func (c *AdjCosine[User]) Calculate(ra, rb sparse.Ratings[User]) (float64, error) {
	var cov, da, db float64
	contributed := false

	for _, e := range sparse.CommonKeys(ra, rb) {
		mean, ok := c.means[e.Key]
		if !ok {
			continue
		}
		contributed = true
		ca, cb := e.A-mean, e.B-mean
		cov += ca * cb
		da += ca * ca
		db += cb * cb
		c.counters[e.Key]++
	}

	if !contributed || da == 0 || db == 0 {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	result := cov / (math.Sqrt(da) * math.Sqrt(db))
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	return result, nil
}

// AdjustedCosineMeans computes, for every user with at least one rating in
// ratings, that user's mean rating. This is the standalone mean computation
// used to populate an AdjCosine cache in bulk.
func AdjustedCosineMeans[User, Item comparable](ratings sparse.MapedRatings[User, Item]) map[User]float64 {
	means := make(map[User]float64, len(ratings))
	for user, r := range ratings {
		if len(r) == 0 {
			continue
		}
		var sum float64
		for _, v := range r {
			sum += v
		}
		means[user] = sum / float64(len(r))
	}
	return means
}
