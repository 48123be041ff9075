package itemkernel

import (
	"github.com/arvelius/recoengine/internal/recoerr"
	"github.com/arvelius/recoengine/internal/sparse"
)

// SlopeOne computes the average pairwise rating difference over co-raters
// of two item->user rating vectors, plus the cardinality (number of
// co-raters) that average was taken over. Antisymmetric: SlopeOne(a,b).dev
// == -SlopeOne(b,a).dev, with equal cardinality either way. Fails with
// NoMatchingRatings when there are no co-raters.
func SlopeOne[User comparable](ra, rb sparse.Ratings[User]) (dev float64, card int, err error) {
	entries := sparse.CommonKeys(ra, rb)
	if len(entries) == 0 {
		return 0, 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	var sum float64
	for _, e := range entries {
		sum += e.A - e.B
	}
	return sum / float64(len(entries)), len(entries), nil
}
