// Package sparse provides the common-key join over two sparse rating maps
// that every distance/similarity kernel is built on.
package sparse

// Ratings is a sparse mapping from item (or user) id to a finite real
// score. Absent keys mean "unrated", never "zero".
type Ratings[Item comparable] map[Item]float64

// MapedRatings is an inverted rating table: a mapping from an outer id
// (user or item) to that id's Ratings over the inner id space. Used in
// both orientations: user->items and item->users.
type MapedRatings[Outer, Inner comparable] map[Outer]Ratings[Inner]

// Entry is one shared key with its value from both maps, in (a, b) order.
type Entry[K comparable] struct {
	Key K
	A   float64
	B   float64
}

// CommonKeys returns every key present in both a and b, paired with its
// value from each. It walks whichever of the two maps is smaller and looks
// up into the larger, for O(min(|a|,|b|)) cost regardless of which side
// happens to be bigger.
func CommonKeys[K comparable](a, b map[K]float64) []Entry[K] {
	if len(b) < len(a) {
		entries := make([]Entry[K], 0, len(b))
		for k, bv := range b {
			if av, ok := a[k]; ok {
				entries = append(entries, Entry[K]{Key: k, A: av, B: bv})
			}
		}
		return entries
	}
	entries := make([]Entry[K], 0, len(a))
	for k, av := range a {
		if bv, ok := b[k]; ok {
			entries = append(entries, Entry[K]{Key: k, A: av, B: bv})
		}
	}
	return entries
}
