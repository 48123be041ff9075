// Package matrix implements the chunked similarity/deviation matrix
// engine: two lazy finite streams over a store's items, a rating
// inversion per tile request, a memoized mean cache (similarity flavor
// only), and a single on-demand matrix tile.
package matrix

import (
	"context"

	"github.com/arvelius/recoengine/internal/itemkernel"
	"github.com/arvelius/recoengine/internal/recoerr"
	"github.com/arvelius/recoengine/internal/sparse"
	"github.com/arvelius/recoengine/pkg/store"
)

// Config holds the chunk-size optimization knobs: ChunkSizeThreshold (0 <
// τ ≤ 1), PartialUsersChunkSize (positive, batch size for mean top-up),
// AllowChunkOptimization (gate for OptimizeChunkSize).
type Config struct {
	ChunkSizeThreshold     float64
	PartialUsersChunkSize  int
	AllowChunkOptimization bool
}

// MeanCacheSoftLimit bounds the adjusted-cosine mean cache; exceeding it
// triggers an eviction of the lowest-usage quartile on the next tile build.
const MeanCacheSoftLimit = 10000

// ChunkedMatrix is the capability shared by SimilarityMatrix and
// DeviationMatrix.
type ChunkedMatrix[ItemID comparable] interface {
	ApproximateChunkSize() int
	OptimizeChunkSize()
	CalculateChunk(ctx context.Context, i, j int) error
	GetValue(a, b ItemID) (float64, bool)
}

// SimilarityMatrix builds similarity tiles via adjusted cosine, backed by a
// memoized per-user mean cache. This is the consolidated type resolving
// the two near-duplicate definitions upstream: the chunked, config-aware
// shape is authoritative.
type SimilarityMatrix[UserID, ItemID comparable] struct {
	store  store.Store[UserID, ItemID]
	config Config

	verChunkSize, horChunkSize int
	verIter, horIter           store.ChunkStream[ItemID]

	adjCosine *itemkernel.AdjCosine[UserID]

	tile map[ItemID]map[ItemID]float64
}

// NewSimilarityMatrix constructs a similarity matrix with initial vertical
// chunk size m and horizontal chunk size n.
func NewSimilarityMatrix[UserID, ItemID comparable](ctx context.Context, s store.Store[UserID, ItemID], cfg Config, m, n int) *SimilarityMatrix[UserID, ItemID] {
	return &SimilarityMatrix[UserID, ItemID]{
		store:        s,
		config:       cfg,
		verChunkSize: m,
		horChunkSize: n,
		verIter:      s.ItemsByChunks(ctx, m),
		horIter:      s.ItemsByChunks(ctx, n),
		adjCosine:    itemkernel.NewAdjCosine[UserID](),
	}
}

// ApproximateChunkSize stays a stub returning a constant: the store would
// need a cheap "counter" over ratings to estimate this properly, which no
// current Store implementation provides (see the Open Question decision).
func (m *SimilarityMatrix[UserID, ItemID]) ApproximateChunkSize() int { return 1 }

// OptimizeChunkSize halves both chunk sizes while the (stubbed) estimate
// exceeds the configured threshold. Since ApproximateChunkSize is
// constant, the loop's real termination guard is verChunkSize/horChunkSize
// reaching 1, not estimate convergence.
func (m *SimilarityMatrix[UserID, ItemID]) OptimizeChunkSize() {
	if !m.config.AllowChunkOptimization {
		return
	}
	original := m.ApproximateChunkSize()
	target := int(float64(original) * m.config.ChunkSizeThreshold)
	for m.ApproximateChunkSize() > target && m.verChunkSize > 1 && m.horChunkSize > 1 {
		m.verChunkSize /= 2
		m.horChunkSize /= 2
	}
}

func (m *SimilarityMatrix[UserID, ItemID]) CalculateChunk(ctx context.Context, i, j int) error {
	verItems, ok := m.verIter.Nth(i)
	if !ok {
		return recoerr.New(recoerr.IndexOutOfBound)
	}
	horItems, ok := m.horIter.Nth(j)
	if !ok {
		return recoerr.New(recoerr.IndexOutOfBound)
	}

	verUsers, err := m.store.UsersWhoRated(ctx, verItems)
	if err != nil {
		return err
	}
	horUsers, err := m.store.UsersWhoRated(ctx, horItems)
	if err != nil {
		return err
	}
	dropEmpty(verUsers)
	dropEmpty(horUsers)

	allUsers := make(map[UserID]struct{})
	for _, ratings := range verUsers {
		for u := range ratings {
			allUsers[u] = struct{}{}
		}
	}
	for _, ratings := range horUsers {
		for u := range ratings {
			allUsers[u] = struct{}{}
		}
	}

	m.adjCosine.ShrinkMeans(MeanCacheSoftLimit)

	needMeans := make([]UserID, 0, len(allUsers))
	for u := range allUsers {
		if !m.adjCosine.HasMeanFor(u) {
			needMeans = append(needMeans, u)
		}
	}
	partials, err := m.store.CreatePartialUsers(ctx, needMeans)
	if err != nil {
		return err
	}

	pu := m.config.PartialUsersChunkSize
	if pu <= 0 {
		pu = len(partials)
		if pu == 0 {
			pu = 1
		}
	}
	for start := 0; start < len(partials); start += pu {
		end := start + pu
		if end > len(partials) {
			end = len(partials)
		}
		means, err := m.store.UsersMeans(ctx, partials[start:end])
		if err != nil {
			return err
		}
		m.adjCosine.AddNewMeans(means)
	}

	tile := make(map[ItemID]map[ItemID]float64, len(verUsers))
	for itemA, ratingsA := range verUsers {
		if _, exists := tile[itemA]; !exists {
			tile[itemA] = make(map[ItemID]float64, len(horUsers))
		}
		for itemB, ratingsB := range horUsers {
			if _, rowExists := tile[itemB]; rowExists {
				continue
			}
			sim, err := m.adjCosine.Calculate(ratingsA, ratingsB)
			if err != nil {
				continue
			}
			tile[itemA][itemB] = sim
		}
		tile[itemA][itemA] = 1.0
	}
	m.tile = tile
	return nil
}

// GetValue returns M[a][b] if present, else the symmetric fallback
// M[b][a]; similarity is symmetric so no sign flip is needed.
func (m *SimilarityMatrix[UserID, ItemID]) GetValue(a, b ItemID) (float64, bool) {
	if row, ok := m.tile[a]; ok {
		if v, ok := row[b]; ok {
			return v, true
		}
	}
	if row, ok := m.tile[b]; ok {
		if v, ok := row[a]; ok {
			return v, true
		}
	}
	return 0, false
}

// DeviationMatrix builds deviation tiles via Slope-One. It carries no mean
// cache; its GetValue fallback negates the transposed value since
// deviation is antisymmetric.
type DeviationMatrix[UserID, ItemID comparable] struct {
	store  store.Store[UserID, ItemID]
	config Config

	verChunkSize, horChunkSize int
	verIter, horIter           store.ChunkStream[ItemID]

	tile map[ItemID]map[ItemID]float64
}

// NewDeviationMatrix constructs a deviation matrix with initial vertical
// chunk size m and horizontal chunk size n.
func NewDeviationMatrix[UserID, ItemID comparable](ctx context.Context, s store.Store[UserID, ItemID], cfg Config, m, n int) *DeviationMatrix[UserID, ItemID] {
	return &DeviationMatrix[UserID, ItemID]{
		store:        s,
		config:       cfg,
		verChunkSize: m,
		horChunkSize: n,
		verIter:      s.ItemsByChunks(ctx, m),
		horIter:      s.ItemsByChunks(ctx, n),
	}
}

func (m *DeviationMatrix[UserID, ItemID]) ApproximateChunkSize() int { return 1 }

func (m *DeviationMatrix[UserID, ItemID]) OptimizeChunkSize() {
	if !m.config.AllowChunkOptimization {
		return
	}
	original := m.ApproximateChunkSize()
	target := int(float64(original) * m.config.ChunkSizeThreshold)
	for m.ApproximateChunkSize() > target && m.verChunkSize > 1 && m.horChunkSize > 1 {
		m.verChunkSize /= 2
		m.horChunkSize /= 2
	}
}

func (m *DeviationMatrix[UserID, ItemID]) CalculateChunk(ctx context.Context, i, j int) error {
	verItems, ok := m.verIter.Nth(i)
	if !ok {
		return recoerr.New(recoerr.IndexOutOfBound)
	}
	horItems, ok := m.horIter.Nth(j)
	if !ok {
		return recoerr.New(recoerr.IndexOutOfBound)
	}

	verUsers, err := m.store.UsersWhoRated(ctx, verItems)
	if err != nil {
		return err
	}
	horUsers, err := m.store.UsersWhoRated(ctx, horItems)
	if err != nil {
		return err
	}
	dropEmpty(verUsers)
	dropEmpty(horUsers)

	tile := make(map[ItemID]map[ItemID]float64, len(verUsers))
	for itemA, ratingsA := range verUsers {
		if _, exists := tile[itemA]; !exists {
			tile[itemA] = make(map[ItemID]float64, len(horUsers))
		}
		for itemB, ratingsB := range horUsers {
			if _, rowExists := tile[itemB]; rowExists {
				continue
			}
			dev, _, err := itemkernel.SlopeOne(ratingsA, ratingsB)
			if err != nil {
				continue
			}
			tile[itemA][itemB] = dev
		}
		tile[itemA][itemA] = 0.0
	}
	m.tile = tile
	return nil
}

// GetValue returns M[a][b] if present, else -M[b][a] since deviation is
// antisymmetric.
func (m *DeviationMatrix[UserID, ItemID]) GetValue(a, b ItemID) (float64, bool) {
	if row, ok := m.tile[a]; ok {
		if v, ok := row[b]; ok {
			return v, true
		}
	}
	if row, ok := m.tile[b]; ok {
		if v, ok := row[a]; ok {
			return -v, true
		}
	}
	return 0, false
}

func dropEmpty[K, V comparable](m sparse.MapedRatings[K, V]) {
	for k, r := range m {
		if len(r) == 0 {
			delete(m, k)
		}
	}
}
