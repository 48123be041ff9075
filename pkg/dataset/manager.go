// Package dataset manages named rating datasets, each backed by its own
// Store, the way the teacher's pkg/tenant manages named vector namespaces
// each backed by its own index.
package dataset

import (
	"fmt"
	"sync"
	"time"

	"github.com/arvelius/recoengine/pkg/store"
)

// Quota represents resource limits for a dataset.
type Quota struct {
	MaxUsers     int64 // maximum distinct users
	MaxItems     int64 // maximum distinct items
	MaxRatings   int64 // maximum stored ratings
	RateLimitQPS int   // prediction queries per second
}

// Usage tracks current resource usage for a dataset.
type Usage struct {
	UserCount     int64
	ItemCount     int64
	RatingCount   int64
	LastQueryTime time.Time
	QueryCount    int64
}

// Dataset is a named Store plus its quota/usage bookkeeping.
type Dataset struct {
	ID        string
	Name      string
	Store     store.Store[string, string]
	Quota     Quota
	Usage     Usage
	CreatedAt time.Time
	UpdatedAt time.Time
	IsActive  bool
	Metadata  map[string]any
	mu        sync.RWMutex
}

// Manager handles dataset lifecycle and quota enforcement.
type Manager struct {
	datasets map[string]*Dataset
	mu       sync.RWMutex
}

// NewManager creates a new, empty dataset manager.
func NewManager() *Manager {
	return &Manager{datasets: make(map[string]*Dataset)}
}

// CreateDataset registers a new named dataset over the given store.
func (m *Manager) CreateDataset(name string, s store.Store[string, string], quota Quota) (*Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.datasets[name]; exists {
		return nil, fmt.Errorf("dataset '%s' already exists", name)
	}

	ds := &Dataset{
		ID:        generateDatasetID(name),
		Name:      name,
		Store:     s,
		Quota:     quota,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		IsActive:  true,
		Metadata:  make(map[string]any),
	}
	m.datasets[name] = ds
	return ds, nil
}

// GetDataset retrieves a dataset by name.
func (m *Manager) GetDataset(name string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds, exists := m.datasets[name]
	if !exists {
		return nil, fmt.Errorf("dataset '%s' not found", name)
	}
	return ds, nil
}

// DeleteDataset removes a dataset from the manager.
func (m *Manager) DeleteDataset(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.datasets[name]; !exists {
		return fmt.Errorf("dataset '%s' not found", name)
	}
	delete(m.datasets, name)
	return nil
}

// ListDatasets returns every registered dataset.
func (m *Manager) ListDatasets() []*Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Dataset, 0, len(m.datasets))
	for _, ds := range m.datasets {
		out = append(out, ds)
	}
	return out
}

// UpdateQuota replaces a dataset's quota.
func (m *Manager) UpdateQuota(name string, quota Quota) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ds, exists := m.datasets[name]
	if !exists {
		return fmt.Errorf("dataset '%s' not found", name)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.Quota = quota
	ds.UpdatedAt = time.Now()
	return nil
}

// CheckUserQuota reports whether adding count users would exceed quota.
func (d *Dataset) CheckUserQuota(count int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.Quota.MaxUsers > 0 && d.Usage.UserCount+count > d.Quota.MaxUsers {
		return fmt.Errorf("user quota exceeded: current=%d, requested=%d, max=%d",
			d.Usage.UserCount, count, d.Quota.MaxUsers)
	}
	return nil
}

// CheckItemQuota reports whether adding count items would exceed quota.
func (d *Dataset) CheckItemQuota(count int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.Quota.MaxItems > 0 && d.Usage.ItemCount+count > d.Quota.MaxItems {
		return fmt.Errorf("item quota exceeded: current=%d, requested=%d, max=%d",
			d.Usage.ItemCount, count, d.Quota.MaxItems)
	}
	return nil
}

// CheckRatingQuota reports whether adding count ratings would exceed quota.
func (d *Dataset) CheckRatingQuota(count int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.Quota.MaxRatings > 0 && d.Usage.RatingCount+count > d.Quota.MaxRatings {
		return fmt.Errorf("rating quota exceeded: current=%d, requested=%d, max=%d",
			d.Usage.RatingCount, count, d.Quota.MaxRatings)
	}
	return nil
}

// CheckRateLimit enforces RateLimitQPS over a fixed one-second window that
// restarts on the first query made a second or more after the window began.
func (d *Dataset) CheckRateLimit() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Quota.RateLimitQPS <= 0 {
		return nil
	}

	now := time.Now()
	if now.Sub(d.Usage.LastQueryTime) < time.Second {
		if d.Usage.QueryCount >= int64(d.Quota.RateLimitQPS) {
			return fmt.Errorf("rate limit exceeded: %d queries per second (max: %d)",
				d.Usage.QueryCount, d.Quota.RateLimitQPS)
		}
	} else {
		d.Usage.QueryCount = 0
		d.Usage.LastQueryTime = now
	}

	d.Usage.QueryCount++
	return nil
}

// IncrementUserCount increments the tracked user count.
func (d *Dataset) IncrementUserCount(count int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Usage.UserCount += count
	d.UpdatedAt = time.Now()
}

// IncrementItemCount increments the tracked item count.
func (d *Dataset) IncrementItemCount(count int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Usage.ItemCount += count
	d.UpdatedAt = time.Now()
}

// IncrementRatingCount increments the tracked rating count.
func (d *Dataset) IncrementRatingCount(count int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Usage.RatingCount += count
	d.UpdatedAt = time.Now()
}

// DecrementRatingCount decrements the tracked rating count, floored at 0.
func (d *Dataset) DecrementRatingCount(count int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Usage.RatingCount -= count
	if d.Usage.RatingCount < 0 {
		d.Usage.RatingCount = 0
	}
	d.UpdatedAt = time.Now()
}

// GetUsagePercentage returns usage as a percentage of quota per resource.
func (d *Dataset) GetUsagePercentage() map[string]float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]float64)
	if d.Quota.MaxUsers > 0 {
		out["users"] = float64(d.Usage.UserCount) / float64(d.Quota.MaxUsers) * 100
	}
	if d.Quota.MaxItems > 0 {
		out["items"] = float64(d.Usage.ItemCount) / float64(d.Quota.MaxItems) * 100
	}
	if d.Quota.MaxRatings > 0 {
		out["ratings"] = float64(d.Usage.RatingCount) / float64(d.Quota.MaxRatings) * 100
	}
	return out
}

// IsOverQuota reports whether any quota is currently exceeded.
func (d *Dataset) IsOverQuota() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.Quota.MaxUsers > 0 && d.Usage.UserCount > d.Quota.MaxUsers {
		return true
	}
	if d.Quota.MaxItems > 0 && d.Usage.ItemCount > d.Quota.MaxItems {
		return true
	}
	if d.Quota.MaxRatings > 0 && d.Usage.RatingCount > d.Quota.MaxRatings {
		return true
	}
	return false
}

// SetActive toggles the dataset's active status.
func (d *Dataset) SetActive(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.IsActive = active
	d.UpdatedAt = time.Now()
}

// GetMetadata retrieves a metadata value.
func (d *Dataset) GetMetadata(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.Metadata[key]
	return v, ok
}

// SetMetadata sets a metadata value.
func (d *Dataset) SetMetadata(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Metadata[key] = value
	d.UpdatedAt = time.Now()
}

func generateDatasetID(name string) string {
	return fmt.Sprintf("dataset_%s_%d", name, time.Now().UnixNano())
}

// DefaultQuota returns a moderate default quota for seeded datasets.
func DefaultQuota() Quota {
	return Quota{
		MaxUsers:     1_000_000,
		MaxItems:     1_000_000,
		MaxRatings:   100_000_000,
		RateLimitQPS: 1000,
	}
}

// UnlimitedQuota returns a quota with every limit disabled.
func UnlimitedQuota() Quota {
	return Quota{
		MaxUsers:     -1,
		MaxItems:     -1,
		MaxRatings:   -1,
		RateLimitQPS: -1,
	}
}
