package pricing

import (
	"context"
	"sync"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// MemCache is the default in-process SnapshotCache. It holds the single
// latest snapshot; no external service is required.
type MemCache struct {
	mu   sync.RWMutex
	snap domain.PriceSnapshot
	set  bool
}

var _ domain.SnapshotCache = (*MemCache)(nil)

// NewMemCache returns an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{}
}

// Put stores the snapshot, replacing any previous one.
func (c *MemCache) Put(_ context.Context, snap domain.PriceSnapshot) error {
	c.mu.Lock()
	c.snap = snap
	c.set = true
	c.mu.Unlock()
	return nil
}

// Get returns the stored snapshot, or domain.ErrNotFound when nothing has
// been stored yet.
func (c *MemCache) Get(_ context.Context) (domain.PriceSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set {
		return domain.PriceSnapshot{}, domain.ErrNotFound
	}
	return c.snap, nil
}
