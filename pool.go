package collect

import (
	"sync"
)

// PoolManager recycles the tag maps allocated for trace nodes, which are
// the one high-churn allocation in a traced tree.
type PoolManager struct {
	tagMapPool sync.Pool

	metrics PoolMetrics
}

// PoolMetrics tracks pool usage statistics
type PoolMetrics struct {
	mu           sync.RWMutex
	tagMapHits   uint64
	tagMapMisses uint64
}

// Hits returns the number of allocations served from the pool.
func (m *PoolMetrics) Hits() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tagMapHits
}

// Misses returns the number of allocations the pool could not serve.
func (m *PoolMetrics) Misses() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tagMapMisses
}

// NewPoolManager creates a new pool manager with initialized pools
func NewPoolManager() *PoolManager {
	return &PoolManager{
		tagMapPool: sync.Pool{
			New: func() any {
				return make(map[any]any, 8)
			},
		},
	}
}

// AcquireTagMap gets an empty tag map from the pool or allocates one
func (pm *PoolManager) AcquireTagMap() map[any]any {
	tags, ok := pm.tagMapPool.Get().(map[any]any)
	if ok {
		pm.metrics.mu.Lock()
		pm.metrics.tagMapHits++
		pm.metrics.mu.Unlock()
	} else {
		tags = make(map[any]any, 8)

		pm.metrics.mu.Lock()
		pm.metrics.tagMapMisses++
		pm.metrics.mu.Unlock()
	}

	return tags
}

// ReleaseTagMap clears a tag map and returns it to the pool
func (pm *PoolManager) ReleaseTagMap(tags map[any]any) {
	if tags == nil {
		return
	}

	for k := range tags {
		delete(tags, k)
	}

	pm.tagMapPool.Put(tags)
}

// GetMetrics returns a copy of the current pool metrics
func (pm *PoolManager) GetMetrics() PoolMetrics {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()

	return PoolMetrics{
		tagMapHits:   pm.metrics.tagMapHits,
		tagMapMisses: pm.metrics.tagMapMisses,
	}
}

// ResetMetrics resets all pool metrics to zero
func (pm *PoolManager) ResetMetrics() {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.tagMapHits = 0
	pm.metrics.tagMapMisses = 0
}

// Global pool manager instance
var globalPoolManager = NewPoolManager()

// GetGlobalPoolManager returns the global pool manager instance
func GetGlobalPoolManager() *PoolManager {
	return globalPoolManager
}

func acquireTagMap() map[any]any {
	return globalPoolManager.AcquireTagMap()
}

func releaseTagMap(tags map[any]any) {
	globalPoolManager.ReleaseTagMap(tags)
}
