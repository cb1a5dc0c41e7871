package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hisaab/internal/aggregate"
	"hisaab/internal/cache"
	"hisaab/internal/core"
	"hisaab/internal/storage"
)

const dashboardCacheSize = 1000

// DashboardService computes per owner rollups, caching them until the owner
// changes a hisaab or the TTL passes.
type DashboardService struct {
	store storage.HisaabStore
	cache *cache.LRUCache[core.Dashboard]

	// generations counts invalidations per owner. A rollup is only cached
	// when no invalidation happened while it was being computed.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewDashboardService caches dashboards for ttl. A zero ttl disables caching.
func NewDashboardService(store storage.HisaabStore, ttl time.Duration) *DashboardService {
	s := &DashboardService{store: store, generations: make(map[string]uint64)}
	if ttl > 0 {
		s.cache = cache.NewLRUCache[core.Dashboard](dashboardCacheSize, ttl)
	}
	return s
}

// Cache exposes the dashboard cache for periodic cleanup, or nil.
func (s *DashboardService) Cache() *cache.LRUCache[core.Dashboard] {
	return s.cache
}

func (s *DashboardService) Dashboard(ctx context.Context, ownerID string) (core.Dashboard, error) {
	var gen uint64
	if s.cache != nil {
		if d, ok := s.cache.Get(ownerID); ok {
			return d, nil
		}
		gen = s.generation(ownerID)
	}

	records, err := s.store.Find(ctx, storage.Filter{OwnerID: ownerID})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("load hisaabs for dashboard: %w", err)
	}
	d := aggregate.Build(records, ownerID)

	if s.cache != nil {
		s.mu.Lock()
		if s.generations[ownerID] == gen {
			s.cache.Set(ownerID, d)
		}
		s.mu.Unlock()
	}
	return d, nil
}

func (s *DashboardService) generation(ownerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[ownerID]
}

// Invalidate implements Invalidator.
func (s *DashboardService) Invalidate(ownerID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[ownerID]++
	s.cache.Delete(ownerID)
}
