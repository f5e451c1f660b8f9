package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cognita/internal/cache"
	"cognita/internal/core"
	"cognita/internal/log"
	"cognita/internal/metrics"
)

// SnapshotLoader reads every record of one user.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, userID uuid.UUID) (core.Snapshot, error)
}

// DashboardService serves dashboard summaries, caching them per user.
type DashboardService struct {
	loader     SnapshotLoader
	cache      cache.Store[metrics.DashboardSummary]
	aggregator metrics.Aggregator
	logger     *log.Logger

	// generations counts invalidations per user so that a summary computed
	// from a snapshot older than the last write is never left in the cache.
	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

// NewDashboardService wires the loader and aggregator. store may be nil, in
// which case every summary is recomputed.
func NewDashboardService(loader SnapshotLoader, store cache.Store[metrics.DashboardSummary], aggregator metrics.Aggregator, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DashboardService{
		loader:      loader,
		cache:       store,
		aggregator:  aggregator,
		logger:      logger.WithComponent(log.ComponentDashboard),
		generations: make(map[uuid.UUID]uint64),
	}
}

// CacheKey is the cache entry holding userID's summary.
func CacheKey(userID uuid.UUID) string {
	return "dashboard:" + userID.String()
}

// Summary returns the cached summary for userID if it was computed for now's
// calendar day, and computes and caches it at now otherwise. Cache failures
// degrade to a recomputation.
func (s *DashboardService) Summary(ctx context.Context, userID uuid.UUID, now time.Time) (metrics.DashboardSummary, error) {
	key := CacheKey(userID)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "Dashboard cache read failed", log.FieldUserID, userID.String(), log.FieldError, err.Error())
		case ok && cached.Today == s.aggregator.Calendar.Key(now):
			s.logger.DebugContext(ctx, "Dashboard served from cache", log.FieldUserID, userID.String(), log.FieldCacheHit, true)
			return cached, nil
		case ok:
			s.logger.DebugContext(ctx, "Cached dashboard is from another day", log.FieldUserID, userID.String(), "cached_day", cached.Today)
		}
	}

	gen := s.generation(userID)
	summary, err := s.Compute(ctx, userID, now)
	if err != nil {
		return summary, err
	}
	if s.cache == nil {
		return summary, nil
	}
	if err := s.cache.Set(ctx, key, summary); err != nil {
		s.logger.WarnContext(ctx, "Dashboard cache write failed", log.FieldUserID, userID.String(), log.FieldError, err.Error())
		return summary, nil
	}
	// A write that invalidated while we computed may have run its Delete
	// before our Set. Drop the entry again so the next read recomputes.
	if s.generation(userID) != gen {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Dashboard cache delete failed", log.FieldUserID, userID.String(), log.FieldError, err.Error())
		}
	}
	return summary, nil
}

// Compute loads the user's records and aggregates them at now. The cache is
// neither read nor written.
func (s *DashboardService) Compute(ctx context.Context, userID uuid.UUID, now time.Time) (metrics.DashboardSummary, error) {
	snapshot, err := s.loader.LoadSnapshot(ctx, userID)
	if err != nil {
		return metrics.DashboardSummary{}, fmt.Errorf("load snapshot: %w", err)
	}

	if n := unknownTransactionTypes(snapshot.Transactions); n > 0 {
		s.logger.WarnContext(ctx, "Transactions with unknown type excluded from dashboard",
			log.FieldUserID, userID.String(), "count", n)
	}

	return s.aggregator.Summarize(snapshot, now), nil
}

// Refresh recomputes the summary at now and overwrites the cache entry.
func (s *DashboardService) Refresh(ctx context.Context, userID uuid.UUID, now time.Time) (metrics.DashboardSummary, error) {
	summary, err := s.Compute(ctx, userID, now)
	if err != nil {
		return summary, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, CacheKey(userID), summary); err != nil {
			return summary, fmt.Errorf("store dashboard: %w", err)
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary of userID.
func (s *DashboardService) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, CacheKey(userID)); err != nil {
		return fmt.Errorf("invalidate dashboard: %w", err)
	}
	return nil
}

func (s *DashboardService) generation(userID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

func unknownTransactionTypes(transactions []core.FinanceTransaction) int {
	n := 0
	for _, t := range transactions {
		if !t.Type.Valid() {
			n++
		}
	}
	return n
}
