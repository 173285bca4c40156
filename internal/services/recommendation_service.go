package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/anonto42/bookhive/backend/pkg/apperrors"
	"github.com/anonto42/bookhive/backend/pkg/logger"
)

// RecommendationItem is one recommended book
type RecommendationItem struct {
	BookID string  `json:"book_id"`
	Score  float64 `json:"score"`
}

// Recommender is the external collaborator that actually computes a
// user's recommendation set.
type Recommender interface {
	Compute(ctx context.Context, userID uint) ([]RecommendationItem, error)
}

// RecommendationService serves per-user recommendation sets from
// cache. Recomputes are single-flighted per user; a stalled holder is
// taken over by a waiter after a deadline.
type RecommendationService interface {
	Get(ctx context.Context, userID uint) ([]RecommendationItem, bool, error)
	Invalidate(ctx context.Context, userID uint) error
}

type cacheEntry struct {
	Items      []RecommendationItem `json:"items"`
	ComputedAt time.Time            `json:"computed_at"`
}

type recommendationService struct {
	cache       Cache
	recommender Recommender
	ttl         time.Duration
	deadline    time.Duration
	flights     singleflight.Group
	log         *logger.Logger
}

func NewRecommendationService(
	cache Cache,
	recommender Recommender,
	ttl time.Duration,
	deadline time.Duration,
	baseLog *logger.Logger,
) RecommendationService {
	return &recommendationService{
		cache:       cache,
		recommender: recommender,
		ttl:         ttl,
		deadline:    deadline,
		log:         baseLog.With("service", "RecommendationService"),
	}
}

func recommendationKey(userID uint) string {
	return fmt.Sprintf("recommendations:%d", userID)
}

// Get returns the recommendation set and whether it is stale. A cache
// outage degrades to a direct recompute and never fails the read.
func (s *recommendationService) Get(ctx context.Context, userID uint) ([]RecommendationItem, bool, error) {
	key := recommendationKey(userID)

	entry, err := s.readEntry(ctx, key)
	if err != nil && err != ErrCacheMiss {
		s.log.Warn("Cache unavailable, recomputing directly", "user_id", userID, "error", err)
		items, computeErr := s.recommender.Compute(ctx, userID)
		if computeErr != nil {
			return nil, false, computeErr
		}
		return items, false, nil
	}

	if entry != nil && time.Since(entry.ComputedAt) < s.ttl {
		return entry.Items, false, nil
	}

	// Miss or stale: single-flight the recompute per user key
	items, err := s.recomputeShared(ctx, userID, key)
	if err == nil {
		return items, false, nil
	}

	if entry != nil {
		s.log.Warn("Recompute failed, serving stale recommendations", "user_id", userID, "error", err)
		return entry.Items, true, nil
	}
	return nil, false, err
}

func (s *recommendationService) Invalidate(ctx context.Context, userID uint) error {
	return s.cache.Delete(ctx, recommendationKey(userID))
}

func (s *recommendationService) readEntry(ctx context.Context, key string) (*cacheEntry, error) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, ErrCacheMiss // treat a corrupt entry as absent
	}
	return &entry, nil
}

// recomputeShared guarantees at most one in-flight compute per user.
// Waiters share the holder's result; past the deadline a waiter forgets
// the flight and computes on its own so one stalled holder cannot wedge
// every reader.
func (s *recommendationService) recomputeShared(ctx context.Context, userID uint, key string) ([]RecommendationItem, error) {
	ch := s.flights.DoChan(key, func() (interface{}, error) {
		return s.computeAndStore(ctx, userID, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]RecommendationItem), nil
	case <-time.After(s.deadline):
		s.flights.Forget(key)
		s.log.Warn("Single-flight holder stalled, taking over", "user_id", userID)
		return s.computeAndStore(ctx, userID, key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *recommendationService) computeAndStore(ctx context.Context, userID uint, key string) ([]RecommendationItem, error) {
	items, err := s.recommender.Compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cacheEntry{Items: items, ComputedAt: time.Now()})
	if err != nil {
		return nil, apperrors.Internal("failed to encode recommendation entry", err)
	}
	// Stored for twice the ttl so an expired-but-present copy can back
	// the stale fallback path.
	if err := s.cache.Set(ctx, key, raw, 2*s.ttl); err != nil {
		s.log.Warn("Failed to store recommendations in cache", "user_id", userID, "error", err)
	}
	return items, nil
}
