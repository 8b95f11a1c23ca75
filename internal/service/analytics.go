package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
)

// analyticsTTL keeps dashboard reads cheap without letting them drift far
// behind the sales stream.
const analyticsTTL = 60 * time.Second

// defaultSummaryWindow is the trailing window applied when a summary or
// daily breakdown request carries no explicit range.
const defaultSummaryWindow = 30 * 24 * time.Hour

func (s *Service) analyticsWindow(from *time.Time, to *time.Time) (time.Time, time.Time, error) {
	// The defaulted bound snaps up to the next minute so repeated
	// default-window requests share a cache key within the TTL while the
	// current minute's sales stay inside the window.
	end := time.Now().UTC().Truncate(time.Minute).Add(time.Minute)
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-defaultSummaryWindow)
	if from != nil {
		start = from.UTC()
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range is inverted: %w", store.ErrValidation)
	}
	return start, end, nil
}

func scopeKey(scope domain.StoreScope) string {
	if scope.All {
		return "all"
	}
	return scope.StoreID
}

// cachedQuery serves an analytics result out of the cache when fresh and
// falls through to the store otherwise. Cache failures only cost the
// round trip.
func cachedQuery[T any](ctx context.Context, s *Service, key string, query func() (T, error)) (T, error) {
	var out T
	if payload, ok, err := s.analyticsCache.Get(ctx, key); err == nil && ok {
		if err := json.Unmarshal(payload, &out); err == nil {
			return out, nil
		}
	} else if err != nil {
		s.logger.Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
	}

	out, err := query()
	if err != nil {
		return out, err
	}
	if payload, err := json.Marshal(out); err == nil {
		if err := s.analyticsCache.Set(ctx, key, payload, analyticsTTL); err != nil {
			s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (s *Service) SalesSummary(ctx context.Context, from *time.Time, to *time.Time) (domain.SalesSummary, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	start, end, err := s.analyticsWindow(from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	scope := s.storeScopeFor(actor)
	key := fmt.Sprintf("%s:summary:%d:%d", scopeKey(scope), start.Unix(), end.Unix())
	return cachedQuery(ctx, s, key, func() (domain.SalesSummary, error) {
		summary, err := s.repo.SalesSummary(ctx, scope, start, end)
		if err != nil {
			return domain.SalesSummary{}, err
		}
		return *summary, nil
	})
}

func (s *Service) TopProducts(ctx context.Context, from *time.Time, to *time.Time, limit int) ([]domain.TopProduct, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	start, end, err := s.analyticsWindow(from, to)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 10
	}
	return s.repo.TopProducts(ctx, s.storeScopeFor(actor), start, end, limit)
}

func (s *Service) InventoryMetrics(ctx context.Context) (domain.InventoryMetrics, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.InventoryMetrics{}, err
	}
	metrics, err := s.repo.InventoryMetrics(ctx, s.storeScopeFor(actor))
	if err != nil {
		return domain.InventoryMetrics{}, err
	}
	return *metrics, nil
}

func (s *Service) DailySales(ctx context.Context, from *time.Time, to *time.Time) ([]domain.DailySales, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	start, end, err := s.analyticsWindow(from, to)
	if err != nil {
		return nil, err
	}

	scope := s.storeScopeFor(actor)
	key := fmt.Sprintf("%s:daily:%d:%d", scopeKey(scope), start.Unix(), end.Unix())
	return cachedQuery(ctx, s, key, func() ([]domain.DailySales, error) {
		return s.repo.DailySales(ctx, scope, start, end)
	})
}

// CustomerInsights reports top spenders across all stores, so cashiers and
// stock keepers are excluded.
func (s *Service) CustomerInsights(ctx context.Context, limit int) ([]domain.CustomerInsight, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 20
	}
	return s.repo.CustomerInsights(ctx, limit)
}
