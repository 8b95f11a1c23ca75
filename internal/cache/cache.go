// Package cache holds the short-TTL read cache in front of the analytics
// queries.
package cache

import (
	"context"
	"time"
)

type AnalyticsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Invalidate drops cached entries for one store, plus the cross-store
	// entries that aggregate over it.
	Invalidate(ctx context.Context, storeID string)
}

type noopCache struct{}

func NewNoop() AnalyticsCache { return noopCache{} }

func (noopCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

func (noopCache) Invalidate(_ context.Context, _ string) {}
