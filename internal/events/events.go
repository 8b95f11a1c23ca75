// Package events publishes completed sales to a message broker for
// downstream consumers. Publishing is best effort and never blocks a
// checkout from committing.
package events

import (
	"context"

	"retailpos/backend/internal/domain"
)

type SalePublisher interface {
	PublishSale(ctx context.Context, sale domain.Sale) error
}

type noopPublisher struct{}

func NewNoopPublisher() SalePublisher { return noopPublisher{} }

func (noopPublisher) PublishSale(_ context.Context, _ domain.Sale) error {
	return nil
}
