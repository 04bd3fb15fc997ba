package usecase

import (
	"context"
	"time"

	"propertyhub-payments/internal/domain/model"
)

// FulfillmentOutcome tells a caller whether its fulfillment attempt applied the entitlement.
type FulfillmentOutcome int

const (
	FulfillmentApplied FulfillmentOutcome = iota
	FulfillmentAlreadyProcessed
	FulfillmentNotApplicable
)

// Fulfiller defines the subscription operations needed by external components like background workers.
type Fulfiller interface {
	Fulfill(ctx context.Context, p *model.Payment) (FulfillmentOutcome, error)
	ListUnfulfilled(ctx context.Context, olderThan time.Time, limit int) ([]*model.Payment, error)
}

// ExpiryMarker flips lapsed subscriptions to past_due.
type ExpiryMarker interface {
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

func (o FulfillmentOutcome) String() string {
	switch o {
	case FulfillmentApplied:
		return "applied"
	case FulfillmentAlreadyProcessed:
		return "already_processed"
	default:
		return "not_applicable"
	}
}
