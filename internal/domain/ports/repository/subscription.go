package repository

import (
	"context"
	"time"

	"propertyhub-payments/internal/domain/model"
)

// SubscriptionLedger stores each organization's singleton subscription.
type SubscriptionLedger interface {
	// Read returns the subscription, locking it when tx is set. An organization
	// with no record yields an inactive subscription, not an error.
	Read(ctx context.Context, tx Tx, orgID string) (*model.Subscription, error)
	Write(ctx context.Context, tx Tx, sub *model.Subscription) error
	// MarkPastDue flips active subscriptions expired at now to past_due.
	MarkPastDue(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
