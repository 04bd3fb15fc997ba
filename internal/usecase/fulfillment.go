// File: internal/usecase/fulfillment.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/domain/ports/usecase"
	"propertyhub-payments/internal/infra/logging"
	"propertyhub-payments/internal/infra/metrics"
)

// Compile-time check
var _ usecase.Fulfiller = (*fulfiller)(nil)

type sourceKey struct{}

// WithFulfillmentSource tags ctx with the completion channel ("verify",
// "webhook", "reconciler") for logs and metrics.
func WithFulfillmentSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func fulfillmentSource(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok {
		return s
	}
	return "unknown"
}

// fulfiller applies the entitlement of a captured subscription payment exactly once.
// The processed flag is claimed before the subscription is touched, inside the same
// transaction, so a caller that loses the claim never writes.
type fulfiller struct {
	tm       repository.TransactionManager
	payments repository.PaymentRepository
	ledger   repository.SubscriptionLedger
	plans    *model.PriceTable
	now      func() time.Time
	log      *zerolog.Logger
}

func NewFulfiller(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	ledger repository.SubscriptionLedger,
	plans *model.PriceTable,
	logger *zerolog.Logger,
) *fulfiller {
	return &fulfiller{
		tm:       tm,
		payments: payments,
		ledger:   ledger,
		plans:    plans,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger,
	}
}

func (f *fulfiller) Fulfill(ctx context.Context, p *model.Payment) (usecase.FulfillmentOutcome, error) {
	defer logging.TraceDuration(f.log, "Fulfiller.Fulfill")()
	source := fulfillmentSource(ctx)

	if p.Kind != model.PaymentKindSubscription {
		return usecase.FulfillmentNotApplicable, nil
	}
	plan, err := f.resolvePlan(p)
	if err != nil {
		metrics.IncFulfillment(source, "error")
		return usecase.FulfillmentNotApplicable, err
	}

	var (
		outcome usecase.FulfillmentOutcome
		applied model.Subscription
	)
	err = f.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		// The transaction manager may retry fn.
		outcome, applied = usecase.FulfillmentAlreadyProcessed, model.Subscription{}
		won, err := f.payments.MarkSubscriptionProcessed(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		sub, err := f.ledger.Read(ctx, tx, p.OrganizationID)
		if err != nil {
			return fmt.Errorf("read subscription: %w", err)
		}
		applied = sub.Extend(plan, f.now())
		applied.OrganizationID = p.OrganizationID
		if err := f.ledger.Write(ctx, tx, &applied); err != nil {
			return fmt.Errorf("write subscription: %w", err)
		}
		outcome = usecase.FulfillmentApplied
		return nil
	})
	if err != nil {
		metrics.IncFulfillment(source, "error")
		logging.With(ctx, f.log).Error().Err(err).
			Str("payment_id", p.ID).Str("source", source).
			Msg("subscription fulfillment rolled back")
		return usecase.FulfillmentNotApplicable, err
	}

	metrics.IncFulfillment(source, outcome.String())
	if outcome == usecase.FulfillmentApplied {
		logging.With(ctx, f.log).Info().
			Str("payment_id", p.ID).
			Str("org_id", p.OrganizationID).
			Str("plan", string(applied.Plan)).
			Time("expiry", *applied.ExpiryDate).
			Str("source", source).
			Msg("subscription extended")
	}
	return outcome, nil
}

// resolvePlan maps the recorded plan name to a tier. A plan removed from the
// price table after the order was created still fulfills under its recorded name.
func (f *fulfiller) resolvePlan(p *model.Payment) (model.PlanTier, error) {
	name := p.PlanName()
	if name == "" {
		return "", domain.Wrap(domain.ErrUnknownPlan, fmt.Errorf("payment %s has no plan", p.ID))
	}
	if plan, ok := f.plans.Lookup(name); ok {
		return plan.Name, nil
	}
	return model.PlanTier(name), nil
}

func (f *fulfiller) ListUnfulfilled(ctx context.Context, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return f.payments.ListUnfulfilled(ctx, repository.NoTX, olderThan, limit)
}

var _ usecase.ExpiryMarker = (*expiryUC)(nil)

type expiryUC struct {
	ledger repository.SubscriptionLedger
	log    *zerolog.Logger
}

func NewExpiryMarker(ledger repository.SubscriptionLedger, logger *zerolog.Logger) *expiryUC {
	return &expiryUC{ledger: ledger, log: logger}
}

// MarkExpired flips lapsed active subscriptions to past_due. Expiry dates are left as they are.
func (u *expiryUC) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := u.ledger.MarkPastDue(ctx, repository.NoTX, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddSubscriptionsPastDue(n)
		u.log.Info().Int64("count", n).Msg("subscriptions marked past_due")
	}
	return n, nil
}
