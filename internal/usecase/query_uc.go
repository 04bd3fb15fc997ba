package usecase

import (
	"context"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ QueryUseCase = (*queryUC)(nil)

type QueryUseCase interface {
	GetPayment(ctx context.Context, actor model.Actor, orderID string) (*model.Payment, error)
	GetSubscription(ctx context.Context, actor model.Actor) (*model.Subscription, error)
	Plans() []model.Plan
}

type queryUC struct {
	payments repository.PaymentRepository
	ledger   repository.SubscriptionLedger
	plans    *model.PriceTable
}

func NewQueryUseCase(payments repository.PaymentRepository, ledger repository.SubscriptionLedger, plans *model.PriceTable) *queryUC {
	return &queryUC{payments: payments, ledger: ledger, plans: plans}
}

// GetPayment hides payments of other organizations behind not-found.
func (u *queryUC) GetPayment(ctx context.Context, actor model.Actor, orderID string) (*model.Payment, error) {
	p, err := u.payments.FindByOrderID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if p.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (u *queryUC) GetSubscription(ctx context.Context, actor model.Actor) (*model.Subscription, error) {
	if actor.OrganizationID == "" {
		return nil, domain.ErrUnauthorized
	}
	return u.ledger.Read(ctx, repository.NoTX, actor.OrganizationID)
}

func (u *queryUC) Plans() []model.Plan { return u.plans.List() }
