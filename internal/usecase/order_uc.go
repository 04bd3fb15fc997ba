// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/infra/logging"
	"propertyhub-payments/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type CreateOrderRequest struct {
	Kind     model.PaymentKind
	PlanName string          // SUBSCRIPTION
	TenantID string          // RENT
	Amount   decimal.Decimal // RENT, major units
}

// OrderResult is what the client needs to open the gateway checkout.
type OrderResult struct {
	OrderID   string
	Amount    int64 // minor units
	Currency  string
	KeyID     string
	PaymentID string
}

type OrderUseCase interface {
	CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*OrderResult, error)
}

type orderUC struct {
	payments repository.PaymentRepository
	gateway  adapter.PaymentGateway
	plans    *model.PriceTable
	currency string
	log      *zerolog.Logger
}

func NewOrderUseCase(
	payments repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	plans *model.PriceTable,
	currency string,
	logger *zerolog.Logger,
) *orderUC {
	if currency == "" {
		currency = "INR"
	}
	return &orderUC{payments: payments, gateway: gateway, plans: plans, currency: currency, log: logger}
}

func (u *orderUC) CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*OrderResult, error) {
	defer logging.TraceDuration(u.log, "OrderUC.CreateOrder")()

	if actor.OrganizationID == "" {
		return nil, domain.ErrUnauthorized
	}

	var (
		amount   decimal.Decimal
		tenantID *string
		meta     map[string]string
	)
	switch req.Kind {
	case model.PaymentKindSubscription:
		if !actor.IsOwner() {
			return nil, domain.ErrForbidden
		}
		plan, ok := u.plans.Lookup(strings.TrimSpace(req.PlanName))
		if !ok {
			return nil, domain.ErrUnknownPlan
		}
		amount = plan.Price
		meta = map[string]string{model.MetaPlanName: string(plan.Name)}
	case model.PaymentKindRent:
		if strings.TrimSpace(req.TenantID) == "" {
			return nil, domain.Invalid("tenantId is required for rent payments")
		}
		if !req.Amount.IsPositive() {
			return nil, domain.ErrInvalidAmount
		}
		tid := req.TenantID
		tenantID = &tid
		amount = req.Amount
	default:
		return nil, domain.Invalid("payment kind is not accepted for online orders")
	}

	minor, err := model.MinorFromMajor(amount)
	if err != nil {
		return nil, err
	}

	receipt := "rcpt_" + ulid.Make().String()
	order, err := u.gateway.CreateOrder(ctx, minor, u.currency, receipt)
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("receipt", receipt).Msg("gateway order creation failed")
		return nil, domain.Wrap(domain.ErrGateway, err)
	}

	now := time.Now().UTC()
	p := &model.Payment{
		ID:              uuid.NewString(),
		OrganizationID:  actor.OrganizationID,
		ActorUserID:     actor.UserID,
		TenantID:        tenantID,
		Amount:          amount,
		Currency:        u.currency,
		Kind:            req.Kind,
		Mode:            model.PaymentModeOnline,
		Status:          model.PaymentStatusCreated,
		GatewayOrderID:  order.ID,
		Metadata:        meta,
		TransactionDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.payments.Insert(ctx, repository.NoTX, p); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("order_id", order.ID).Msg("failed to persist created order")
		return nil, err
	}
	metrics.IncPayment(string(p.Kind), string(p.Mode))

	logging.With(ctx, u.log).Info().
		Str("order_id", order.ID).
		Str("payment_id", p.ID).
		Str("kind", string(p.Kind)).
		Int64("amount_minor", minor).
		Msg("order created")

	return &OrderResult{
		OrderID:   order.ID,
		Amount:    minor,
		Currency:  u.currency,
		KeyID:     u.gateway.KeyID(),
		PaymentID: p.ID,
	}, nil
}
