// File: internal/usecase/offline_uc.go
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
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/infra/logging"
	"propertyhub-payments/internal/infra/metrics"
)

// Compile-time check
var _ OfflineUseCase = (*offlineUC)(nil)

type OfflineRequest struct {
	Kind            model.PaymentKind
	Mode            model.PaymentMode
	Amount          decimal.Decimal
	TenantID        string
	Note            string
	TransactionDate *time.Time
}

// OfflineUseCase records cash and bank-transfer payments collected outside the gateway.
type OfflineUseCase interface {
	Record(ctx context.Context, actor model.Actor, req OfflineRequest) (*model.Payment, error)
}

type offlineUC struct {
	payments repository.PaymentRepository
	currency string
	log      *zerolog.Logger
}

func NewOfflineUseCase(payments repository.PaymentRepository, currency string, logger *zerolog.Logger) *offlineUC {
	if currency == "" {
		currency = "INR"
	}
	return &offlineUC{payments: payments, currency: currency, log: logger}
}

func (u *offlineUC) Record(ctx context.Context, actor model.Actor, req OfflineRequest) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "OfflineUC.Record")()

	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	switch {
	case req.Kind == model.PaymentKindSubscription:
		return nil, domain.Invalid("subscriptions can only be paid online")
	case !req.Kind.Valid():
		return nil, domain.Invalid("unknown payment kind")
	}
	if req.Mode != model.PaymentModeCash && req.Mode != model.PaymentModeManualTransfer {
		return nil, domain.Invalid("mode must be CASH or MANUAL_TRANSFER")
	}
	if req.Kind == model.PaymentKindRent && strings.TrimSpace(req.TenantID) == "" {
		return nil, domain.Invalid("tenantId is required for rent payments")
	}
	if _, err := model.MinorFromMajor(req.Amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Payment{
		ID:              uuid.NewString(),
		OrganizationID:  actor.OrganizationID,
		ActorUserID:     actor.UserID,
		Amount:          req.Amount,
		Currency:        u.currency,
		Kind:            req.Kind,
		Mode:            req.Mode,
		Status:          model.PaymentStatusSuccess,
		GatewayOrderID:  "offline_" + ulid.Make().String(),
		TransactionDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.TenantID != "" {
		tid := req.TenantID
		p.TenantID = &tid
	}
	if req.TransactionDate != nil {
		p.TransactionDate = req.TransactionDate.UTC()
	}
	if req.Note != "" {
		p.Metadata = map[string]string{"note": req.Note}
	}

	if err := u.payments.Insert(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(p.Kind), string(p.Mode))
	metrics.AddPaymentRevenue(p.Currency, model.ToMinor(p.Amount))
	logging.With(ctx, u.log).Info().Str("payment_id", p.ID).Str("mode", string(p.Mode)).Msg("offline payment recorded")
	return p, nil
}
