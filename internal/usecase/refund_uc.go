// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/infra/logging"
	"propertyhub-payments/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

const refundLockTTL = 30 * time.Second

type RefundRequest struct {
	GatewayPaymentID string
	Amount           int64 // minor units
	Reason           string
	IdempotencyKey   string
}

type RefundResult struct {
	CreditNote *model.CreditNote
	Payment    *model.Payment
	// Replayed is true when IdempotencyKey matched an earlier refund.
	Replayed bool
}

type RefundUseCase interface {
	Refund(ctx context.Context, actor model.Actor, req RefundRequest) (*RefundResult, error)
}

type refundUC struct {
	tm       repository.TransactionManager
	payments repository.PaymentRepository
	notes    repository.CreditNoteRepository
	gateway  adapter.PaymentGateway
	locker   adapter.Locker // nil when redis is not configured
	log      *zerolog.Logger
}

func NewRefundUseCase(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	notes repository.CreditNoteRepository,
	gateway adapter.PaymentGateway,
	locker adapter.Locker,
	logger *zerolog.Logger,
) *refundUC {
	return &refundUC{tm: tm, payments: payments, notes: notes, gateway: gateway, locker: locker, log: logger}
}

func (u *refundUC) Refund(ctx context.Context, actor model.Actor, req RefundRequest) (*RefundResult, error) {
	defer logging.TraceDuration(u.log, "RefundUC.Refund")()

	res, err := u.refund(ctx, actor, req)
	switch {
	case err != nil:
		metrics.IncRefund(string(domain.KindOf(err)))
	case res.Replayed:
		metrics.IncRefund("replayed")
	default:
		metrics.IncRefund("ok")
		metrics.AddRefunded(res.Payment.Currency, model.ToMinor(res.CreditNote.Amount))
	}
	return res, err
}

func (u *refundUC) refund(ctx context.Context, actor model.Actor, req RefundRequest) (*RefundResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	req.GatewayPaymentID = strings.TrimSpace(req.GatewayPaymentID)
	if req.GatewayPaymentID == "" {
		return nil, domain.Invalid("paymentId is required")
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	if u.locker != nil {
		key := "lock:refund:" + req.GatewayPaymentID
		token, ok, err := u.locker.Lock(ctx, key, refundLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrRefundInProgress
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				u.log.Warn().Err(err).Str("key", key).Msg("failed to release refund lock")
			}
		}()
	}

	p, err := u.payments.FindByGatewayPaymentID(ctx, repository.NoTX, req.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if p.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrPaymentNotFound
	}

	if req.IdempotencyKey != "" {
		cn, err := u.notes.FindByIdempotencyKey(ctx, repository.NoTX, req.IdempotencyKey)
		switch {
		case err == nil:
			if cn.PaymentID != p.ID {
				return nil, domain.Invalid("Idempotency-Key was used for a different payment")
			}
			return &RefundResult{CreditNote: cn, Payment: p, Replayed: true}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	if p.Status != model.PaymentStatusSuccess && p.Status != model.PaymentStatusPartiallyRefunded {
		return nil, domain.ErrPaymentNotRefundable
	}
	if req.Amount > p.RefundableMinor() {
		return nil, domain.ErrRefundExceedsAmount
	}

	notes := map[string]string{"payment_id": p.ID, "reason": req.Reason}
	rr, err := u.gateway.Refund(ctx, req.GatewayPaymentID, req.Amount, notes)
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("payment_id", p.ID).Msg("gateway refund failed")
		return nil, domain.Wrap(domain.ErrGateway, err)
	}

	refunded := model.MajorFromMinor(req.Amount)
	total := p.RefundedAmount.Add(refunded)
	next := model.PaymentStatusPartiallyRefunded
	if total.GreaterThanOrEqual(p.Amount) {
		next = model.PaymentStatusRefunded
	}

	cn := &model.CreditNote{
		ID:               uuid.NewString(),
		CreditNoteNumber: "CN-" + ulid.Make().String(),
		PaymentID:        p.ID,
		Amount:           refunded,
		Reason:           req.Reason,
		IssuedBy:         actor.UserID,
		GatewayRefundID:  rr.ID,
		CreatedAt:        time.Now().UTC(),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		cn.IdempotencyKey = &key
	}

	err = u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.payments.ApplyRefund(ctx, tx, p.ID, p.RefundedAmount, total, next)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrRefundInProgress
		}
		return u.notes.Insert(ctx, tx, cn)
	})
	if err != nil {
		// The gateway has already refunded; this needs manual reconciliation.
		logging.With(ctx, u.log).Error().Err(err).
			Str("payment_id", p.ID).
			Str("gateway_refund_id", rr.ID).
			Int64("amount_minor", req.Amount).
			Msg("refund issued at gateway but not recorded")
		return nil, err
	}
	metrics.IncTransition(string(next), "refund")

	p.Status = next
	p.RefundedAmount = total
	logging.With(ctx, u.log).Info().
		Str("payment_id", p.ID).
		Str("credit_note", cn.CreditNoteNumber).
		Int64("amount_minor", req.Amount).
		Str("status", string(next)).
		Msg("refund recorded")
	return &RefundResult{CreditNote: cn, Payment: p}, nil
}
