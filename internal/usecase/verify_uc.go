// File: internal/usecase/verify_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/domain/ports/usecase"
	"propertyhub-payments/internal/infra/logging"
	"propertyhub-payments/internal/infra/metrics"
)

// Compile-time check
var _ VerifyUseCase = (*verifyUC)(nil)

type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
}

type VerifyResult struct {
	Payment          *model.Payment
	AlreadyProcessed bool
	Fulfillment      usecase.FulfillmentOutcome
}

// VerifyUseCase completes a payment from the client-side checkout callback.
type VerifyUseCase interface {
	Verify(ctx context.Context, actor model.Actor, req VerifyRequest) (*VerifyResult, error)
}

type verifyUC struct {
	payments repository.PaymentRepository
	verifier adapter.SignatureVerifier
	fulfill  usecase.Fulfiller
	rent     adapter.RentRecorder
	log      *zerolog.Logger
}

func NewVerifyUseCase(
	payments repository.PaymentRepository,
	verifier adapter.SignatureVerifier,
	fulfill usecase.Fulfiller,
	rent adapter.RentRecorder,
	logger *zerolog.Logger,
) *verifyUC {
	return &verifyUC{payments: payments, verifier: verifier, fulfill: fulfill, rent: rent, log: logger}
}

func (u *verifyUC) Verify(ctx context.Context, actor model.Actor, req VerifyRequest) (res *VerifyResult, err error) {
	defer logging.TraceDuration(u.log, "VerifyUC.Verify")()
	started := time.Now()
	defer func() {
		switch {
		case err != nil:
			metrics.ObserveVerify("error", string(domain.KindOf(err)), started)
		case res.AlreadyProcessed:
			metrics.ObserveVerify("ok", "already_processed", started)
		default:
			metrics.ObserveVerify("ok", "verified", started)
		}
	}()

	ctx = WithFulfillmentSource(logging.WithOrderID(ctx, req.OrderID), "verify")
	log := logging.With(ctx, u.log)

	p, err := u.payments.FindByOrderID(ctx, repository.NoTX, req.OrderID)
	if err != nil {
		return nil, err
	}
	if p.OrganizationID != actor.OrganizationID {
		return nil, domain.ErrPaymentNotFound
	}

	switch p.Status {
	case model.PaymentStatusSuccess:
		if p.SubscriptionProcessed || p.Kind != model.PaymentKindSubscription {
			return &VerifyResult{Payment: p, AlreadyProcessed: true, Fulfillment: usecase.FulfillmentAlreadyProcessed}, nil
		}
		// Captured but the entitlement never landed: resume without re-checking
		// the signature, as long as the caller names the captured payment.
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID != req.PaymentID {
			log.Warn().Str("security_event", "payment_id_mismatch").Msg("resume attempted with a different payment id")
			return nil, domain.ErrPaymentIDMismatch
		}
		return u.complete(ctx, p, false)
	case model.PaymentStatusFailed:
		return nil, domain.ErrPaymentFailed
	case model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded:
		return nil, domain.ErrPaymentRefunded
	}

	fields := model.GatewayFields{PaymentID: req.PaymentID, Signature: req.Signature}
	if !u.verifier.VerifyPayment(req.OrderID, req.PaymentID, req.Signature) {
		failed, err := u.payments.UpdateStatusAndGatewayFields(ctx, repository.NoTX, req.OrderID,
			model.SourcesFor(model.PaymentStatusFailed), model.PaymentStatusFailed, fields)
		if err != nil {
			return nil, err
		}
		if failed {
			metrics.IncTransition(string(model.PaymentStatusFailed), "verify")
		}
		log.Warn().Str("security_event", "payment_signature_mismatch").Msg("client signature rejected")
		return nil, domain.ErrSignatureMismatch
	}

	won, err := u.payments.UpdateStatusAndGatewayFields(ctx, repository.NoTX, req.OrderID,
		model.SourcesFor(model.PaymentStatusSuccess), model.PaymentStatusSuccess, fields)
	if err != nil {
		return nil, err
	}
	if won {
		metrics.IncTransition(string(model.PaymentStatusSuccess), "verify")
		metrics.AddPaymentRevenue(p.Currency, model.ToMinor(p.Amount))
	}

	p, err = u.payments.FindByOrderID(ctx, repository.NoTX, req.OrderID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case model.PaymentStatusSuccess:
	case model.PaymentStatusFailed:
		return nil, domain.ErrPaymentFailed
	default:
		return nil, domain.ErrPaymentRefunded
	}
	return u.complete(ctx, p, won)
}

// complete applies the side effects of a SUCCESS payment. won is true only for
// the caller that moved the payment into SUCCESS.
func (u *verifyUC) complete(ctx context.Context, p *model.Payment, won bool) (*VerifyResult, error) {
	res := &VerifyResult{Payment: p, Fulfillment: usecase.FulfillmentNotApplicable}
	switch p.Kind {
	case model.PaymentKindSubscription:
		outcome, err := u.fulfill.Fulfill(ctx, p)
		if err != nil {
			return nil, err
		}
		res.Fulfillment = outcome
		res.AlreadyProcessed = outcome == usecase.FulfillmentAlreadyProcessed
		if outcome == usecase.FulfillmentApplied {
			p.SubscriptionProcessed = true
		}
	case model.PaymentKindRent:
		if won {
			recordRent(ctx, u.rent, p, u.log)
		} else {
			res.AlreadyProcessed = true
		}
	default:
		res.AlreadyProcessed = !won
	}
	return res, nil
}

// recordRent hands a captured rent payment to the tenant module. The payment
// stays SUCCESS if the recorder fails; the error is logged for follow-up.
func recordRent(ctx context.Context, rent adapter.RentRecorder, p *model.Payment, base *zerolog.Logger) {
	if rent == nil {
		return
	}
	if err := rent.RecordRentPayment(ctx, p); err != nil {
		logging.With(ctx, base).Error().Err(err).Str("payment_id", p.ID).Msg("rent recorder failed")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrPaymentNotFound) || errors.Is(err, domain.ErrNotFound)
}
