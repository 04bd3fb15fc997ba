// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"encoding/json"

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
var _ WebhookUseCase = (*webhookUC)(nil)

const EventPaymentCaptured = "payment.captured"

type WebhookResult struct {
	Event      string
	OrderID    string
	Ignored    bool
	Reconciled bool
}

// WebhookUseCase reconciles gateway-pushed events. Only a mismatched signature,
// a malformed payload or a storage failure produce an error.
type WebhookUseCase interface {
	Handle(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error)
}

type webhookUC struct {
	payments repository.PaymentRepository
	verifier adapter.SignatureVerifier
	fulfill  usecase.Fulfiller
	rent     adapter.RentRecorder
	log      *zerolog.Logger
}

func NewWebhookUseCase(
	payments repository.PaymentRepository,
	verifier adapter.SignatureVerifier,
	fulfill usecase.Fulfiller,
	rent adapter.RentRecorder,
	logger *zerolog.Logger,
) *webhookUC {
	return &webhookUC{payments: payments, verifier: verifier, fulfill: fulfill, rent: rent, log: logger}
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (u *webhookUC) Handle(ctx context.Context, rawBody []byte, signature string) (*WebhookResult, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.Handle")()

	if !u.verifier.VerifyWebhook(rawBody, signature) {
		metrics.IncWebhook("unknown", "signature_mismatch")
		logging.With(ctx, u.log).Warn().
			Str("security_event", "webhook_signature_mismatch").
			Int("body_bytes", len(rawBody)).
			Msg("webhook signature rejected")
		return nil, domain.ErrSignatureMismatch
	}

	var ev webhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		metrics.IncWebhook("unknown", "malformed")
		return nil, domain.Wrap(domain.ErrInvalidArgument, err)
	}
	res := &WebhookResult{Event: ev.Event}
	if ev.Event != EventPaymentCaptured {
		res.Ignored = true
		metrics.IncWebhook(ev.Event, "ignored")
		return res, nil
	}

	entity := ev.Payload.Payment.Entity
	res.OrderID = entity.OrderID
	ctx = WithFulfillmentSource(logging.WithOrderID(ctx, entity.OrderID), "webhook")
	log := logging.With(ctx, u.log)
	if entity.OrderID == "" {
		metrics.IncWebhook(ev.Event, "malformed")
		return nil, domain.Invalid("webhook payload has no order id")
	}

	p, err := u.payments.FindByOrderID(ctx, repository.NoTX, entity.OrderID)
	if err != nil {
		if isNotFound(err) {
			metrics.IncWebhook(ev.Event, "unknown_order")
			log.Error().Str("audit", "webhook_unknown_order").Str("gateway_payment_id", entity.ID).
				Msg("captured payment for an order we never created")
			return res, nil
		}
		metrics.IncWebhook(ev.Event, "error")
		return nil, err
	}

	won := false
	if p.Status.Pending() {
		won, err = u.payments.UpdateStatusAndGatewayFields(ctx, repository.NoTX, entity.OrderID,
			model.SourcesFor(model.PaymentStatusSuccess), model.PaymentStatusSuccess,
			model.GatewayFields{PaymentID: entity.ID})
		if err != nil {
			metrics.IncWebhook(ev.Event, "error")
			return nil, err
		}
		if won {
			metrics.IncTransition(string(model.PaymentStatusSuccess), "webhook")
			metrics.AddPaymentRevenue(p.Currency, model.ToMinor(p.Amount))
		}
		if p, err = u.payments.FindByOrderID(ctx, repository.NoTX, entity.OrderID); err != nil {
			metrics.IncWebhook(ev.Event, "error")
			return nil, err
		}
	}

	switch p.Status {
	case model.PaymentStatusFailed:
		metrics.IncWebhook(ev.Event, "conflict")
		log.Warn().Str("audit", "webhook_capture_on_failed").Str("gateway_payment_id", entity.ID).
			Msg("gateway reports capture for a payment recorded as FAILED; left FAILED")
		return res, nil
	case model.PaymentStatusSuccess:
		switch p.Kind {
		case model.PaymentKindSubscription:
			if _, err := u.fulfill.Fulfill(ctx, p); err != nil {
				if domain.KindOf(err) != domain.KindInternal {
					// A retry cannot fix it; the reconciler sweep and logs surface it.
					metrics.IncWebhook(ev.Event, "unfulfillable")
					log.Error().Err(err).Str("audit", "webhook_unfulfillable").Str("payment_id", p.ID).
						Msg("captured subscription payment cannot be fulfilled")
					return res, nil
				}
				metrics.IncWebhook(ev.Event, "error")
				return nil, err
			}
		case model.PaymentKindRent:
			if won {
				recordRent(ctx, u.rent, p, u.log)
			}
		}
	}

	res.Reconciled = true
	metrics.IncWebhook(ev.Event, "reconciled")
	log.Info().Bool("transitioned", won).Str("status", string(p.Status)).Msg("webhook reconciled")
	return res, nil
}
