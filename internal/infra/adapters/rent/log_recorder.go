// Package rent holds RentRecorder implementations.
package rent

import (
	"context"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/infra/logging"
)

var _ adapter.RentRecorder = (*LogRecorder)(nil)

// LogRecorder emits a structured event per captured rent payment for the
// tenant-management service to consume from the log pipeline.
type LogRecorder struct {
	log *zerolog.Logger
}

func NewLogRecorder(logger *zerolog.Logger) *LogRecorder {
	l := logger.With().Str("component", "rent_recorder").Logger()
	return &LogRecorder{log: &l}
}

func (r *LogRecorder) RecordRentPayment(ctx context.Context, p *model.Payment) error {
	ev := logging.With(ctx, r.log).Info().
		Str("event", "rent_payment_captured").
		Str("payment_id", p.ID).
		Str("org_id", p.OrganizationID).
		Str("amount", p.Amount.StringFixed(2)).
		Str("currency", p.Currency).
		Time("transaction_date", p.TransactionDate)
	if p.TenantID != nil {
		ev = ev.Str("tenant_id", *p.TenantID)
	}
	ev.Msg("rent payment recorded")
	return nil
}
