package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"propertyhub-payments/internal/domain/model"
)

// PaymentRepository persists payments. Every status write is conditional on the
// current status so concurrent writers can never move a payment backwards.
type PaymentRepository interface {
	// Insert fails with domain.ErrAlreadyExists when GatewayOrderID is taken.
	Insert(ctx context.Context, tx Tx, p *model.Payment) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, tx Tx, gatewayPaymentID string) (*model.Payment, error)

	// UpdateStatusAndGatewayFields sets status and gateway fields only while the
	// payment is in one of from. It reports whether this call performed the write.
	UpdateStatusAndGatewayFields(ctx context.Context, tx Tx, orderID string, from []model.PaymentStatus, to model.PaymentStatus, f model.GatewayFields) (bool, error)

	// MarkSubscriptionProcessed flips subscription_processed false->true for a
	// SUCCESS subscription payment. false means another caller already won.
	MarkSubscriptionProcessed(ctx context.Context, tx Tx, paymentID string) (bool, error)

	// ApplyRefund records a refund when refunded_amount still equals
	// prevRefunded and the status is refundable.
	ApplyRefund(ctx context.Context, tx Tx, paymentID string, prevRefunded, newRefunded decimal.Decimal, to model.PaymentStatus) (bool, error)

	// ListUnfulfilled returns SUCCESS subscription payments with
	// subscription_processed=false last touched before olderThan.
	ListUnfulfilled(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
