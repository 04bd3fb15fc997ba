package mongodb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"propertyhub-payments/internal/domain/model"
)

type paymentDoc struct {
	ID                    string               `bson:"_id"`
	OrganizationID        string               `bson:"organization_id"`
	ActorUserID           string               `bson:"actor_user_id"`
	TenantID              *string              `bson:"tenant_id,omitempty"`
	Amount                primitive.Decimal128 `bson:"amount"`
	Currency              string               `bson:"currency"`
	Kind                  string               `bson:"kind"`
	Mode                  string               `bson:"mode"`
	Status                string               `bson:"status"`
	GatewayOrderID        string               `bson:"gateway_order_id"`
	GatewayPaymentID      *string              `bson:"gateway_payment_id,omitempty"`
	GatewaySignature      *string              `bson:"gateway_signature,omitempty"`
	SubscriptionProcessed bool                 `bson:"subscription_processed"`
	RefundedAmount        primitive.Decimal128 `bson:"refunded_amount"`
	Metadata              map[string]string    `bson:"metadata,omitempty"`
	TransactionDate       time.Time            `bson:"transaction_date"`
	CreatedAt             time.Time            `bson:"created_at"`
	UpdatedAt             time.Time            `bson:"updated_at"`
}

type subscriptionDoc struct {
	Plan       string     `bson:"plan"`
	Status     string     `bson:"status"`
	StartDate  *time.Time `bson:"start_date,omitempty"`
	ExpiryDate *time.Time `bson:"expiry_date,omitempty"`
}

type organizationDoc struct {
	ID           string          `bson:"_id"`
	Subscription subscriptionDoc `bson:"subscription"`
}

type creditNoteDoc struct {
	ID               string               `bson:"_id"`
	CreditNoteNumber string               `bson:"credit_note_number"`
	PaymentID        string               `bson:"payment_id"`
	Amount           primitive.Decimal128 `bson:"amount"`
	Reason           string               `bson:"reason"`
	IssuedBy         string               `bson:"issued_by"`
	GatewayRefundID  string               `bson:"gateway_refund_id"`
	IdempotencyKey   *string              `bson:"idempotency_key,omitempty"`
	CreatedAt        time.Time            `bson:"created_at"`
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		// decimal.String never yields an unparsable value within Decimal128 range
		panic(fmt.Sprintf("decimal128 %s: %v", d, err))
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(v.String())
}

func newPaymentDoc(p *model.Payment) paymentDoc {
	return paymentDoc{
		ID:                    p.ID,
		OrganizationID:        p.OrganizationID,
		ActorUserID:           p.ActorUserID,
		TenantID:              p.TenantID,
		Amount:                toDecimal128(p.Amount),
		Currency:              p.Currency,
		Kind:                  string(p.Kind),
		Mode:                  string(p.Mode),
		Status:                string(p.Status),
		GatewayOrderID:        p.GatewayOrderID,
		GatewayPaymentID:      p.GatewayPaymentID,
		GatewaySignature:      p.GatewaySignature,
		SubscriptionProcessed: p.SubscriptionProcessed,
		RefundedAmount:        toDecimal128(p.RefundedAmount),
		Metadata:              p.Metadata,
		TransactionDate:       p.TransactionDate,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func (d paymentDoc) toModel() (*model.Payment, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	refunded, err := fromDecimal128(d.RefundedAmount)
	if err != nil {
		return nil, err
	}
	return &model.Payment{
		ID:                    d.ID,
		OrganizationID:        d.OrganizationID,
		ActorUserID:           d.ActorUserID,
		TenantID:              d.TenantID,
		Amount:                amount,
		Currency:              d.Currency,
		Kind:                  model.PaymentKind(d.Kind),
		Mode:                  model.PaymentMode(d.Mode),
		Status:                model.PaymentStatus(d.Status),
		GatewayOrderID:        d.GatewayOrderID,
		GatewayPaymentID:      d.GatewayPaymentID,
		GatewaySignature:      d.GatewaySignature,
		SubscriptionProcessed: d.SubscriptionProcessed,
		RefundedAmount:        refunded,
		Metadata:              d.Metadata,
		TransactionDate:       d.TransactionDate,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}, nil
}

func (d creditNoteDoc) toModel() (*model.CreditNote, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	return &model.CreditNote{
		ID:               d.ID,
		CreditNoteNumber: d.CreditNoteNumber,
		PaymentID:        d.PaymentID,
		Amount:           amount,
		Reason:           d.Reason,
		IssuedBy:         d.IssuedBy,
		GatewayRefundID:  d.GatewayRefundID,
		IdempotencyKey:   d.IdempotencyKey,
		CreatedAt:        d.CreatedAt,
	}, nil
}
