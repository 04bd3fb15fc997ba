package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	PaymentKindRent         PaymentKind = "RENT"
	PaymentKindSubscription PaymentKind = "SUBSCRIPTION"
	PaymentKindDeposit      PaymentKind = "DEPOSIT"
	PaymentKindOther        PaymentKind = "OTHER"
)

func (k PaymentKind) Valid() bool {
	switch k {
	case PaymentKindRent, PaymentKindSubscription, PaymentKindDeposit, PaymentKindOther:
		return true
	}
	return false
}

type PaymentMode string

const (
	PaymentModeOnline         PaymentMode = "ONLINE"
	PaymentModeCash           PaymentMode = "CASH"
	PaymentModeManualTransfer PaymentMode = "MANUAL_TRANSFER"
)

type PaymentStatus string

const (
	PaymentStatusCreated           PaymentStatus = "CREATED"   // order exists at the gateway
	PaymentStatusAttempted         PaymentStatus = "ATTEMPTED" // payer started checkout
	PaymentStatusSuccess           PaymentStatus = "SUCCESS"
	PaymentStatusFailed            PaymentStatus = "FAILED" // terminal
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusCreated:           {PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusAttempted:         {PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusSuccess:           {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
}

// CanTransitionTo reports whether s may move to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, n := range paymentTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Pending reports whether a completion signal may still be applied.
func (s PaymentStatus) Pending() bool {
	return s == PaymentStatusCreated || s == PaymentStatusAttempted
}

// SourcesFor lists every status allowed to move to next.
func SourcesFor(next PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for _, from := range []PaymentStatus{
		PaymentStatusCreated, PaymentStatusAttempted, PaymentStatusSuccess,
		PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusPartiallyRefunded,
	} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

const MetaPlanName = "planName"

// Payment is one attempted charge. GatewayOrderID is unique across all payments.
type Payment struct {
	ID                    string // UUID
	OrganizationID        string
	ActorUserID           string
	TenantID              *string
	Amount                decimal.Decimal // major units
	Currency              string
	Kind                  PaymentKind
	Mode                  PaymentMode
	Status                PaymentStatus
	GatewayOrderID        string
	GatewayPaymentID      *string
	GatewaySignature      *string
	SubscriptionProcessed bool
	RefundedAmount        decimal.Decimal
	Metadata              map[string]string
	TransactionDate       time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PlanName returns the plan recorded on a subscription payment.
func (p *Payment) PlanName() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[MetaPlanName]
}

// NeedsFulfillment is true for a captured subscription payment whose
// entitlement has not been applied yet.
func (p *Payment) NeedsFulfillment() bool {
	return p.Kind == PaymentKindSubscription && p.Status == PaymentStatusSuccess && !p.SubscriptionProcessed
}

// RefundableMinor is what is left to refund, in minor units.
func (p *Payment) RefundableMinor() int64 {
	return ToMinor(p.Amount.Sub(p.RefundedAmount))
}

// GatewayFields carries what a completion signal adds to a payment.
type GatewayFields struct {
	PaymentID string
	Signature string
}
