package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditNote is the immutable record a refund produces.
type CreditNote struct {
	ID               string
	CreditNoteNumber string // CN-<ULID>
	PaymentID        string
	Amount           decimal.Decimal // major units
	Reason           string
	IssuedBy         string
	GatewayRefundID  string
	IdempotencyKey   *string
	CreatedAt        time.Time
}
