package adapter

import (
	"context"
	"time"
)

// Order is what the gateway returns for a created order.
type Order struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Status   string
}

// RefundResult is a provider-agnostic refund outcome.
type RefundResult struct {
	ID         string
	Amount     int64 // minor units
	Status     string
	RefundTime time.Time
}

// PaymentGateway is the hex port for the payment provider.
type PaymentGateway interface {
	// Mode is "live" or "mock".
	Mode() string
	// KeyID is the public key identifier handed to clients for checkout.
	KeyID() string

	CreateOrder(ctx context.Context, amountMinor int64, currency, receiptID string) (Order, error)
	Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (RefundResult, error)
}
