package payment

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"propertyhub-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*MockGateway)(nil)

// MockGateway is the deterministic, network-free gateway used when no live
// credentials are configured. Orders are kept so tests can inspect calls.
type MockGateway struct {
	keyID string

	mu      sync.Mutex
	orders  map[string]adapter.Order
	refunds []adapter.RefundResult
}

func NewMockGateway(keyID string) *MockGateway {
	if keyID == "" {
		keyID = "rzp_test_mock"
	}
	return &MockGateway{keyID: keyID, orders: make(map[string]adapter.Order)}
}

func (g *MockGateway) Mode() string  { return "mock" }
func (g *MockGateway) KeyID() string { return g.keyID }

func (g *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receiptID string) (adapter.Order, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Order{}, err
	}
	o := adapter.Order{
		ID:       "order_mock_" + ulid.Make().String(),
		Amount:   amountMinor,
		Currency: currency,
		Status:   "created",
	}
	g.mu.Lock()
	g.orders[o.ID] = o
	g.mu.Unlock()
	return o, nil
}

func (g *MockGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (adapter.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.RefundResult{}, err
	}
	r := adapter.RefundResult{
		ID:         "rfnd_mock_" + ulid.Make().String(),
		Amount:     amountMinor,
		Status:     "processed",
		RefundTime: time.Now().UTC(),
	}
	g.mu.Lock()
	g.refunds = append(g.refunds, r)
	g.mu.Unlock()
	return r, nil
}

// Order returns a previously created order.
func (g *MockGateway) Order(id string) (adapter.Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	return o, ok
}

// Refunds returns the refunds issued so far.
func (g *MockGateway) Refunds() []adapter.RefundResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]adapter.RefundResult(nil), g.refunds...)
}
