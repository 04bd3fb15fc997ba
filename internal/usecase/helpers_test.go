//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/domain/ports/repository"
	uc "propertyhub-payments/internal/domain/ports/usecase"
	"propertyhub-payments/internal/infra/adapters/payment"
	"propertyhub-payments/internal/infra/db/memory"
	"propertyhub-payments/internal/infra/security"
	"propertyhub-payments/internal/usecase"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
	testOrg           = "org-1"
)

var (
	owner  = model.Actor{UserID: "user-owner", OrganizationID: testOrg, Role: model.RoleOwner}
	admin  = model.Actor{UserID: "user-admin", OrganizationID: testOrg, Role: model.RoleAdmin}
	member = model.Actor{UserID: "user-member", OrganizationID: testOrg, Role: model.RoleMember}
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// -----------------------------
// Mocks
// -----------------------------

type MockGateway struct {
	CreateOrderFunc func(ctx context.Context, amountMinor int64, currency, receiptID string) (adapter.Order, error)
	RefundFunc      func(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (adapter.RefundResult, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Mode() string  { return "mock" }
func (m *MockGateway) KeyID() string { return "rzp_test_fn" }
func (m *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receiptID string) (adapter.Order, error) {
	return m.CreateOrderFunc(ctx, amountMinor, currency, receiptID)
}
func (m *MockGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (adapter.RefundResult, error) {
	return m.RefundFunc(ctx, gatewayPaymentID, amountMinor, notes)
}

type MockRentRecorder struct {
	mu    sync.Mutex
	Calls []string
	Err   error
}

func (m *MockRentRecorder) RecordRentPayment(ctx context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, p.ID)
	return m.Err
}

func (m *MockRentRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

type MockLocker struct {
	LockFunc   func(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	UnlockFunc func(ctx context.Context, key, token string) error
}

func (m *MockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return m.LockFunc(ctx, key, ttl)
}
func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	if m.UnlockFunc == nil {
		return nil
	}
	return m.UnlockFunc(ctx, key, token)
}

// failingLedger wraps a ledger and fails writes while Fail is set.
type failingLedger struct {
	repository.SubscriptionLedger
	Fail bool
}

func (l *failingLedger) Write(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if l.Fail {
		return errors.New("ledger unavailable")
	}
	return l.SubscriptionLedger.Write(ctx, tx, sub)
}

// failingPayments wraps a payment repository and returns the configured
// errors from lookups and status writes.
type failingPayments struct {
	repository.PaymentRepository
	FindErr   error
	UpdateErr error
}

func (r *failingPayments) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	return r.PaymentRepository.FindByOrderID(ctx, tx, orderID)
}

func (r *failingPayments) UpdateStatusAndGatewayFields(ctx context.Context, tx repository.Tx, orderID string, from []model.PaymentStatus, to model.PaymentStatus, f model.GatewayFields) (bool, error) {
	if r.UpdateErr != nil {
		return false, r.UpdateErr
	}
	return r.PaymentRepository.UpdateStatusAndGatewayFields(ctx, tx, orderID, from, to, f)
}

// retryingTxManager aborts the first attempt after fn succeeds and runs fn
// again, the way a driver retries on a transient commit error. BetweenAttempts
// runs after the abort.
type retryingTxManager struct {
	repository.TransactionManager
	BetweenAttempts func()
}

var errTransientCommit = errors.New("transient commit error")

func (m *retryingTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	err := m.TransactionManager.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return errTransientCommit
	})
	if !errors.Is(err, errTransientCommit) {
		return err
	}
	if m.BetweenAttempts != nil {
		m.BetweenAttempts()
	}
	return m.TransactionManager.WithTx(ctx, fn)
}

// -----------------------------
// Wiring
// -----------------------------

type testEnv struct {
	store   *memory.Store
	gw      *payment.MockGateway
	sig     *security.SignatureVerifier
	rent    *MockRentRecorder
	plans   *model.PriceTable
	fulfill uc.Fulfiller

	orders  usecase.OrderUseCase
	verify  usecase.VerifyUseCase
	webhook usecase.WebhookUseCase
	refund  usecase.RefundUseCase
	offline usecase.OfflineUseCase
	query   usecase.QueryUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := newTestLogger()
	e := &testEnv{
		store: memory.NewStore(),
		gw:    payment.NewMockGateway(""),
		sig:   security.NewSignatureVerifier(testKeySecret, testWebhookSecret, true),
		rent:  &MockRentRecorder{},
		plans: model.DefaultPriceTable(),
	}
	payments := e.store.Payments()
	ledger := e.store.Subscriptions()
	e.fulfill = usecase.NewFulfiller(e.store.TxManager(), payments, ledger, e.plans, log)
	e.orders = usecase.NewOrderUseCase(payments, e.gw, e.plans, "INR", log)
	e.verify = usecase.NewVerifyUseCase(payments, e.sig, e.fulfill, e.rent, log)
	e.webhook = usecase.NewWebhookUseCase(payments, e.sig, e.fulfill, e.rent, log)
	e.refund = usecase.NewRefundUseCase(e.store.TxManager(), payments, e.store.CreditNotes(), e.gw, nil, log)
	e.offline = usecase.NewOfflineUseCase(payments, "INR", log)
	e.query = usecase.NewQueryUseCase(payments, ledger, e.plans)
	return e
}

func (e *testEnv) createPlanOrder(t *testing.T, plan string) *usecase.OrderResult {
	t.Helper()
	res, err := e.orders.CreateOrder(context.Background(), owner, usecase.CreateOrderRequest{
		Kind:     model.PaymentKindSubscription,
		PlanName: plan,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) verifyReq(orderID, paymentID string) usecase.VerifyRequest {
	return usecase.VerifyRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: e.sig.SignPayment(orderID, paymentID),
	}
}

func (e *testEnv) capturedWebhook(orderID, paymentID string) ([]byte, string) {
	body := []byte(fmt.Sprintf(
		`{"entity":"event","event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":149900,"status":"captured"}}}}`,
		paymentID, orderID))
	return body, e.sig.SignWebhook(body)
}

func (e *testEnv) subscription(t *testing.T) *model.Subscription {
	t.Helper()
	sub, err := e.store.Subscriptions().Read(context.Background(), nil, testOrg)
	require.NoError(t, err)
	return sub
}

func (e *testEnv) payment(t *testing.T, orderID string) *model.Payment {
	t.Helper()
	p, err := e.store.Payments().FindByOrderID(context.Background(), nil, orderID)
	require.NoError(t, err)
	return p
}

const month = model.SubscriptionPeriod
