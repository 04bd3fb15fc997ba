//go:build !integration

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/infra/adapters/payment"
	"propertyhub-payments/internal/infra/api"
	"propertyhub-payments/internal/infra/db/memory"
	"propertyhub-payments/internal/infra/security"
	"propertyhub-payments/internal/usecase"
)

const (
	jwtSecret     = "jwt-test-secret"
	keySecret     = "key-secret"
	webhookSecret = "webhook-secret"
)

var (
	owner  = model.Actor{UserID: "u-owner", OrganizationID: "org-1", Role: model.RoleOwner}
	admin  = model.Actor{UserID: "u-admin", OrganizationID: "org-1", Role: model.RoleAdmin}
	member = model.Actor{UserID: "u-member", OrganizationID: "org-1", Role: model.RoleMember}
)

type fixture struct {
	handler http.Handler
	auth    *api.AuthManager
	sig     *security.SignatureVerifier
	store   *memory.Store
}

type countingLimiter struct{ n int }

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.n++
	return l.n <= limit, nil
}

func newFixture(t *testing.T, limiter *countingLimiter, perMinute int) *fixture {
	t.Helper()
	return newFixtureWith(t, limiter, perMinute, nil)
}

// newFixtureWith lets a test wrap the payment repository the use cases see.
func newFixtureWith(t *testing.T, limiter *countingLimiter, perMinute int, wrap func(repository.PaymentRepository) repository.PaymentRepository) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	store := memory.NewStore()
	gw := payment.NewMockGateway("")
	sig := security.NewSignatureVerifier(keySecret, webhookSecret, true)
	plans := model.DefaultPriceTable()
	var payments repository.PaymentRepository = store.Payments()
	if wrap != nil {
		payments = wrap(payments)
	}
	ledger := store.Subscriptions()

	fulfill := usecase.NewFulfiller(store.TxManager(), payments, ledger, plans, &logger)
	auth := api.NewAuthManager(jwtSecret, "")
	opts := api.Options{Dev: true, RateLimitPerMinute: perMinute, GatewayMode: gw.Mode()}
	var rl adapter.RateLimiter
	if limiter != nil {
		rl = limiter
	}
	srv := api.NewServer(
		usecase.NewOrderUseCase(payments, gw, plans, "INR", &logger),
		usecase.NewVerifyUseCase(payments, sig, fulfill, nil, &logger),
		usecase.NewWebhookUseCase(payments, sig, fulfill, nil, &logger),
		usecase.NewRefundUseCase(store.TxManager(), payments, store.CreditNotes(), gw, nil, &logger),
		usecase.NewOfflineUseCase(payments, "INR", &logger),
		usecase.NewQueryUseCase(payments, ledger, plans),
		auth,
		rl,
		opts,
		&logger,
	)
	return &fixture{handler: srv.Routes(), auth: auth, sig: sig, store: store}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Debug   string          `json:"debug"`
}

func (f *fixture) do(t *testing.T, method, path string, actor *model.Actor, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		tok, err := f.auth.Mint(*actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

type orderData struct {
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	KeyID     string `json:"keyId"`
	PaymentID string `json:"paymentId"`
}

func (f *fixture) createProOrder(t *testing.T) orderData {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/api/v1/payments/orders", &owner, map[string]any{"kind": "SUBSCRIPTION", "planName": "Pro"}, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var od orderData
	require.NoError(t, json.Unmarshal(env.Data, &od))
	return od
}

func TestHTTP_ProPlanEndToEnd(t *testing.T) {
	f := newFixture(t, nil, 0)
	od := f.createProOrder(t)
	assert.Equal(t, int64(149900), od.Amount)
	assert.Equal(t, "INR", od.Currency)
	assert.NotEmpty(t, od.KeyID)

	body := map[string]string{"orderId": od.OrderID, "paymentId": "pay_1", "signature": f.sig.SignPayment(od.OrderID, "pay_1")}
	code, env := f.do(t, http.MethodPost, "/api/v1/payments/verify", &owner, body, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.True(t, env.Success)
	assert.Equal(t, "payment verified", env.Message)

	var vd struct {
		Status           string `json:"status"`
		AlreadyProcessed bool   `json:"alreadyProcessed"`
		Subscription     struct {
			Plan       string    `json:"plan"`
			Status     string    `json:"status"`
			ExpiryDate time.Time `json:"expiryDate"`
		} `json:"subscription"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &vd))
	assert.Equal(t, "SUCCESS", vd.Status)
	assert.Equal(t, "Pro", vd.Subscription.Plan)
	assert.Equal(t, "active", vd.Subscription.Status)
	assert.WithinDuration(t, time.Now().Add(model.SubscriptionPeriod), vd.Subscription.ExpiryDate, time.Minute)

	code, env = f.do(t, http.MethodPost, "/api/v1/payments/verify", &owner, body, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "already processed", env.Message)

	code, env = f.do(t, http.MethodGet, "/api/v1/payments/"+od.OrderID, &member, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var pd struct {
		Status                string `json:"status"`
		SubscriptionProcessed bool   `json:"subscriptionProcessed"`
		PlanName              string `json:"planName"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pd))
	assert.Equal(t, "SUCCESS", pd.Status)
	assert.True(t, pd.SubscriptionProcessed)
	assert.Equal(t, "Pro", pd.PlanName)
}

func TestHTTP_AuthAndValidation(t *testing.T) {
	f := newFixture(t, nil, 0)

	code, env := f.do(t, http.MethodPost, "/api/v1/payments/orders", nil, map[string]any{"kind": "RENT"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
	assert.Equal(t, "unauthorized", env.Error)

	code, env = f.do(t, http.MethodPost, "/api/v1/payments/orders", &member, map[string]any{"kind": "SUBSCRIPTION", "planName": "Pro"}, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", env.Error)

	code, env = f.do(t, http.MethodPost, "/api/v1/payments/orders", &owner, map[string]any{"planName": "Pro"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "kind")

	code, _ = f.do(t, http.MethodPost, "/api/v1/payments/orders", &owner, []byte("{not json"), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = f.do(t, http.MethodPost, "/api/v1/payments/verify", &owner, map[string]string{"orderId": "order_missing", "paymentId": "p"}, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, env.Debug)
}

func TestHTTP_WrongSignature(t *testing.T) {
	f := newFixture(t, nil, 0)
	od := f.createProOrder(t)

	code, env := f.do(t, http.MethodPost, "/api/v1/payments/verify", &owner,
		map[string]string{"orderId": od.OrderID, "paymentId": "pay_1", "signature": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "signature_mismatch", env.Error)

	code, env = f.do(t, http.MethodGet, "/api/v1/subscription", &owner, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var sd struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sd))
	assert.Equal(t, "inactive", sd.Status)
}

func TestHTTP_Webhook(t *testing.T) {
	f := newFixture(t, nil, 0)
	od := f.createProOrder(t)
	raw := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_w","order_id":%q}}}}`, od.OrderID))

	code, _ := f.do(t, http.MethodPost, "/api/v1/payments/webhook", nil, raw, map[string]string{"X-Razorpay-Signature": "bad"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := f.do(t, http.MethodPost, "/api/v1/payments/webhook", nil, raw, map[string]string{"X-Razorpay-Signature": f.sig.SignWebhook(raw)})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reconciled", env.Message)

	unknown := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_unknown"}}}}`)
	code, env = f.do(t, http.MethodPost, "/api/v1/payments/webhook", nil, unknown, map[string]string{"X-Razorpay-Signature": f.sig.SignWebhook(unknown)})
	require.Equal(t, http.StatusOK, code)
	var wd struct {
		Reconciled bool `json:"reconciled"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &wd))
	assert.False(t, wd.Reconciled)
	assert.Equal(t, 1, f.store.Payments().Count())
}

// flakyPayments fails order lookups while Err is set.
type flakyPayments struct {
	repository.PaymentRepository
	Err error
}

func (r *flakyPayments) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.PaymentRepository.FindByOrderID(ctx, tx, orderID)
}

func TestHTTP_WebhookStorageFailureReturns500(t *testing.T) {
	flaky := &flakyPayments{}
	f := newFixtureWith(t, nil, 0, func(inner repository.PaymentRepository) repository.PaymentRepository {
		flaky.PaymentRepository = inner
		return flaky
	})
	od := f.createProOrder(t)
	raw := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_f","order_id":%q}}}}`, od.OrderID))
	headers := map[string]string{"X-Razorpay-Signature": f.sig.SignWebhook(raw)}

	flaky.Err = domain.Wrap(domain.ErrOperationFailed, errors.New("connection reset"))
	code, env := f.do(t, http.MethodPost, "/api/v1/payments/webhook", nil, raw, headers)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, string(domain.KindInternal), env.Error)

	flaky.Err = domain.ErrPaymentNotFound
	code, _ = f.do(t, http.MethodPost, "/api/v1/payments/webhook", nil, raw, headers)
	assert.Equal(t, http.StatusOK, code)

	flaky.Err = nil
	code, env = f.do(t, http.MethodPost, "/api/v1/payments/webhook", nil, raw, headers)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reconciled", env.Message)
}

func TestHTTP_RefundFlow(t *testing.T) {
	f := newFixture(t, nil, 0)
	od := f.createProOrder(t)
	code, _ := f.do(t, http.MethodPost, "/api/v1/payments/verify", &owner,
		map[string]string{"orderId": od.OrderID, "paymentId": "pay_r", "signature": security.MockSignature}, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := f.do(t, http.MethodPost, "/api/v1/payments/refund", &admin, map[string]any{"paymentId": "pay_r", "amount": 200000}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "refund_exceeds_amount", env.Error)

	code, _ = f.do(t, http.MethodPost, "/api/v1/payments/refund", &member, map[string]any{"paymentId": "pay_r", "amount": 100}, nil)
	assert.Equal(t, http.StatusForbidden, code)

	hdr := map[string]string{"Idempotency-Key": "refund-1"}
	code, env = f.do(t, http.MethodPost, "/api/v1/payments/refund", &admin, map[string]any{"paymentId": "pay_r", "amount": 149900, "reason": "cancelled"}, hdr)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var rd struct {
		PaymentStatus string `json:"paymentStatus"`
		Replayed      bool   `json:"replayed"`
		CreditNote    struct {
			CreditNoteNumber string `json:"creditNoteNumber"`
		} `json:"creditNote"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rd))
	assert.Equal(t, "REFUNDED", rd.PaymentStatus)
	first := rd.CreditNote.CreditNoteNumber

	code, env = f.do(t, http.MethodPost, "/api/v1/payments/refund", &admin, map[string]any{"paymentId": "pay_r", "amount": 149900}, hdr)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &rd))
	assert.True(t, rd.Replayed)
	assert.Equal(t, first, rd.CreditNote.CreditNoteNumber)
}

func TestHTTP_OfflinePlansHealth(t *testing.T) {
	f := newFixture(t, nil, 0)

	code, env := f.do(t, http.MethodPost, "/api/v1/payments/offline", &admin,
		map[string]any{"kind": "RENT", "mode": "CASH", "amount": "2500.00", "tenantId": "t-1"}, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, _ = f.do(t, http.MethodPost, "/api/v1/payments/offline", &admin,
		map[string]any{"kind": "SUBSCRIPTION", "mode": "CASH", "amount": "499"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = f.do(t, http.MethodGet, "/api/v1/plans", nil, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var plans []struct {
		Name        string `json:"name"`
		AmountMinor int64  `json:"amountMinor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	require.Len(t, plans, 3)
	assert.Equal(t, "Basic", plans[0].Name)
	assert.Equal(t, int64(49900), plans[0].AmountMinor)

	code, _ = f.do(t, http.MethodGet, "/health", nil, nil, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHTTP_RateLimit(t *testing.T) {
	f := newFixture(t, &countingLimiter{}, 1)
	f.createProOrder(t)

	code, env := f.do(t, http.MethodPost, "/api/v1/payments/orders", &owner, map[string]any{"kind": "SUBSCRIPTION", "planName": "Pro"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", env.Error)
}

func TestHTTP_RequestIDEchoed(t *testing.T) {
	f := newFixture(t, nil, 0)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(api.HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(api.HeaderRequestID))
}
