//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/usecase"
)

// paidOrder creates and verifies a Pro order (1499.00) captured as pid.
func paidOrder(t *testing.T, e *testEnv, pid string) *usecase.OrderResult {
	t.Helper()
	order := e.createPlanOrder(t, "Pro")
	_, err := e.verify.Verify(context.Background(), owner, e.verifyReq(order.OrderID, pid))
	require.NoError(t, err)
	return order
}

func TestRefund_ExceedsAmount(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	order := paidOrder(t, e, "pay_big")

	_, err := e.refund.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_big", Amount: 149901})
	assert.ErrorIs(t, err, domain.ErrRefundExceedsAmount)
	assert.Equal(t, 400, domain.HTTPStatus(domain.KindOf(err)))

	notes, err := e.store.CreditNotes().ListByPayment(ctx, nil, order.PaymentID)
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Empty(t, e.gw.Refunds())
	assert.Equal(t, model.PaymentStatusSuccess, e.payment(t, order.OrderID).Status)
}

func TestRefund_PartialThenFull(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	order := paidOrder(t, e, "pay_p")

	res, err := e.refund.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_p", Amount: 50000, Reason: "downgrade"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.CreditNote.CreditNoteNumber, "CN-"))
	assert.True(t, res.CreditNote.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, admin.UserID, res.CreditNote.IssuedBy)
	assert.True(t, strings.HasPrefix(res.CreditNote.GatewayRefundID, "rfnd_mock_"))
	assert.Equal(t, model.PaymentStatusPartiallyRefunded, e.payment(t, order.OrderID).Status)

	// Only 999.00 is left.
	_, err = e.refund.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_p", Amount: 100000})
	assert.ErrorIs(t, err, domain.ErrRefundExceedsAmount)

	_, err = e.refund.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_p", Amount: 99900})
	require.NoError(t, err)
	p := e.payment(t, order.OrderID)
	assert.Equal(t, model.PaymentStatusRefunded, p.Status)
	assert.True(t, p.RefundedAmount.Equal(decimal.NewFromInt(1499)))

	_, err = e.refund.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_p", Amount: 1})
	assert.ErrorIs(t, err, domain.ErrPaymentNotRefundable)

	notes, err := e.store.CreditNotes().ListByPayment(ctx, nil, order.PaymentID)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestRefund_IdempotencyKeyReplays(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	order := paidOrder(t, e, "pay_i")
	req := usecase.RefundRequest{GatewayPaymentID: "pay_i", Amount: 10000, IdempotencyKey: "idem-1"}

	first, err := e.refund.Refund(ctx, admin, req)
	require.NoError(t, err)
	second, err := e.refund.Refund(ctx, admin, req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.CreditNote.CreditNoteNumber, second.CreditNote.CreditNoteNumber)
	assert.Len(t, e.gw.Refunds(), 1)
	p := e.payment(t, order.OrderID)
	assert.True(t, p.RefundedAmount.Equal(decimal.NewFromInt(100)))
}

func TestRefund_Authorization(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	paidOrder(t, e, "pay_a")

	_, err := e.refund.Refund(ctx, member, usecase.RefundRequest{GatewayPaymentID: "pay_a", Amount: 100})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	otherAdmin := model.Actor{UserID: "x", OrganizationID: "org-2", Role: model.RoleAdmin}
	_, err = e.refund.Refund(ctx, otherAdmin, usecase.RefundRequest{GatewayPaymentID: "pay_a", Amount: 100})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = e.refund.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_unknown", Amount: 100})
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestRefund_LockAndGatewayFailures(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	order := paidOrder(t, e, "pay_l")

	var unlocked []string
	held := &MockLocker{
		LockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
			assert.Equal(t, "lock:refund:pay_l", key)
			return "", false, nil
		},
	}
	uc := usecase.NewRefundUseCase(e.store.TxManager(), e.store.Payments(), e.store.CreditNotes(), e.gw, held, newTestLogger())
	_, err := uc.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_l", Amount: 100})
	assert.ErrorIs(t, err, domain.ErrRefundInProgress)

	free := &MockLocker{
		LockFunc: func(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
			return "tok", true, nil
		},
		UnlockFunc: func(ctx context.Context, key, token string) error {
			unlocked = append(unlocked, token)
			return nil
		},
	}
	down := &MockGateway{RefundFunc: func(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]string) (adapter.RefundResult, error) {
		return adapter.RefundResult{}, errors.New("gateway down")
	}}
	uc = usecase.NewRefundUseCase(e.store.TxManager(), e.store.Payments(), e.store.CreditNotes(), down, free, newTestLogger())
	_, err = uc.Refund(ctx, admin, usecase.RefundRequest{GatewayPaymentID: "pay_l", Amount: 100})
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, []string{"tok"}, unlocked)
	assert.Equal(t, model.PaymentStatusSuccess, e.payment(t, order.OrderID).Status)
}
