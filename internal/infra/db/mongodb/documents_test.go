//go:build !integration

package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
)

func TestPaymentDoc_PreservesMoney(t *testing.T) {
	pid := "pay_1"
	p := &model.Payment{
		ID:               "id-1",
		OrganizationID:   "org-1",
		Amount:           decimal.RequireFromString("1499.50"),
		RefundedAmount:   decimal.RequireFromString("10.25"),
		Kind:             model.PaymentKindRent,
		Mode:             model.PaymentModeOnline,
		Status:           model.PaymentStatusSuccess,
		GatewayOrderID:   "order_1",
		GatewayPaymentID: &pid,
		CreatedAt:        time.Now().UTC(),
	}
	got, err := newPaymentDoc(p).toModel()
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(p.Amount))
	assert.True(t, got.RefundedAmount.Equal(p.RefundedAmount))
	assert.Equal(t, model.PaymentKindRent, got.Kind)
	assert.Equal(t, "pay_1", *got.GatewayPaymentID)
}

func TestOpCtx(t *testing.T) {
	ctx := context.Background()
	got, err := opCtx(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ctx, got)

	_, err = opCtx(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrInvalidExecContext)
}
