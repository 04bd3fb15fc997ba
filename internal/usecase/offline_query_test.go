//go:build !integration

package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/usecase"
)

func TestOffline_Record(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	p, err := e.offline.Record(ctx, admin, usecase.OfflineRequest{
		Kind: model.PaymentKindRent, Mode: model.PaymentModeCash, Amount: decimal.NewFromInt(6000), TenantID: "t-3", Note: "paid at desk",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSuccess, p.Status)
	assert.True(t, strings.HasPrefix(p.GatewayOrderID, "offline_"))
	assert.Equal(t, "paid at desk", p.Metadata["note"])
	assert.Equal(t, 0, e.rent.Count())

	stored := e.payment(t, p.GatewayOrderID)
	assert.Equal(t, model.PaymentModeCash, stored.Mode)
}

func TestOffline_Rejections(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	ok := usecase.OfflineRequest{Kind: model.PaymentKindDeposit, Mode: model.PaymentModeManualTransfer, Amount: decimal.NewFromInt(1)}

	_, err := e.offline.Record(ctx, member, ok)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	sub := ok
	sub.Kind = model.PaymentKindSubscription
	_, err = e.offline.Record(ctx, admin, sub)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	online := ok
	online.Mode = model.PaymentModeOnline
	_, err = e.offline.Record(ctx, admin, online)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	neg := ok
	neg.Amount = decimal.NewFromInt(-5)
	_, err = e.offline.Record(ctx, admin, neg)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	assert.Equal(t, 0, e.store.Payments().Count())
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	order := e.createPlanOrder(t, "Pro")

	p, err := e.query.GetPayment(ctx, member, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentID, p.ID)

	_, err = e.query.GetPayment(ctx, model.Actor{OrganizationID: "org-2"}, order.OrderID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	sub, err := e.query.GetSubscription(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusInactive, sub.Status)

	plans := e.query.Plans()
	require.Len(t, plans, 3)
	assert.Equal(t, model.PlanBasic, plans[0].Name)
	assert.Equal(t, model.PlanEnterprise, plans[2].Name)
}
