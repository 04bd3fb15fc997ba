//go:build integration

package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

func newSubscriptionPayment(orderID string) *model.Payment {
	now := time.Now().UTC()
	return &model.Payment{
		ID:              uuid.NewString(),
		OrganizationID:  "org-1",
		ActorUserID:     "user-1",
		Amount:          decimal.NewFromInt(1499),
		Currency:        "INR",
		Kind:            model.PaymentKindSubscription,
		Mode:            model.PaymentModeOnline,
		Status:          model.PaymentStatusCreated,
		GatewayOrderID:  orderID,
		Metadata:        map[string]string{model.MetaPlanName: "Pro"},
		TransactionDate: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)

	t.Run("should insert and find a payment", func(t *testing.T) {
		cleanup(t)
		p := newSubscriptionPayment("order_1")
		require.NoError(t, repo.Insert(ctx, nil, p))

		got, err := repo.FindByOrderID(ctx, nil, "order_1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(1499)))
		assert.Equal(t, "Pro", got.PlanName())
		assert.Equal(t, model.PaymentStatusCreated, got.Status)
	})

	t.Run("should reject a duplicate order id", func(t *testing.T) {
		cleanup(t)
		require.NoError(t, repo.Insert(ctx, nil, newSubscriptionPayment("order_dup")))
		err := repo.Insert(ctx, nil, newSubscriptionPayment("order_dup"))
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("should return not found for an unknown order", func(t *testing.T) {
		cleanup(t)
		_, err := repo.FindByOrderID(ctx, nil, "nope")
		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})

	t.Run("conditional status update never regresses", func(t *testing.T) {
		cleanup(t)
		require.NoError(t, repo.Insert(ctx, nil, newSubscriptionPayment("order_2")))

		ok, err := repo.UpdateStatusAndGatewayFields(ctx, nil, "order_2", model.SourcesFor(model.PaymentStatusSuccess),
			model.PaymentStatusSuccess, model.GatewayFields{PaymentID: "pay_2", Signature: "sig"})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.UpdateStatusAndGatewayFields(ctx, nil, "order_2", model.SourcesFor(model.PaymentStatusFailed),
			model.PaymentStatusFailed, model.GatewayFields{PaymentID: "pay_x"})
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.FindByGatewayPaymentID(ctx, nil, "pay_2")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusSuccess, got.Status)
	})

	t.Run("subscription CAS is won exactly once", func(t *testing.T) {
		cleanup(t)
		p := newSubscriptionPayment("order_3")
		p.Status = model.PaymentStatusSuccess
		require.NoError(t, repo.Insert(ctx, nil, p))

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.MarkSubscriptionProcessed(ctx, nil, p.ID)
				assert.NoError(t, err)
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})

	t.Run("unfulfilled payments are listed after they go stale", func(t *testing.T) {
		cleanup(t)
		p := newSubscriptionPayment("order_4")
		p.Status = model.PaymentStatusSuccess
		require.NoError(t, repo.Insert(ctx, nil, p))

		list, err := repo.ListUnfulfilled(ctx, nil, time.Now().Add(time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, list, 1)

		list, err = repo.ListUnfulfilled(ctx, nil, time.Now().Add(-time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("refund update is conditional on the refunded amount", func(t *testing.T) {
		cleanup(t)
		p := newSubscriptionPayment("order_5")
		p.Status = model.PaymentStatusSuccess
		require.NoError(t, repo.Insert(ctx, nil, p))

		ok, err := repo.ApplyRefund(ctx, nil, p.ID, decimal.Zero, decimal.NewFromInt(500), model.PaymentStatusPartiallyRefunded)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ApplyRefund(ctx, nil, p.ID, decimal.Zero, decimal.NewFromInt(500), model.PaymentStatusPartiallyRefunded)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSubscriptionLedger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	ledger := NewSubscriptionLedger(testPool)
	tm := NewTxManager(testPool)

	t.Run("unknown organization reads as inactive", func(t *testing.T) {
		cleanup(t)
		s, err := ledger.Read(ctx, nil, "org-new")
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionStatusInactive, s.Status)
		assert.Nil(t, s.ExpiryDate)
	})

	t.Run("write inside a transaction and mark past due", func(t *testing.T) {
		cleanup(t)
		past := time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond)
		err := tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			s, err := ledger.Read(ctx, tx, "org-1")
			if err != nil {
				return err
			}
			s.Plan = model.PlanPro
			s.Status = model.SubscriptionStatusActive
			s.ExpiryDate = &past
			return ledger.Write(ctx, tx, s)
		})
		require.NoError(t, err)

		n, err := ledger.MarkPastDue(ctx, nil, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		s, err := ledger.Read(ctx, nil, "org-1")
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionStatusPastDue, s.Status)
		assert.True(t, s.ExpiryDate.Equal(past))
	})
}

func TestCreditNoteRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	payments := NewPaymentRepo(testPool)
	notes := NewCreditNoteRepo(testPool)

	cleanup(t)
	p := newSubscriptionPayment("order_cn")
	p.Status = model.PaymentStatusSuccess
	require.NoError(t, payments.Insert(ctx, nil, p))

	key := "idem-1"
	cn := &model.CreditNote{
		ID:               uuid.NewString(),
		CreditNoteNumber: "CN-1",
		PaymentID:        p.ID,
		Amount:           decimal.NewFromInt(100),
		Reason:           "goodwill",
		IssuedBy:         "admin-1",
		GatewayRefundID:  "rfnd_1",
		IdempotencyKey:   &key,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, notes.Insert(ctx, nil, cn))

	dup := *cn
	dup.ID = uuid.NewString()
	dup.CreditNoteNumber = "CN-2"
	assert.ErrorIs(t, notes.Insert(ctx, nil, &dup), domain.ErrAlreadyExists)

	got, err := notes.FindByIdempotencyKey(ctx, nil, key)
	require.NoError(t, err)
	assert.Equal(t, cn.ID, got.ID)

	list, err := notes.ListByPayment(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
