package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct{ s *Store }

func (r *PaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if err := checkTx(tx); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byOrderID[p.GatewayOrderID]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := s.payments[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.payments[p.ID] = clonePayment(p)
	s.byOrderID[p.GatewayOrderID] = p.ID
	record(tx, func() {
		delete(s.payments, p.ID)
		delete(s.byOrderID, p.GatewayOrderID)
	})
	return nil
}

func (r *PaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byOrderID[orderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return clonePayment(r.s.payments[id]), nil
}

func (r *PaymentRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, gatewayPaymentID string) (*model.Payment, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *model.Payment
	for _, p := range r.s.payments {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == gatewayPaymentID {
			if found == nil || p.CreatedAt.After(found.CreatedAt) {
				found = p
			}
		}
	}
	if found == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return clonePayment(found), nil
}

func (r *PaymentRepo) UpdateStatusAndGatewayFields(
	ctx context.Context, tx repository.Tx, orderID string, from []model.PaymentStatus, to model.PaymentStatus, f model.GatewayFields,
) (bool, error) {
	if err := checkTx(tx); err != nil {
		return false, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOrderID[orderID]
	if !ok {
		return false, nil
	}
	p := s.payments[id]
	allowed := false
	for _, st := range from {
		if p.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	prev := clonePayment(p)
	p.Status = to
	if f.PaymentID != "" {
		p.GatewayPaymentID = strPtr(f.PaymentID)
	}
	if f.Signature != "" {
		p.GatewaySignature = strPtr(f.Signature)
	}
	p.UpdatedAt = time.Now().UTC()
	record(tx, func() { s.payments[id] = prev })
	return true, nil
}

func (r *PaymentRepo) MarkSubscriptionProcessed(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	if err := checkTx(tx); err != nil {
		return false, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || !p.NeedsFulfillment() {
		return false, nil
	}
	prev := clonePayment(p)
	p.SubscriptionProcessed = true
	p.UpdatedAt = time.Now().UTC()
	record(tx, func() { s.payments[paymentID] = prev })
	return true, nil
}

func (r *PaymentRepo) ApplyRefund(
	ctx context.Context, tx repository.Tx, paymentID string, prevRefunded, newRefunded decimal.Decimal, to model.PaymentStatus,
) (bool, error) {
	if err := checkTx(tx); err != nil {
		return false, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return false, nil
	}
	if p.Status != model.PaymentStatusSuccess && p.Status != model.PaymentStatusPartiallyRefunded {
		return false, nil
	}
	if !p.RefundedAmount.Equal(prevRefunded) {
		return false, nil
	}
	prev := clonePayment(p)
	p.RefundedAmount = newRefunded
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	record(tx, func() { s.payments[paymentID] = prev })
	return true, nil
}

func (r *PaymentRepo) ListUnfulfilled(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.s.payments {
		if p.NeedsFulfillment() && p.UpdatedAt.Before(olderThan) {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Touch overrides UpdatedAt; tests use it to age a payment.
func (r *PaymentRepo) Touch(orderID string, at time.Time) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.byOrderID[orderID]; ok {
		r.s.payments[id].UpdatedAt = at
	}
}

// Count returns the number of stored payments.
func (r *PaymentRepo) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.payments)
}
