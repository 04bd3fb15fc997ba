package memory

import (
	"context"
	"time"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.SubscriptionLedger = (*SubscriptionLedger)(nil)

type SubscriptionLedger struct{ s *Store }

func (l *SubscriptionLedger) Read(ctx context.Context, tx repository.Tx, orgID string) (*model.Subscription, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	if orgID == "" {
		return nil, domain.ErrInvalidArgument
	}
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	sub, ok := l.s.subscriptions[orgID]
	if !ok {
		return &model.Subscription{OrganizationID: orgID, Status: model.SubscriptionStatusInactive}, nil
	}
	return &sub, nil
}

func (l *SubscriptionLedger) Write(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if err := checkTx(tx); err != nil {
		return err
	}
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.subscriptions[sub.OrganizationID]
	s.subscriptions[sub.OrganizationID] = *sub
	record(tx, func() {
		if existed {
			s.subscriptions[sub.OrganizationID] = prev
		} else {
			delete(s.subscriptions, sub.OrganizationID)
		}
	})
	return nil
}

func (l *SubscriptionLedger) MarkPastDue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	if err := checkTx(tx); err != nil {
		return 0, err
	}
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for org, sub := range s.subscriptions {
		if sub.Status == model.SubscriptionStatusActive && sub.ExpiryDate != nil && !sub.ExpiryDate.After(now) {
			prev := sub
			sub.Status = model.SubscriptionStatusPastDue
			s.subscriptions[org] = sub
			org := org
			record(tx, func() { s.subscriptions[org] = prev })
			n++
		}
	}
	return n, nil
}
