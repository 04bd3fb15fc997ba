// Package memory is a process-local store with the same conditional-write
// semantics as the postgres and mongo stores. It backs dev/mock deployments and tests.
package memory

import (
	"context"
	"sync"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

type Store struct {
	mu sync.Mutex
	// txMu serializes transactions, standing in for row locks.
	txMu sync.Mutex

	payments      map[string]*model.Payment // id -> payment
	byOrderID     map[string]string         // gateway order id -> id
	subscriptions map[string]model.Subscription
	notes         map[string]*model.CreditNote
	noteNumbers   map[string]string
	noteKeys      map[string]string
}

func NewStore() *Store {
	return &Store{
		payments:      make(map[string]*model.Payment),
		byOrderID:     make(map[string]string),
		subscriptions: make(map[string]model.Subscription),
		notes:         make(map[string]*model.CreditNote),
		noteNumbers:   make(map[string]string),
		noteKeys:      make(map[string]string),
	}
}

func (s *Store) Payments() *PaymentRepo             { return &PaymentRepo{s: s} }
func (s *Store) Subscriptions() *SubscriptionLedger { return &SubscriptionLedger{s: s} }
func (s *Store) CreditNotes() *CreditNoteRepo       { return &CreditNoteRepo{s: s} }
func (s *Store) TxManager() *TxManager              { return &TxManager{s: s} }

// memTx records undo steps for writes made inside WithTx.
type memTx struct {
	undo []func()
}

func (t *memTx) onRollback(fn func()) { t.undo = append(t.undo, fn) }

// record registers fn on tx when there is one; it must be called with s.mu held.
func record(tx repository.Tx, fn func()) {
	if t, ok := tx.(*memTx); ok {
		t.onRollback(fn)
	}
}

func checkTx(tx repository.Tx) error {
	switch tx.(type) {
	case nil, *memTx:
		return nil
	default:
		return domain.ErrInvalidExecContext
	}
}

var _ repository.TransactionManager = (*TxManager)(nil)

type TxManager struct{ s *Store }

func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	tx := &memTx{}
	if err := fn(ctx, tx); err != nil {
		m.s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.s.mu.Unlock()
		return err
	}
	return nil
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func strPtr(s string) *string { return &s }
