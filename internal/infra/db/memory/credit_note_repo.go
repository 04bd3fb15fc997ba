package memory

import (
	"context"
	"sort"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.CreditNoteRepository = (*CreditNoteRepo)(nil)

type CreditNoteRepo struct{ s *Store }

func (r *CreditNoteRepo) Insert(ctx context.Context, tx repository.Tx, cn *model.CreditNote) error {
	if err := checkTx(tx); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.noteNumbers[cn.CreditNoteNumber]; ok {
		return domain.ErrAlreadyExists
	}
	if cn.IdempotencyKey != nil {
		if _, ok := s.noteKeys[*cn.IdempotencyKey]; ok {
			return domain.ErrAlreadyExists
		}
		s.noteKeys[*cn.IdempotencyKey] = cn.ID
	}
	cp := *cn
	s.notes[cn.ID] = &cp
	s.noteNumbers[cn.CreditNoteNumber] = cn.ID
	record(tx, func() {
		delete(s.notes, cn.ID)
		delete(s.noteNumbers, cn.CreditNoteNumber)
		if cn.IdempotencyKey != nil {
			delete(s.noteKeys, *cn.IdempotencyKey)
		}
	})
	return nil
}

func (r *CreditNoteRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, key string) (*model.CreditNote, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.noteKeys[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r.s.notes[id]
	return &cp, nil
}

func (r *CreditNoteRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.CreditNote, error) {
	if err := checkTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.CreditNote
	for _, cn := range r.s.notes {
		if cn.PaymentID == paymentID {
			cp := *cn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
