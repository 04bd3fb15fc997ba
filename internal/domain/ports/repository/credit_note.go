package repository

import (
	"context"

	"propertyhub-payments/internal/domain/model"
)

type CreditNoteRepository interface {
	// Insert fails with domain.ErrAlreadyExists on a duplicate number or idempotency key.
	Insert(ctx context.Context, tx Tx, cn *model.CreditNote) error
	FindByIdempotencyKey(ctx context.Context, tx Tx, key string) (*model.CreditNote, error)
	ListByPayment(ctx context.Context, tx Tx, paymentID string) ([]*model.CreditNote, error)
}
