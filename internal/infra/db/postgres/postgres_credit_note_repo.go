package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.CreditNoteRepository = (*creditNoteRepo)(nil)

const creditNoteColumns = `id::text, credit_note_number, payment_id::text, amount::text, reason, issued_by, gateway_refund_id, idempotency_key, created_at`

type creditNoteRepo struct{ pool *pgxpool.Pool }

func NewCreditNoteRepo(pool *pgxpool.Pool) *creditNoteRepo {
	return &creditNoteRepo{pool: pool}
}

func scanCreditNote(row scanner) (*model.CreditNote, error) {
	var (
		cn     model.CreditNote
		amount string
	)
	if err := row.Scan(&cn.ID, &cn.CreditNoteNumber, &cn.PaymentID, &amount, &cn.Reason, &cn.IssuedBy,
		&cn.GatewayRefundID, &cn.IdempotencyKey, &cn.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if cn.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &cn, nil
}

func (r *creditNoteRepo) Insert(ctx context.Context, tx repository.Tx, cn *model.CreditNote) error {
	const q = `
INSERT INTO credit_notes (id, credit_note_number, payment_id, amount, reason, issued_by, gateway_refund_id, idempotency_key, created_at)
VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, cn.ID, cn.CreditNoteNumber, cn.PaymentID, cn.Amount.String(), cn.Reason,
		cn.IssuedBy, cn.GatewayRefundID, cn.IdempotencyKey, cn.CreatedAt)
	return writeErr(err)
}

func (r *creditNoteRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, key string) (*model.CreditNote, error) {
	q := `SELECT ` + creditNoteColumns + ` FROM credit_notes WHERE idempotency_key=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	cn, err := scanCreditNote(row)
	if err != nil {
		return nil, readErr(err, domain.ErrNotFound)
	}
	return cn, nil
}

func (r *creditNoteRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.CreditNote, error) {
	q := `SELECT ` + creditNoteColumns + ` FROM credit_notes WHERE payment_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, readErr(err, domain.ErrNotFound)
	}
	defer rows.Close()

	var out []*model.CreditNote
	for rows.Next() {
		cn, err := scanCreditNote(rows)
		if err != nil {
			return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
		}
		out = append(out, cn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.ErrOperationFailed, err)
	}
	return out, nil
}
