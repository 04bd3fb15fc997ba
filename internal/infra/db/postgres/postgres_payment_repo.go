package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id::text, organization_id, actor_user_id, tenant_id, amount::text, currency, kind, mode, status,
  gateway_order_id, gateway_payment_id, gateway_signature, subscription_processed, refunded_amount::text,
  metadata, transaction_date, created_at, updated_at`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row scanner) (*model.Payment, error) {
	var (
		p                 model.Payment
		amount, refunded  string
		kind, mode, state string
	)
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.ActorUserID, &p.TenantID, &amount, &p.Currency, &kind, &mode, &state,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature, &p.SubscriptionProcessed, &refunded,
		&p.Metadata, &p.TransactionDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if p.RefundedAmount, err = decimal.NewFromString(refunded); err != nil {
		return nil, fmt.Errorf("refunded_amount: %w", err)
	}
	p.Kind = model.PaymentKind(kind)
	p.Mode = model.PaymentMode(mode)
	p.Status = model.PaymentStatus(state)
	return &p, nil
}

func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, organization_id, actor_user_id, tenant_id, amount, currency, kind, mode, status,
  gateway_order_id, gateway_payment_id, gateway_signature, subscription_processed, refunded_amount,
  metadata, transaction_date, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10,$11,$12,$13,$14::numeric,$15,$16,$17,$18
);`
	meta := p.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OrganizationID, p.ActorUserID, p.TenantID, p.Amount.String(), p.Currency,
		string(p.Kind), string(p.Mode), string(p.Status),
		p.GatewayOrderID, p.GatewayPaymentID, p.GatewaySignature, p.SubscriptionProcessed, p.RefundedAmount.String(),
		meta, p.TransactionDate, p.CreatedAt, p.UpdatedAt)
	return writeErr(err)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id=$1` + lockClause(tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, readErr(err, domain.ErrPaymentNotFound)
	}
	return p, nil
}

func (r *paymentRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, gatewayPaymentID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_payment_id=$1 ORDER BY created_at DESC LIMIT 1` + lockClause(tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, readErr(err, domain.ErrPaymentNotFound)
	}
	return p, nil
}

// UpdateStatusAndGatewayFields writes only when the current status is one of from.
// Empty gateway fields keep whatever is stored.
func (r *paymentRepo) UpdateStatusAndGatewayFields(
	ctx context.Context, tx repository.Tx, orderID string, from []model.PaymentStatus, to model.PaymentStatus, f model.GatewayFields,
) (bool, error) {
	const q = `
    UPDATE payments
       SET status = $2,
           gateway_payment_id = COALESCE(NULLIF($3, ''), gateway_payment_id),
           gateway_signature = COALESCE(NULLIF($4, ''), gateway_signature),
           updated_at = NOW()
     WHERE gateway_order_id = $1
       AND status = ANY($5)`

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, orderID, string(to), f.PaymentID, f.Signature, states)
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

// MarkSubscriptionProcessed is the fulfillment compare-and-set.
func (r *paymentRepo) MarkSubscriptionProcessed(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	const q = `
    UPDATE payments
       SET subscription_processed = TRUE,
           updated_at = NOW()
     WHERE id = $1
       AND status = 'SUCCESS'
       AND kind = 'SUBSCRIPTION'
       AND subscription_processed = FALSE`

	cmd, err := execSQL(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ApplyRefund(
	ctx context.Context, tx repository.Tx, paymentID string, prevRefunded, newRefunded decimal.Decimal, to model.PaymentStatus,
) (bool, error) {
	const q = `
    UPDATE payments
       SET refunded_amount = $3::numeric,
           status = $4,
           updated_at = NOW()
     WHERE id = $1
       AND refunded_amount = $2::numeric
       AND status IN ('SUCCESS', 'PARTIALLY_REFUNDED')`

	cmd, err := execSQL(ctx, r.pool, tx, q, paymentID, prevRefunded.String(), newRefunded.String(), string(to))
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListUnfulfilled(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments
 WHERE kind = 'SUBSCRIPTION' AND status = 'SUCCESS' AND subscription_processed = FALSE AND updated_at < $1
 ORDER BY updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, readErr(err, domain.ErrNotFound)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.ErrOperationFailed, err)
	}
	return out, nil
}
