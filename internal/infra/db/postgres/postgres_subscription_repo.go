package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

// Ensure subscriptionLedger implements repository.SubscriptionLedger
var _ repository.SubscriptionLedger = (*subscriptionLedger)(nil)

// subscriptionLedger keeps the subscription columns of the organizations table.
type subscriptionLedger struct {
	pool *pgxpool.Pool
}

func NewSubscriptionLedger(pool *pgxpool.Pool) *subscriptionLedger {
	return &subscriptionLedger{pool: pool}
}

// Read locks the organization row inside a transaction, creating it first if the
// organization has never had a subscription so the lock always has a row to hold.
func (r *subscriptionLedger) Read(ctx context.Context, tx repository.Tx, orgID string) (*model.Subscription, error) {
	if orgID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, ok := tx.(pgx.Tx); ok {
		const ensure = `INSERT INTO organizations (id) VALUES ($1) ON CONFLICT (id) DO NOTHING;`
		if _, err := execSQL(ctx, r.pool, tx, ensure, orgID); err != nil {
			return nil, writeErr(err)
		}
	}
	q := `SELECT sub_plan, sub_status, sub_start_date, sub_expiry_date FROM organizations WHERE id=$1` + lockClause(tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, orgID)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{OrganizationID: orgID}
	var plan, status string
	if err := row.Scan(&plan, &status, &s.StartDate, &s.ExpiryDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.Status = model.SubscriptionStatusInactive
			return s, nil
		}
		return nil, readErr(err, domain.ErrNotFound)
	}
	s.Plan = model.PlanTier(plan)
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

func (r *subscriptionLedger) Write(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO organizations (id, sub_plan, sub_status, sub_start_date, sub_expiry_date, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (id) DO UPDATE SET
  sub_plan=$2, sub_status=$3, sub_start_date=$4, sub_expiry_date=$5, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, s.OrganizationID, string(s.Plan), string(s.Status), s.StartDate, s.ExpiryDate)
	return writeErr(err)
}

func (r *subscriptionLedger) MarkPastDue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `
UPDATE organizations
   SET sub_status='past_due', updated_at=NOW()
 WHERE sub_status='active' AND sub_expiry_date <= $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, writeErr(err)
	}
	return cmd.RowsAffected(), nil
}
