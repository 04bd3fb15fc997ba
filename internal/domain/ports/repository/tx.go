package repository

import "context"

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn within a storage transaction, passing the
// underlying handle as tx.
//
// Repositories accept the handle as `tx Tx`: a pgx.Tx for postgres, a
// mongo.SessionContext for mongo, or NoTX (nil) for the non-transactional path.
// Postgres repositories lock rows they read (SELECT ... FOR UPDATE) when tx is set.
//
//	tm.WithTx(ctx, func(ctx context.Context, tx Tx) error {
//		ok, err := payments.MarkSubscriptionProcessed(ctx, tx, id)
//		...
//		return ledger.Write(ctx, tx, sub)
//	})
//
// Returning an error from fn rolls the transaction back.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
