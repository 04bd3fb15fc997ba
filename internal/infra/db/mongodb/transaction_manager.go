package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/ports/repository"
	"propertyhub-payments/internal/infra/metrics"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager runs fn inside a session transaction. The tx handle is the
// mongo.SessionContext; the driver retries fn on transient transaction errors.
type TxManager struct {
	client *mongo.Client
}

func NewTxManager(client *mongo.Client) *TxManager {
	return &TxManager{client: client}
}

func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		metrics.IncTx("mongo", "error")
		return domain.Wrap(domain.ErrOperationFailed, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, sc)
	})
	if err != nil {
		metrics.IncTx("mongo", "rollback")
		return err
	}
	metrics.IncTx("mongo", "commit")
	return nil
}

// opCtx picks the session context when running inside WithTx.
func opCtx(ctx context.Context, tx repository.Tx) (context.Context, error) {
	switch v := tx.(type) {
	case nil:
		return ctx, nil
	case mongo.SessionContext:
		return v, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func writeErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return domain.Wrap(domain.ErrAlreadyExists, err)
	}
	return domain.Wrap(domain.ErrOperationFailed, err)
}
