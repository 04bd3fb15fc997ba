package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.CreditNoteRepository = (*creditNoteRepo)(nil)

type creditNoteRepo struct {
	coll *mongo.Collection
}

func NewCreditNoteRepo(db *mongo.Database) *creditNoteRepo {
	return &creditNoteRepo{coll: db.Collection(collCreditNotes)}
}

func (r *creditNoteRepo) Insert(ctx context.Context, tx repository.Tx, cn *model.CreditNote) error {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, creditNoteDoc{
		ID:               cn.ID,
		CreditNoteNumber: cn.CreditNoteNumber,
		PaymentID:        cn.PaymentID,
		Amount:           toDecimal128(cn.Amount),
		Reason:           cn.Reason,
		IssuedBy:         cn.IssuedBy,
		GatewayRefundID:  cn.GatewayRefundID,
		IdempotencyKey:   cn.IdempotencyKey,
		CreatedAt:        cn.CreatedAt,
	})
	return writeErr(err)
}

func (r *creditNoteRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, key string) (*model.CreditNote, error) {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return nil, err
	}
	var doc creditNoteDoc
	if err := r.coll.FindOne(ctx, bson.M{"idempotency_key": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
	}
	cn, err := doc.toModel()
	if err != nil {
		return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
	}
	return cn, nil
}

func (r *creditNoteRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.CreditNote, error) {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return nil, err
	}
	cur, err := r.coll.Find(ctx, bson.M{"payment_id": paymentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, domain.Wrap(domain.ErrOperationFailed, err)
	}
	defer cur.Close(ctx)

	var out []*model.CreditNote
	for cur.Next(ctx) {
		var doc creditNoteDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
		}
		cn, err := doc.toModel()
		if err != nil {
			return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
		}
		out = append(out, cn)
	}
	return out, cur.Err()
}
