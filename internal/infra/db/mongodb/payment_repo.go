package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct {
	coll *mongo.Collection
}

func NewPaymentRepo(db *mongo.Database) *paymentRepo {
	return &paymentRepo{coll: db.Collection(collPayments)}
}

func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, newPaymentDoc(p))
	return writeErr(err)
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, filter bson.M, opts ...*options.FindOneOptions) (*model.Payment, error) {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return nil, err
	}
	var doc paymentDoc
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
	}
	p, err := doc.toModel()
	if err != nil {
		return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
	}
	return p, nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, bson.M{"gateway_order_id": orderID})
}

func (r *paymentRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, gatewayPaymentID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, bson.M{"gateway_payment_id": gatewayPaymentID},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *paymentRepo) UpdateStatusAndGatewayFields(
	ctx context.Context, tx repository.Tx, orderID string, from []model.PaymentStatus, to model.PaymentStatus, f model.GatewayFields,
) (bool, error) {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return false, err
	}
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	set := bson.M{"status": string(to), "updated_at": time.Now().UTC()}
	if f.PaymentID != "" {
		set["gateway_payment_id"] = f.PaymentID
	}
	if f.Signature != "" {
		set["gateway_signature"] = f.Signature
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"gateway_order_id": orderID, "status": bson.M{"$in": states}},
		bson.M{"$set": set})
	if err != nil {
		return false, writeErr(err)
	}
	return res.MatchedCount >= 1, nil
}

func (r *paymentRepo) MarkSubscriptionProcessed(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"_id":                    paymentID,
			"status":                 string(model.PaymentStatusSuccess),
			"kind":                   string(model.PaymentKindSubscription),
			"subscription_processed": false,
		},
		bson.M{"$set": bson.M{"subscription_processed": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, writeErr(err)
	}
	return res.MatchedCount >= 1, nil
}

func (r *paymentRepo) ApplyRefund(
	ctx context.Context, tx repository.Tx, paymentID string, prevRefunded, newRefunded decimal.Decimal, to model.PaymentStatus,
) (bool, error) {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"_id":             paymentID,
			"refunded_amount": toDecimal128(prevRefunded),
			"status": bson.M{"$in": []string{
				string(model.PaymentStatusSuccess), string(model.PaymentStatusPartiallyRefunded),
			}},
		},
		bson.M{"$set": bson.M{
			"refunded_amount": toDecimal128(newRefunded),
			"status":          string(to),
			"updated_at":      time.Now().UTC(),
		}})
	if err != nil {
		return false, writeErr(err)
	}
	return res.MatchedCount >= 1, nil
}

func (r *paymentRepo) ListUnfulfilled(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return nil, err
	}
	cur, err := r.coll.Find(ctx,
		bson.M{
			"kind":                   string(model.PaymentKindSubscription),
			"status":                 string(model.PaymentStatusSuccess),
			"subscription_processed": false,
			"updated_at":             bson.M{"$lt": olderThan},
		},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, domain.Wrap(domain.ErrOperationFailed, err)
	}
	defer cur.Close(ctx)

	var out []*model.Payment
	for cur.Next(ctx) {
		var doc paymentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
		}
		p, err := doc.toModel()
		if err != nil {
			return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
		}
		out = append(out, p)
	}
	if err := cur.Err(); err != nil {
		return nil, domain.Wrap(domain.ErrOperationFailed, err)
	}
	return out, nil
}
