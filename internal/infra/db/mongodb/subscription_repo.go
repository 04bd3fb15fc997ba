package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/model"
	"propertyhub-payments/internal/domain/ports/repository"
)

var _ repository.SubscriptionLedger = (*subscriptionLedger)(nil)

// subscriptionLedger keeps the subscription sub-document of each organization.
type subscriptionLedger struct {
	coll *mongo.Collection
}

func NewSubscriptionLedger(db *mongo.Database) *subscriptionLedger {
	return &subscriptionLedger{coll: db.Collection(collOrganizations)}
}

// Read inside a transaction bumps a version counter so that a concurrent
// transaction touching the same organization hits a write conflict and is retried.
func (r *subscriptionLedger) Read(ctx context.Context, tx repository.Tx, orgID string) (*model.Subscription, error) {
	if orgID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return nil, err
	}

	var doc organizationDoc
	if tx != nil {
		err = r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": orgID},
			bson.M{
				"$inc":         bson.M{"lock_version": 1},
				"$setOnInsert": bson.M{"subscription": subscriptionDoc{Status: string(model.SubscriptionStatusInactive)}},
			},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&doc)
	} else {
		err = r.coll.FindOne(ctx, bson.M{"_id": orgID}).Decode(&doc)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &model.Subscription{OrganizationID: orgID, Status: model.SubscriptionStatusInactive}, nil
		}
		return nil, domain.Wrap(domain.ErrReadDatabaseRow, err)
	}
	status := model.SubscriptionStatus(doc.Subscription.Status)
	if status == "" {
		status = model.SubscriptionStatusInactive
	}
	return &model.Subscription{
		OrganizationID: orgID,
		Plan:           model.PlanTier(doc.Subscription.Plan),
		Status:         status,
		StartDate:      doc.Subscription.StartDate,
		ExpiryDate:     doc.Subscription.ExpiryDate,
	}, nil
}

func (r *subscriptionLedger) Write(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return err
	}
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": s.OrganizationID},
		bson.M{"$set": bson.M{
			"subscription": subscriptionDoc{
				Plan:       string(s.Plan),
				Status:     string(s.Status),
				StartDate:  s.StartDate,
				ExpiryDate: s.ExpiryDate,
			},
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true))
	return writeErr(err)
}

func (r *subscriptionLedger) MarkPastDue(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	ctx, err := opCtx(ctx, tx)
	if err != nil {
		return 0, err
	}
	res, err := r.coll.UpdateMany(ctx,
		bson.M{
			"subscription.status":      string(model.SubscriptionStatusActive),
			"subscription.expiry_date": bson.M{"$lte": now},
		},
		bson.M{"$set": bson.M{
			"subscription.status": string(model.SubscriptionStatusPastDue),
			"updated_at":          time.Now().UTC(),
		}})
	if err != nil {
		return 0, writeErr(err)
	}
	return res.ModifiedCount, nil
}
