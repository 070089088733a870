package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ActivityRepo implements ActivityRepository over the activities collection.
type ActivityRepo struct{ db *mongo.Database }

// NewActivityRepo constructs an activity repository.
func NewActivityRepo(db *mongo.Database) *ActivityRepo { return &ActivityRepo{db: db} }

func (r *ActivityRepo) coll() *mongo.Collection { return r.db.Collection(ActivitiesCollection) }

// Create inserts the activity; the partial unique index guards image reuse.
func (r *ActivityRepo) Create(ctx context.Context, a *model.Activity) error {
	_, err := r.coll().InsertOne(ctx, toActivityDoc(a))
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), activityImageIndex):
		return errs.ErrDuplicateImage
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: activity %s", errs.ErrAlreadyExists, a.ID)
	default:
		return mongoErr(err)
	}
}

// Get loads one activity.
func (r *ActivityRepo) Get(ctx context.Context, id uuid.UUID) (*model.Activity, error) {
	var doc activityDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	a, err := doc.toActivity()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ExistsImage counts at most one matching activity.
func (r *ActivityRepo) ExistsImage(ctx context.Context, userID uuid.UUID, imageHash string) (bool, error) {
	n, err := r.coll().CountDocuments(ctx,
		bson.M{"userId": userID.String(), "imageHash": imageHash},
		options.Count().SetLimit(1))
	if err != nil {
		return false, mongoErr(err)
	}
	return n > 0, nil
}

// ListByUser returns the user's activities newest first.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Activity, error) {
	return r.find(ctx, bson.M{"userId": userID.String()})
}

// ListBetween returns activities with from <= date < to.
func (r *ActivityRepo) ListBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Activity, error) {
	return r.find(ctx, bson.M{
		"userId": userID.String(),
		"date":   bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
	})
}

func (r *ActivityRepo) find(ctx context.Context, filter bson.M) ([]model.Activity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "uploadedAt", Value: -1}})
	cur, err := r.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var docs []activityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(err)
	}
	out := make([]model.Activity, 0, len(docs))
	for i := range docs {
		a, err := docs[i].toActivity()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
