package mongo

import (
	"context"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BadgeRepo implements BadgeRepository over the badges collection.
type BadgeRepo struct{ db *mongo.Database }

// NewBadgeRepo constructs a badge repository.
func NewBadgeRepo(db *mongo.Database) *BadgeRepo { return &BadgeRepo{db: db} }

// List returns badges by threshold.
func (r *BadgeRepo) List(ctx context.Context) ([]model.Badge, error) {
	opts := options.Find().SetSort(bson.D{{Key: "threshold", Value: 1}, {Key: "name", Value: 1}})
	cur, err := r.db.Collection(BadgesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var docs []badgeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(err)
	}
	out := make([]model.Badge, 0, len(docs))
	for i := range docs {
		b, err := docs[i].toBadge()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Upsert writes the badge by name, keeping the id of an existing one.
func (r *BadgeRepo) Upsert(ctx context.Context, b *model.Badge) error {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		b.ID = id
	}
	update := bson.M{
		"$set":         bson.M{"description": b.Description, "icon": b.Icon, "threshold": b.Threshold},
		"$setOnInsert": bson.M{"_id": b.ID.String()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc badgeDoc
	err := r.db.Collection(BadgesCollection).FindOneAndUpdate(ctx, bson.M{"name": b.Name}, update, opts).Decode(&doc)
	if err != nil {
		return mongoErr(err)
	}
	stored, err := doc.toBadge()
	if err != nil {
		return err
	}
	b.ID = stored.ID
	return nil
}
