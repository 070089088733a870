// Package mongo contains MongoDB implementations of repository interfaces.
// Users embed their calendar and badge ids so ledger updates stay single-document.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection      = "users"
	ActivitiesCollection = "activities"
	BadgesCollection     = "badges"
)

const activityImageIndex = "activities_user_image_hash_uq"

// Connect dials uri, verifies the connection with a ping and returns the named database.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errs.Unavailable(fmt.Errorf("ping mongodb: %w", err))
	}
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the unique indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "points", Value: -1}, {Key: "name", Value: 1}}},
	}
	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return mongoErr(err)
	}

	activities := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "imageHash", Value: 1}},
			Options: options.Index().SetName(activityImageIndex).SetUnique(true).
				SetPartialFilterExpression(bson.M{"imageHash": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
	}
	if _, err := db.Collection(ActivitiesCollection).Indexes().CreateMany(ctx, activities); err != nil {
		return mongoErr(err)
	}

	badges := mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := db.Collection(BadgesCollection).Indexes().CreateOne(ctx, badges); err != nil {
		return mongoErr(err)
	}
	return nil
}

// mongoErr maps driver errors onto the error taxonomy.
func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errs.ErrNotFound
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, context.DeadlineExceeded):
		return errs.Unavailable(err)
	default:
		return err
	}
}
