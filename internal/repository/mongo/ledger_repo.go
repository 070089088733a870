package mongo

import (
	"context"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LedgerRepo implements LedgerRepository with single-document atomic updates.
type LedgerRepo struct{ db *mongo.Database }

// NewLedgerRepo constructs a ledger repository.
func NewLedgerRepo(db *mongo.Database) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) coll() *mongo.Collection { return r.db.Collection(UsersCollection) }

// ApplyActivity increments points and pushes the entry unless the calendar
// already holds this activity id.
func (r *LedgerRepo) ApplyActivity(ctx context.Context, userID uuid.UUID, entry model.CalendarEntry) (*model.User, bool, error) {
	filter := bson.M{
		"_id":                 userID.String(),
		"calendar.activityId": bson.M{"$ne": entry.ActivityID.String()},
	}
	update := bson.M{
		"$inc":  bson.M{"points": entry.PointsEarned},
		"$push": bson.M{"calendar": toCalendarDoc(entry)},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDoc
	err := r.coll().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	switch {
	case err == nil:
		u, err := resolveUser(ctx, r.db, &doc)
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	case isNoDocuments(err):
		// either the user is missing or the entry is already there
		u, err := loadUser(ctx, r.db, bson.M{"_id": userID.String()})
		if err != nil {
			return nil, false, err
		}
		return u, false, nil
	default:
		return nil, false, mongoErr(err)
	}
}

// AddBadges adds ids with $addToSet and diffs against the previous document.
func (r *LedgerRepo) AddBadges(ctx context.Context, userID uuid.UUID, badgeIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(badgeIDs) == 0 {
		return nil, nil
	}
	update := bson.M{"$addToSet": bson.M{"badges": bson.M{"$each": idStrings(badgeIDs)}}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"badges": 1})

	var before userDoc
	if err := r.coll().FindOneAndUpdate(ctx, bson.M{"_id": userID.String()}, update, opts).Decode(&before); err != nil {
		return nil, mongoErr(err)
	}
	had := make(map[string]struct{}, len(before.Badges))
	for _, id := range before.Badges {
		had[id] = struct{}{}
	}
	var added []uuid.UUID
	for _, id := range badgeIDs {
		if _, ok := had[id.String()]; ok {
			continue
		}
		had[id.String()] = struct{}{}
		added = append(added, id)
	}
	return added, nil
}
