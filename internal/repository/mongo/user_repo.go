package mongo

import (
	"context"
	"errors"
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

// UserRepo implements UserRepository over the users collection.
type UserRepo struct{ db *mongo.Database }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *mongo.Database) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) coll() *mongo.Collection { return r.db.Collection(UsersCollection) }

// Create inserts a user with an empty ledger.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	doc := userDoc{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		PwdHash:   u.PwdHash,
		Salt:      u.Salt,
		Badges:    []string{},
		Calendar:  []calendarDoc{},
		CreatedAt: created,
	}
	_, err := r.coll().InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		field := "id"
		switch {
		case strings.Contains(err.Error(), "email"):
			field = "email"
		case strings.Contains(err.Error(), "name"):
			field = "name"
		}
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, field)
	}
	return mongoErr(err)
}

// GetByID loads a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return loadUser(ctx, r.db, bson.M{"_id": id.String()})
}

// GetByName loads a user by display name.
func (r *UserRepo) GetByName(ctx context.Context, name string) (*model.User, error) {
	return loadUser(ctx, r.db, bson.M{"name": name})
}

// GetByEmail loads a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return loadUser(ctx, r.db, bson.M{"email": email})
}

// Top returns users sorted by points desc, name asc.
func (r *UserRepo) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "points", Value: -1}, {Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1, "name": 1, "points": 1})
	cur, err := r.coll().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(err)
	}
	out := make([]model.LeaderboardEntry, 0, len(docs))
	for i, d := range docs {
		id, err := uuid.FromString(d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.LeaderboardEntry{UserID: id, Name: d.Name, Points: d.Points, Rank: i + 1})
	}
	return out, nil
}

// AdvanceLevel sets the level only if it directly follows the stored one.
func (r *UserRepo) AdvanceLevel(ctx context.Context, id uuid.UUID, level int, gamePoints int64) (*model.User, error) {
	filter := bson.M{"_id": id.String(), "highestCompletedLevel": level - 1}
	update := bson.M{
		"$set": bson.M{"highestCompletedLevel": level},
		"$inc": bson.M{"gamePoints": gamePoints},
	}
	res, err := r.coll().UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, mongoErr(err)
	}
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, errs.Invalid("level %d does not follow completed level %d", level, u.HighestCompletedLevel)
	}
	return u, nil
}

// ClaimBonus sets lastBonusDay if it is unset or earlier than day.
func (r *UserRepo) ClaimBonus(ctx context.Context, id uuid.UUID, day time.Time, gamePoints int64) (*model.User, error) {
	filter := bson.M{
		"_id": id.String(),
		"$or": bson.A{
			bson.M{"lastBonusDay": nil},
			bson.M{"lastBonusDay": bson.M{"$lt": day}},
		},
	}
	update := bson.M{
		"$set": bson.M{"lastBonusDay": day},
		"$inc": bson.M{"gamePoints": gamePoints},
	}
	res, err := r.coll().UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, mongoErr(err)
	}
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: daily bonus already claimed", errs.ErrAlreadyExists)
	}
	return u, nil
}

func loadUser(ctx context.Context, db *mongo.Database, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := db.Collection(UsersCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	return resolveUser(ctx, db, &doc)
}

// resolveUser converts doc and fills badge definitions.
func resolveUser(ctx context.Context, db *mongo.Database, doc *userDoc) (*model.User, error) {
	u, err := doc.toUser()
	if err != nil {
		return nil, err
	}
	if len(doc.Badges) == 0 {
		return u, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "threshold", Value: 1}, {Key: "name", Value: 1}})
	cur, err := db.Collection(BadgesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": doc.Badges}}, opts)
	if err != nil {
		return nil, mongoErr(err)
	}
	var docs []badgeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(err)
	}
	for i := range docs {
		b, err := docs[i].toBadge()
		if err != nil {
			return nil, err
		}
		u.Badges = append(u.Badges, b)
	}
	return u, nil
}

func isNoDocuments(err error) bool { return errors.Is(err, mongo.ErrNoDocuments) }
