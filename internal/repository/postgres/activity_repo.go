package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ActivityRepo implements ActivityRepository using PostgreSQL.
type ActivityRepo struct{ db *DB }

// NewActivityRepo constructs an activity repository.
func NewActivityRepo(db *DB) *ActivityRepo { return &ActivityRepo{db: db} }

const activityImageHashIndex = "activities_user_image_hash_uq"

const activityCols = `id, user_id, type, points, co2_saved, date, uploaded_at, latitude, longitude, image, image_type, image_hash, verification`

// Create inserts an activity; the partial unique index rejects a repeated image per user.
func (r *ActivityRepo) Create(ctx context.Context, a *model.Activity) error {
	const q = `
INSERT INTO activities (` + activityCols + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	var lat, lon *float64
	if a.Location != nil {
		lat, lon = &a.Location.Latitude, &a.Location.Longitude
	}
	var img []byte
	if a.HasImage() {
		img = a.Image
	}
	_, err := r.db.Pool.Exec(ctx, q,
		a.ID, a.UserID, a.Type, a.Points, a.CO2Saved, a.Date, a.UploadedAt,
		lat, lon, img, nullString(a.ImageType), nullString(a.ImageHash), a.Verification)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err) && constraintName(err) == activityImageHashIndex:
		return errs.ErrDuplicateImage
	case isUniqueViolation(err):
		return fmt.Errorf("%w: activity %s", errs.ErrAlreadyExists, a.ID)
	case isFKViolation(err):
		return fmt.Errorf("%w: user %s", errs.ErrNotFound, a.UserID)
	default:
		return storageErr(err)
	}
}

// Get selects one activity.
func (r *ActivityRepo) Get(ctx context.Context, id uuid.UUID) (*model.Activity, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+activityCols+` FROM activities WHERE id=$1`, id)
	if err != nil {
		return nil, storageErr(err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanActivity)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ExistsImage reports whether (user, hash) is already stored.
func (r *ActivityRepo) ExistsImage(ctx context.Context, userID uuid.UUID, imageHash string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM activities WHERE user_id=$1 AND image_hash=$2)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, userID, imageHash).Scan(&ok); err != nil {
		return false, storageErr(err)
	}
	return ok, nil
}

// ListByUser returns all activities of the user, newest first.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Activity, error) {
	const q = `SELECT ` + activityCols + ` FROM activities WHERE user_id=$1 ORDER BY date DESC, uploaded_at DESC`
	return r.list(ctx, q, userID)
}

// ListBetween returns activities with from <= date < to, newest first.
func (r *ActivityRepo) ListBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Activity, error) {
	const q = `SELECT ` + activityCols + ` FROM activities
WHERE user_id=$1 AND date >= $2 AND date < $3 ORDER BY date DESC, uploaded_at DESC`
	return r.list(ctx, q, userID, from, to)
}

func (r *ActivityRepo) list(ctx context.Context, q string, args ...any) ([]model.Activity, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	out, err := pgx.CollectRows(rows, scanActivity)
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func scanActivity(row pgx.CollectableRow) (model.Activity, error) {
	var (
		a         model.Activity
		lat, lon  *float64
		imageType *string
		imageHash *string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Points, &a.CO2Saved, &a.Date, &a.UploadedAt,
		&lat, &lon, &a.Image, &imageType, &imageHash, &a.Verification)
	if err != nil {
		return a, err
	}
	if lat != nil && lon != nil {
		a.Location = &model.Location{Latitude: *lat, Longitude: *lon}
	}
	if imageType != nil {
		a.ImageType = *imageType
	}
	if imageHash != nil {
		a.ImageHash = *imageHash
	}
	return a, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
