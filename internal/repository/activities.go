package repository

import (
	"context"
	"time"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ActivityRepository persists immutable activity records.
type ActivityRepository interface {
	// Create inserts an activity; ErrDuplicateImage when (user, image hash) already exists.
	Create(ctx context.Context, a *model.Activity) error
	// Get returns one activity by id.
	Get(ctx context.Context, id uuid.UUID) (*model.Activity, error)
	// ExistsImage reports whether the user already has an activity with this fingerprint.
	ExistsImage(ctx context.Context, userID uuid.UUID, imageHash string) (bool, error)
	// ListByUser returns the user's activities, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Activity, error)
	// ListBetween returns activities with from <= date < to, newest first.
	ListBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]model.Activity, error)
}
