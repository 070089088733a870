package service

import (
	"context"

	"github.com/and161185/ecoquest/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// DuplicateGuard answers whether a user already uploaded an image.
// The unique (user, image hash) constraint in storage stays authoritative under races.
type DuplicateGuard struct {
	activities repository.ActivityRepository
}

// NewDuplicateGuard constructs a guard over the activity store.
func NewDuplicateGuard(activities repository.ActivityRepository) *DuplicateGuard {
	return &DuplicateGuard{activities: activities}
}

// IsDuplicate reports whether (userID, imageHash) is already stored.
func (g *DuplicateGuard) IsDuplicate(ctx context.Context, userID uuid.UUID, imageHash string) (bool, error) {
	return g.activities.ExistsImage(ctx, userID, imageHash)
}
