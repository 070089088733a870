package repository

import (
	"context"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

// LedgerRepository applies reward deltas to a user atomically.
type LedgerRepository interface {
	// ApplyActivity adds entry.PointsEarned to the user and appends entry to the calendar.
	// It is at-most-once per entry.ActivityID: a repeated call returns applied=false and
	// leaves the ledger untouched. The returned user reflects the state after the call.
	ApplyActivity(ctx context.Context, userID uuid.UUID, entry model.CalendarEntry) (u *model.User, applied bool, err error)
	// AddBadges adds badge ids to the user's set and returns the ids that were not already present.
	AddBadges(ctx context.Context, userID uuid.UUID, badgeIDs []uuid.UUID) ([]uuid.UUID, error)
}
