package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements LedgerRepository using PostgreSQL.
type LedgerRepo struct{ db *DB }

// NewLedgerRepo constructs a ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo { return &LedgerRepo{db: db} }

// ApplyActivity locks the user row, appends the calendar entry and adds points
// in one transaction. The unique activity_id makes a repeat a no-op.
func (r *LedgerRepo) ApplyActivity(
	ctx context.Context, userID uuid.UUID, entry model.CalendarEntry,
) (u *model.User, applied bool, err error) {
	const lock = `SELECT points FROM users WHERE id=$1 FOR UPDATE`
	const ins = `
INSERT INTO calendar_entries (user_id, activity_id, activity_type, points_earned, co2_saved, date)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (activity_id) DO NOTHING`
	const upd = `UPDATE users SET points = points + $2 WHERE id = $1`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		var points int64
		if err := tx.QueryRow(ctx, lock, userID).Scan(&points); err != nil {
			return notFound(err)
		}
		tag, err := tx.Exec(ctx, ins, userID, entry.ActivityID, entry.ActivityType, entry.PointsEarned, entry.CO2Saved, entry.Date)
		if err != nil {
			if isFKViolation(err) {
				return fmt.Errorf("%w: activity %s", errs.ErrNotFound, entry.ActivityID)
			}
			return storageErr(err)
		}
		if tag.RowsAffected() == 1 {
			applied = true
			if _, err := tx.Exec(ctx, upd, userID, entry.PointsEarned); err != nil {
				return storageErr(err)
			}
		}
		u, err = loadUser(ctx, tx, "id=$1", userID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return u, applied, nil
}

// AddBadges inserts missing (user, badge) pairs and returns those actually inserted.
func (r *LedgerRepo) AddBadges(ctx context.Context, userID uuid.UUID, badgeIDs []uuid.UUID) (added []uuid.UUID, err error) {
	if len(badgeIDs) == 0 {
		return nil, nil
	}
	const ins = `
INSERT INTO user_badges (user_id, badge_id) VALUES ($1, $2)
ON CONFLICT (user_id, badge_id) DO NOTHING`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		for _, id := range badgeIDs {
			tag, err := tx.Exec(ctx, ins, userID, id)
			if err != nil {
				if isFKViolation(err) {
					return errs.ErrNotFound
				}
				return storageErr(err)
			}
			if tag.RowsAffected() == 1 {
				added = append(added, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}
