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

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, name, email, pwd_hash, salt, points, game_points, highest_completed_level, last_bonus_day, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, name, email, pwd_hash, salt)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Name, u.Email, u.PwdHash, u.Salt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, constraintName(err))
	}
	return storageErr(err)
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return loadUser(ctx, r.db.Pool, "id=$1", id)
}

// GetByName selects a user by display name.
func (r *UserRepo) GetByName(ctx context.Context, name string) (*model.User, error) {
	return loadUser(ctx, r.db.Pool, "name=$1", name)
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return loadUser(ctx, r.db.Pool, "email=$1", email)
}

// Top returns the leaderboard; ties are broken by name.
func (r *UserRepo) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	const q = `SELECT id, name, points FROM users ORDER BY points DESC, name ASC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	out := make([]model.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Points); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, storageErr(rows.Err())
}

// AdvanceLevel bumps the completed level only when level directly follows it.
func (r *UserRepo) AdvanceLevel(ctx context.Context, id uuid.UUID, level int, gamePoints int64) (*model.User, error) {
	const q = `
UPDATE users
SET highest_completed_level = $2, game_points = game_points + $3
WHERE id = $1 AND highest_completed_level = $2 - 1`
	tag, err := r.db.Pool.Exec(ctx, q, id, level, gamePoints)
	if err != nil {
		return nil, storageErr(err)
	}
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, errs.Invalid("level %d does not follow completed level %d", level, u.HighestCompletedLevel)
	}
	return u, nil
}

// ClaimBonus stamps the bonus day when it is later than the last claim.
func (r *UserRepo) ClaimBonus(ctx context.Context, id uuid.UUID, day time.Time, gamePoints int64) (*model.User, error) {
	const q = `
UPDATE users
SET last_bonus_day = $2, game_points = game_points + $3
WHERE id = $1 AND (last_bonus_day IS NULL OR last_bonus_day < $2)`
	tag, err := r.db.Pool.Exec(ctx, q, id, day, gamePoints)
	if err != nil {
		return nil, storageErr(err)
	}
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: daily bonus already claimed", errs.ErrAlreadyExists)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var lastBonus *time.Time
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PwdHash, &u.Salt,
		&u.Points, &u.GamePoints, &u.HighestCompletedLevel, &lastBonus, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastBonus != nil {
		u.LastBonusDay = lastBonus.UTC()
	}
	return &u, nil
}

// loadUser reads the user row plus its badges and calendar through q.
func loadUser(ctx context.Context, q querier, where string, arg any) (*model.User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+where, arg))
	if err != nil {
		return nil, notFound(err)
	}

	const qb = `
SELECT b.id, b.name, b.description, b.icon, b.threshold
FROM user_badges ub JOIN badges b ON b.id = ub.badge_id
WHERE ub.user_id = $1
ORDER BY b.threshold, b.name`
	rows, err := q.Query(ctx, qb, u.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	u.Badges, err = pgx.CollectRows(rows, scanBadge)
	if err != nil {
		return nil, storageErr(err)
	}

	const qc = `
SELECT activity_id, activity_type, points_earned, co2_saved, date
FROM calendar_entries WHERE user_id = $1 ORDER BY seq`
	rows, err = q.Query(ctx, qc, u.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	u.Calendar, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CalendarEntry, error) {
		var e model.CalendarEntry
		err := row.Scan(&e.ActivityID, &e.ActivityType, &e.PointsEarned, &e.CO2Saved, &e.Date)
		return e, err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return u, nil
}
