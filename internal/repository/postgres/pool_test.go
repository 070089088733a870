package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userColumns = []string{"id", "name", "email", "pwd_hash", "salt", "points", "game_points", "highest_completed_level", "last_bonus_day", "created_at"}

// expectLoadUser queues the three reads performed by loadUser.
func expectLoadUser(mock pgxmock.PgxPoolIface, u *model.User) {
	var lastBonus *time.Time
	if !u.LastBonusDay.IsZero() {
		d := u.LastBonusDay
		lastBonus = &d
	}
	mock.ExpectQuery(`SELECT id, name, email, pwd_hash, salt, points`).WithArgs(u.ID).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(u.ID, u.Name, u.Email, u.PwdHash, u.Salt, u.Points, u.GamePoints, u.HighestCompletedLevel, lastBonus, u.CreatedAt))

	badges := pgxmock.NewRows([]string{"id", "name", "description", "icon", "threshold"})
	for _, b := range u.Badges {
		badges.AddRow(b.ID, b.Name, b.Description, b.Icon, b.Threshold)
	}
	mock.ExpectQuery(`FROM user_badges ub JOIN badges b`).WithArgs(u.ID).WillReturnRows(badges)

	cal := pgxmock.NewRows([]string{"activity_id", "activity_type", "points_earned", "co2_saved", "date"})
	for _, e := range u.Calendar {
		cal.AddRow(e.ActivityID, e.ActivityType, e.PointsEarned, e.CO2Saved, e.Date)
	}
	mock.ExpectQuery(`FROM calendar_entries WHERE user_id`).WithArgs(u.ID).WillReturnRows(cal)
}

type retryableErr struct{}

func (retryableErr) Error() string     { return "conn closed before send" }
func (retryableErr) SafeToRetry() bool { return true }

func TestStorageErr_TimeoutIsUnavailable(t *testing.T) {
	err := storageErr(context.DeadlineExceeded)
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	wrapped := storageErr(fmt.Errorf("begin: %w", context.DeadlineExceeded))
	require.ErrorIs(t, wrapped, errs.ErrStorageUnavailable)

	require.NoError(t, storageErr(nil))
}

func TestStorageErr_Classification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"net op error", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, true},
		{"safe to retry", retryableErr{}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"no rows", pgx.ErrNoRows, false},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := storageErr(tt.err)
			require.ErrorIs(t, got, tt.err)
			require.Equal(t, tt.unavailable, errors.Is(got, errs.ErrStorageUnavailable))
		})
	}
}

func TestDB_Ping_Unavailable(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	require.ErrorIs(t, db.Ping(context.Background()), errs.ErrStorageUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
