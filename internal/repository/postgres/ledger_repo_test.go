package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var (
	lockUserSQL    = regexp.QuoteMeta(`SELECT points FROM users WHERE id=$1 FOR UPDATE`)
	insCalendarSQL = regexp.QuoteMeta(`INSERT INTO calendar_entries`)
	addPointsSQL   = regexp.QuoteMeta(`UPDATE users SET points = points + $2 WHERE id = $1`)
	insBadgeSQL    = regexp.QuoteMeta(`INSERT INTO user_badges (user_id, badge_id) VALUES ($1, $2)`)
)

func TestLedgerRepo_ApplyActivity_FirstTimeAddsPoints(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	u := sampleUser()
	entry := model.CalendarEntry{ActivityID: uuid.Must(uuid.NewV4()), ActivityType: "Recycling", PointsEarned: 20, CO2Saved: 1.5, Date: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserSQL).WithArgs(u.ID).WillReturnRows(pgxmock.NewRows([]string{"points"}).AddRow(int64(0)))
	mock.ExpectExec(insCalendarSQL).
		WithArgs(u.ID, entry.ActivityID, entry.ActivityType, entry.PointsEarned, entry.CO2Saved, entry.Date).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(addPointsSQL).WithArgs(u.ID, int64(20)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	u.Points = 20
	u.Calendar = []model.CalendarEntry{entry}
	expectLoadUser(mock, u)
	mock.ExpectCommit()

	got, applied, err := r.ApplyActivity(context.Background(), u.ID, entry)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(20), got.Points)
	require.Len(t, got.Calendar, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ApplyActivity_RepeatIsNoop(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	u := sampleUser()
	entry := model.CalendarEntry{ActivityID: uuid.Must(uuid.NewV4()), ActivityType: "Recycling", PointsEarned: 20, Date: time.Now().UTC()}
	u.Points = 20
	u.Calendar = []model.CalendarEntry{entry}

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserSQL).WithArgs(u.ID).WillReturnRows(pgxmock.NewRows([]string{"points"}).AddRow(int64(20)))
	mock.ExpectExec(insCalendarSQL).
		WithArgs(u.ID, entry.ActivityID, entry.ActivityType, entry.PointsEarned, entry.CO2Saved, entry.Date).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	expectLoadUser(mock, u)
	mock.ExpectCommit()

	got, applied, err := r.ApplyActivity(context.Background(), u.ID, entry)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, int64(20), got.Points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ApplyActivity_UnknownUserRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserSQL).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := r.ApplyActivity(context.Background(), id, model.CalendarEntry{ActivityID: uuid.Must(uuid.NewV4())})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ApplyActivity_BeginFailsUnavailable(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	mock.ExpectBegin().WillReturnError(context.DeadlineExceeded)
	_, _, err := r.ApplyActivity(context.Background(), uuid.Must(uuid.NewV4()), model.CalendarEntry{})
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
}

func TestLedgerRepo_AddBadges_ReturnsOnlyInserted(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)
	uid := uuid.Must(uuid.NewV4())
	owned, fresh := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectExec(insBadgeSQL).WithArgs(uid, owned).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(insBadgeSQL).WithArgs(uid, fresh).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	added, err := r.AddBadges(context.Background(), uid, []uuid.UUID{owned, fresh})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{fresh}, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_AddBadges_EmptyAndMissingUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)
	uid := uuid.Must(uuid.NewV4())

	added, err := r.AddBadges(context.Background(), uid, nil)
	require.NoError(t, err)
	require.Empty(t, added)

	mock.ExpectBegin()
	mock.ExpectExec(insBadgeSQL).WithArgs(uid, pgxmock.AnyArg()).WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()
	_, err = r.AddBadges(context.Background(), uid, []uuid.UUID{uuid.Must(uuid.NewV4())})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
