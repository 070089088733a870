package limiter

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var (
	_ Pool = pgxmock.PgxPoolIface(nil)

	selectSQL = regexp.QuoteMeta(selectAttempts)
	lockSQL   = regexp.QuoteMeta(selectAttempts + ` FOR UPDATE`)
	ensureSQL = regexp.QuoteMeta(`INSERT INTO auth_limiter (email, ip_hash) VALUES ($1, $2)`)
	updateSQL = regexp.QuoteMeta(`UPDATE auth_limiter SET fail_count = $3, last_failure = $4, blocked_until = $5`)
)

var attemptCols = []string{"fail_count", "last_failure", "blocked_until"}

func newPGGuard(t *testing.T, now time.Time) (*Guard, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	g := NewPG(mock, time.Minute, 3, 10*time.Minute)
	g.now = func() time.Time { return now }
	return g, mock
}

func TestPG_Allow(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	ip := HashIP("203.0.113.9")
	epoch := time.Unix(0, 0).UTC()

	cases := []struct {
		name     string
		rows     *pgxmock.Rows
		err      error
		wantOK   bool
		wantWait time.Duration
		wantErr  bool
	}{
		{name: "no row", err: pgx.ErrNoRows, wantOK: true},
		{name: "blocked", rows: pgxmock.NewRows(attemptCols).AddRow(3, now, now.Add(4*time.Minute)), wantWait: 4 * time.Minute},
		{name: "block expired", rows: pgxmock.NewRows(attemptCols).AddRow(3, now, now.Add(-time.Second)), wantOK: true},
		{name: "never blocked", rows: pgxmock.NewRows(attemptCols).AddRow(1, now, epoch), wantOK: true},
		{name: "db error", err: errors.New("db boom"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, mock := newPGGuard(t, now)
			q := mock.ExpectQuery(selectSQL).WithArgs("a@example.com", ip)
			if tc.err != nil {
				q.WillReturnError(tc.err)
			} else {
				q.WillReturnRows(tc.rows)
			}

			ok, wait, err := g.Allow(context.Background(), "a@example.com", ip)
			if tc.wantErr {
				require.ErrorContains(t, err, "limiter load")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.wantWait, wait)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPG_FailureCountsThenBlocks(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	g, mock := newPGGuard(t, now)
	ip := HashIP("203.0.113.9")
	epoch := time.Unix(0, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectExec(ensureSQL).WithArgs("a@example.com", ip).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(lockSQL).WithArgs("a@example.com", ip).
		WillReturnRows(pgxmock.NewRows(attemptCols).AddRow(1, now.Add(-30*time.Second), epoch))
	mock.ExpectExec(updateSQL).WithArgs("a@example.com", ip, 2, now, epoch).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	blocked, wait, err := g.Failure(context.Background(), "a@example.com", ip)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, wait)

	mock.ExpectBegin()
	mock.ExpectExec(ensureSQL).WithArgs("a@example.com", ip).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(lockSQL).WithArgs("a@example.com", ip).
		WillReturnRows(pgxmock.NewRows(attemptCols).AddRow(2, now, epoch))
	mock.ExpectExec(updateSQL).WithArgs("a@example.com", ip, 3, now, now.Add(10*time.Minute)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	blocked, wait, err = g.Failure(context.Background(), "a@example.com", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_FailureAfterWindowRestartsCount(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	g, mock := newPGGuard(t, now)
	ip := HashIP("")
	epoch := time.Unix(0, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectExec(ensureSQL).WithArgs("b@example.com", ip).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(lockSQL).WithArgs("b@example.com", ip).
		WillReturnRows(pgxmock.NewRows(attemptCols).AddRow(2, now.Add(-2*time.Minute), epoch))
	mock.ExpectExec(updateSQL).WithArgs("b@example.com", ip, 1, now, epoch).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	blocked, _, err := g.Failure(context.Background(), "b@example.com", ip)
	require.NoError(t, err)
	require.False(t, blocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_FailureRollsBackOnError(t *testing.T) {
	g, mock := newPGGuard(t, time.Now())
	ip := HashIP("10.0.0.1")

	mock.ExpectBegin()
	mock.ExpectExec(ensureSQL).WithArgs("c@example.com", ip).WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, _, err := g.Failure(context.Background(), "c@example.com", ip)
	require.ErrorContains(t, err, "limiter insert")
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))
	_, _, err = g.Failure(context.Background(), "c@example.com", ip)
	require.ErrorContains(t, err, "limiter begin")
}

func TestPG_SuccessDeletesPair(t *testing.T) {
	g, mock := newPGGuard(t, time.Now())
	ip := HashIP("10.0.0.1")
	del := regexp.QuoteMeta(`DELETE FROM auth_limiter WHERE email=$1 AND ip_hash=$2`)

	mock.ExpectExec(del).WithArgs("d@example.com", ip).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, g.Success(context.Background(), "d@example.com", ip))

	mock.ExpectExec(del).WithArgs("d@example.com", ip).WillReturnError(errors.New("exec fail"))
	require.ErrorContains(t, g.Success(context.Background(), "d@example.com", ip), "limiter clear")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicy_Record(t *testing.T) {
	p := Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Hour}
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var a attempts

	require.Zero(t, p.record(&a, now))
	require.Equal(t, 1, a.Fails)
	require.Equal(t, time.Hour, p.record(&a, now.Add(time.Minute)), "a failure exactly one window later still counts")
	require.Equal(t, now.Add(time.Minute+time.Hour), a.BlockedUntil)
	require.Equal(t, 59*time.Minute, a.blockedFor(now.Add(2*time.Minute)))
	require.Zero(t, a.blockedFor(a.BlockedUntil))
}
