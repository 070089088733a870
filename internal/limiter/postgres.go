package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the part of *pgxpool.Pool the limiter uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pgStore keeps attempts in the auth_limiter table so replicas share lockouts.
type pgStore struct{ pool Pool }

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(pool Pool, window time.Duration, maxFails int, blockFor time.Duration) *Guard {
	return newGuard(pgStore{pool: pool}, Policy{Window: window, MaxFails: maxFails, BlockFor: blockFor})
}

const selectAttempts = `SELECT fail_count, last_failure, blocked_until FROM auth_limiter WHERE email=$1 AND ip_hash=$2`

func (s pgStore) load(ctx context.Context, email string, ipHash []byte) (attempts, error) {
	var a attempts
	err := s.pool.QueryRow(ctx, selectAttempts, email, ipHash).Scan(&a.Fails, &a.LastFailure, &a.BlockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return attempts{}, nil
	}
	if err != nil {
		return attempts{}, fmt.Errorf("limiter load: %w", err)
	}
	return a, nil
}

// update creates the row if needed and holds its lock while fn runs.
func (s pgStore) update(ctx context.Context, email string, ipHash []byte, fn func(*attempts)) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("limiter begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("limiter commit: %w", e)
		}
	}()

	const ensure = `INSERT INTO auth_limiter (email, ip_hash) VALUES ($1, $2) ON CONFLICT (email, ip_hash) DO NOTHING`
	if _, err = tx.Exec(ctx, ensure, email, ipHash); err != nil {
		return fmt.Errorf("limiter insert: %w", err)
	}
	var a attempts
	if err = tx.QueryRow(ctx, selectAttempts+` FOR UPDATE`, email, ipHash).
		Scan(&a.Fails, &a.LastFailure, &a.BlockedUntil); err != nil {
		return fmt.Errorf("limiter lock: %w", err)
	}
	fn(&a)
	const upd = `
UPDATE auth_limiter SET fail_count = $3, last_failure = $4, blocked_until = $5
WHERE email = $1 AND ip_hash = $2`
	if _, err = tx.Exec(ctx, upd, email, ipHash, a.Fails, a.LastFailure, a.BlockedUntil); err != nil {
		return fmt.Errorf("limiter update: %w", err)
	}
	return nil
}

func (s pgStore) clear(ctx context.Context, email string, ipHash []byte) error {
	const q = `DELETE FROM auth_limiter WHERE email=$1 AND ip_hash=$2`
	if _, err := s.pool.Exec(ctx, q, email, ipHash); err != nil {
		return fmt.Errorf("limiter clear: %w", err)
	}
	return nil
}
