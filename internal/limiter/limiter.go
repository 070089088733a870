// Package limiter throttles login attempts per (email, client IP) pair.
//
// Failures are counted inside a window that restarts when the previous failure
// is older than the window. Reaching the maximum blocks the pair for a fixed
// period; a successful login clears it. The rules live in Guard, the backends
// only persist per-pair state.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether the pair may try now and, if not, how long to wait.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the pair.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure counts a failed attempt and reports whether the pair is now blocked.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP returns a stable hash of ip so raw addresses are never stored.
// An empty ip (unknown peer) still hashes to a fixed key.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Policy is the failure window and lockout.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// attempts is the stored state of one pair.
type attempts struct {
	Fails        int
	LastFailure  time.Time
	BlockedUntil time.Time
}

// blockedFor returns the remaining lockout at now, zero when unblocked.
func (a attempts) blockedFor(now time.Time) time.Duration {
	if d := a.BlockedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// record applies one failure at now and returns the lockout it starts, if any.
func (p Policy) record(a *attempts, now time.Time) time.Duration {
	if now.Sub(a.LastFailure) > p.Window {
		a.Fails = 0
	}
	a.Fails++
	a.LastFailure = now
	if a.Fails < p.MaxFails {
		return 0
	}
	a.BlockedUntil = now.Add(p.BlockFor)
	return p.BlockFor
}

// store persists attempts per pair. update must run fn atomically with
// respect to other updates of the same pair.
type store interface {
	load(ctx context.Context, email string, ipHash []byte) (attempts, error)
	update(ctx context.Context, email string, ipHash []byte, fn func(*attempts)) error
	clear(ctx context.Context, email string, ipHash []byte) error
}

// Guard implements Limiter over a store.
type Guard struct {
	policy Policy
	store  store
	now    func() time.Time
}

var _ Limiter = (*Guard)(nil)

func newGuard(s store, p Policy) *Guard {
	return &Guard{policy: p, store: s, now: time.Now}
}

// Allow reports whether the pair is currently unblocked.
func (g *Guard) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	a, err := g.store.load(ctx, email, ipHash)
	if err != nil {
		return false, 0, err
	}
	if wait := a.blockedFor(g.now()); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}

// Success forgets the pair.
func (g *Guard) Success(ctx context.Context, email string, ipHash []byte) error {
	return g.store.clear(ctx, email, ipHash)
}

// Failure counts a failed attempt.
func (g *Guard) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	var block time.Duration
	now := g.now()
	err := g.store.update(ctx, email, ipHash, func(a *attempts) {
		block = g.policy.record(a, now)
	})
	if err != nil {
		return false, 0, err
	}
	return block > 0, block, nil
}
