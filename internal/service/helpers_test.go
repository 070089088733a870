package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/and161185/ecoquest/internal/repository/memory"
	"github.com/and161185/ecoquest/internal/verify"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	store    *memory.Store
	acts     *ActivityService
	catalog  *BadgeCatalog
	ledger   *Ledger
	pipeline *Pipeline
}

func newFixture(t *testing.T, ledgerRepo repository.LedgerRepository, opts ...PipelineOption) *fixture {
	t.Helper()
	st := memory.New()
	if ledgerRepo == nil {
		ledgerRepo = st.Ledger()
	}
	f := &fixture{store: st}
	f.acts = NewActivityService(st.Activities())
	f.catalog = NewBadgeCatalog(st.Badges())
	require.NoError(t, f.catalog.Seed(context.Background(), []model.Badge{
		{Name: "Sprout", Threshold: 10},
		{Name: "Sapling", Threshold: 50},
	}))
	log := zaptest.NewLogger(t)
	f.ledger = NewLedger(ledgerRepo, st.Users(), log)
	opts = append([]PipelineOption{WithLogger(log)}, opts...)
	f.pipeline = NewPipeline(st.Users(), f.acts, NewDuplicateGuard(st.Activities()), f.ledger, f.catalog, opts...)
	return f
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Name: name, Email: name + "@example.com"}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func badgeNames(bs []model.Badge) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Name)
	}
	return out
}

// flakyLedger fails AddBadges or ApplyActivity a set number of times.
type flakyLedger struct {
	repository.LedgerRepository

	mu         sync.Mutex
	applyFails int
	addFails   int
}

var _ repository.LedgerRepository = (*flakyLedger)(nil)

func (f *flakyLedger) ApplyActivity(ctx context.Context, userID uuid.UUID, e model.CalendarEntry) (*model.User, bool, error) {
	f.mu.Lock()
	fail := f.applyFails > 0
	if fail {
		f.applyFails--
	}
	f.mu.Unlock()
	if fail {
		return nil, false, context.DeadlineExceeded
	}
	return f.LedgerRepository.ApplyActivity(ctx, userID, e)
}

func (f *flakyLedger) AddBadges(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	fail := f.addFails > 0
	if fail {
		f.addFails--
	}
	f.mu.Unlock()
	if fail {
		return nil, context.DeadlineExceeded
	}
	return f.LedgerRepository.AddBadges(ctx, userID, ids)
}

type stubVerifier struct {
	verdict verify.Verdict
	err     error
	calls   int
}

var _ verify.Verifier = (*stubVerifier)(nil)

func (v *stubVerifier) Verify(context.Context, string, []byte, string) (verify.Verdict, error) {
	v.calls++
	return v.verdict, v.err
}

type recorded struct {
	outcome, verification string
}

type fakeRecorder struct {
	mu  sync.Mutex
	got []recorded
}

var _ SubmissionRecorder = (*fakeRecorder)(nil)

func (r *fakeRecorder) ObserveSubmission(outcome, verification string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, recorded{outcome, verification})
}

type fakeCache struct {
	mu      sync.Mutex
	scores  map[uuid.UUID]int64
	top     []model.LeaderboardEntry
	topErr  error
	primed  [][]model.LeaderboardEntry
	setErr  error
	topHits int
}

var _ LeaderboardCache = (*fakeCache)(nil)

func (c *fakeCache) SetScore(_ context.Context, id uuid.UUID, _ string, points int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scores == nil {
		c.scores = map[uuid.UUID]int64{}
	}
	c.scores[id] = points
	return c.setErr
}

func (c *fakeCache) Top(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topHits++
	if c.topErr != nil {
		return nil, c.topErr
	}
	if len(c.top) > limit {
		return c.top[:limit], nil
	}
	return c.top, nil
}

func (c *fakeCache) Prime(_ context.Context, entries []model.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primed = append(c.primed, entries)
	return nil
}
