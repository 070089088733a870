package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository/memory"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func seedRanked(t *testing.T, st *memory.Store, points ...int64) []*model.User {
	t.Helper()
	ctx := context.Background()
	out := make([]*model.User, 0, len(points))
	for i, p := range points {
		u := &model.User{ID: uuid.Must(uuid.NewV4()), Name: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@example.com", i)}
		require.NoError(t, st.Users().Create(ctx, u))
		if p > 0 {
			_, _, err := st.Ledger().ApplyActivity(ctx, u.ID, model.CalendarEntry{ActivityID: uuid.Must(uuid.NewV4()), PointsEarned: p})
			require.NoError(t, err)
		}
		out = append(out, u)
	}
	return out
}

func TestClampLimit(t *testing.T) {
	t.Parallel()
	require.Equal(t, DefaultLeaderboardLimit, ClampLimit(0))
	require.Equal(t, DefaultLeaderboardLimit, ClampLimit(-3))
	require.Equal(t, 5, ClampLimit(5))
	require.Equal(t, MaxLeaderboardLimit, ClampLimit(1000))
}

func TestLeaderboard_WithoutCache(t *testing.T) {
	t.Parallel()
	st := memory.New()
	us := seedRanked(t, st, 10, 70, 40)
	s := NewLeaderboardService(st.Users(), nil, nil)

	got, err := s.Top(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, us[1].ID, got[0].UserID)
	require.Equal(t, 1, got[0].Rank)
	require.EqualValues(t, 40, got[1].Points)
	require.NoError(t, s.Warm(context.Background()))
}

func TestLeaderboard_CacheHitAndFallback(t *testing.T) {
	t.Parallel()
	st := memory.New()
	seedRanked(t, st, 10, 70, 40)
	cache := &fakeCache{}
	s := NewLeaderboardService(st.Users(), cache, zaptest.NewLogger(t))
	ctx := context.Background()

	got, err := s.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Len(t, cache.primed, 1, "miss primes the cache")

	cached := []model.LeaderboardEntry{{Name: "c1", Points: 9, Rank: 1}, {Name: "c2", Points: 8, Rank: 2}}
	cache.top = cached
	got, err = s.Top(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, cached, got)

	// short page falls through to storage
	got, err = s.Top(ctx, 3)
	require.NoError(t, err)
	require.EqualValues(t, 70, got[0].Points)

	cache.topErr = errors.New("redis down")
	got, err = s.Top(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 70, got[0].Points)
}

func TestLeaderboard_Warm(t *testing.T) {
	t.Parallel()
	st := memory.New()
	seedRanked(t, st, 5, 6)
	cache := &fakeCache{}
	s := NewLeaderboardService(st.Users(), cache, nil)

	require.NoError(t, s.Warm(context.Background()))
	require.Len(t, cache.primed, 1)
	require.Len(t, cache.primed[0], 2)
}
