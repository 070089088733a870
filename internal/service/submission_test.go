package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/verify"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestPipeline_BadgesUnlockInOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	asha := f.user(t, "Asha")

	res, err := f.pipeline.Submit(ctx, SubmitRequest{
		UserIdentifier: "Asha", ActivityType: "Recycled Trash", Points: 10, CO2Saved: 0.5,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Sprout"}, badgeNames(res.NewBadges))
	require.Equal(t, []string{"Sprout"}, badgeNames(res.AllBadges))
	require.EqualValues(t, 10, res.User.Points)
	require.Len(t, res.User.Calendar, 1)
	require.Equal(t, res.Activity.ID, res.User.Calendar[0].ActivityID)

	res, err = f.pipeline.Submit(ctx, SubmitRequest{
		UserIdentifier: asha.ID.String(), ActivityType: "Planted Tree", Points: 50,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Sapling"}, badgeNames(res.NewBadges))
	require.Equal(t, []string{"Sprout", "Sapling"}, badgeNames(res.AllBadges))
	require.EqualValues(t, 60, res.User.Points)
	require.InDelta(t, 0.5, res.User.CO2Saved(), 1e-9)

	res, err = f.pipeline.Submit(ctx, SubmitRequest{UserIdentifier: "Asha", ActivityType: "Saved Electricity", Points: 0})
	require.NoError(t, err)
	require.Empty(t, res.NewBadges)
	require.Len(t, res.AllBadges, 2)
	require.EqualValues(t, 60, res.User.Points)
}

func TestPipeline_DuplicateImageLeavesPointsUnchanged(t *testing.T) {
	rec := &fakeRecorder{}
	f := newFixture(t, nil, WithRecorder(rec))
	ctx := context.Background()
	u := f.user(t, "asha")

	req := SubmitRequest{
		UserIdentifier: "asha", ActivityType: "Used Bicycle", Points: 20,
		Image: []byte("bike-photo"), ImageType: "image/jpeg",
	}
	first, err := f.pipeline.Submit(ctx, req)
	require.NoError(t, err)
	require.Equal(t, model.VerificationUnverified, first.Activity.Verification)
	require.NotEmpty(t, first.Activity.ImageHash)

	_, err = f.pipeline.Submit(ctx, req)
	require.ErrorIs(t, err, errs.ErrDuplicateImage)

	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 20, got.Points)
	list, err := f.acts.FindByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.Equal(t, []recorded{
		{OutcomeAccepted, model.VerificationUnverified},
		{OutcomeDuplicate, model.VerificationNone},
	}, rec.got)
}

func TestPipeline_ConcurrentDuplicateImagesAcceptOne(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.user(t, "asha")

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Submit(ctx, SubmitRequest{
				UserIdentifier: "asha", ActivityType: "Planted Tree", Points: 50,
				Image: []byte("same-bytes"), ImageType: "image/png",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, errs.ErrDuplicateImage)
	}
	require.Equal(t, 1, ok)

	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 50, got.Points)
	require.Len(t, got.Calendar, 1)
}

func TestPipeline_ConcurrentSubmissionsKeepPointsConsistent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.user(t, "asha")

	const n = 25
	var wg sync.WaitGroup
	results := make(chan *SubmissionResult, n)
	errc := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.pipeline.Submit(ctx, SubmitRequest{UserIdentifier: "asha", ActivityType: "Recycled Trash", Points: 10})
			if err != nil {
				errc <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errc)
	for err := range errc {
		require.NoError(t, err)
	}

	newSprouts := 0
	for res := range results {
		for _, b := range res.NewBadges {
			if b.Name == "Sprout" {
				newSprouts++
			}
		}
	}

	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, n*10, got.Points)
	require.Len(t, got.Calendar, n)
	require.Equal(t, 1, newSprouts, "a badge is reported as new exactly once")
}

func TestPipeline_ValidationWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.user(t, "asha")

	cases := map[string]SubmitRequest{
		"negative points":  {UserIdentifier: "asha", ActivityType: "x", Points: -1},
		"fractional":       {UserIdentifier: "asha", ActivityType: "x", Points: 1.5},
		"huge points":      {UserIdentifier: "asha", ActivityType: "x", Points: math.MaxInt32 + 1},
		"nan co2":          {UserIdentifier: "asha", ActivityType: "x", CO2Saved: math.NaN()},
		"inf co2":          {UserIdentifier: "asha", ActivityType: "x", CO2Saved: math.Inf(1)},
		"latitude only":    {UserIdentifier: "asha", ActivityType: "x", Latitude: ptr(10)},
		"latitude range":   {UserIdentifier: "asha", ActivityType: "x", Latitude: ptr(91), Longitude: ptr(0)},
		"longitude range":  {UserIdentifier: "asha", ActivityType: "x", Latitude: ptr(0), Longitude: ptr(-181)},
		"no type":          {UserIdentifier: "asha", ActivityType: "  "},
		"no user":          {ActivityType: "x"},
		"image no mime":    {UserIdentifier: "asha", ActivityType: "x", Image: []byte{1}},
		"mime no image":    {UserIdentifier: "asha", ActivityType: "x", ImageType: "image/png"},
	}
	for name, req := range cases {
		_, err := f.pipeline.Submit(ctx, req)
		require.ErrorIs(t, err, errs.ErrInvalidInput, name)
	}

	_, err := f.pipeline.Submit(ctx, SubmitRequest{UserIdentifier: "ghost", ActivityType: "x"})
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, got.Points)
	require.Empty(t, got.Calendar)
	list, err := f.acts.FindByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestPipeline_BoundaryValuesAccepted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.user(t, "asha")

	res, err := f.pipeline.Submit(ctx, SubmitRequest{
		UserIdentifier: "asha", ActivityType: "x", Points: 0, CO2Saved: 0,
		Latitude: ptr(-90), Longitude: ptr(180),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Activity.Location)
	require.Equal(t, 180.0, res.Activity.Location.Longitude)
	require.False(t, res.Activity.Date.IsZero())
	require.Equal(t, time.UTC, res.Activity.Date.Location())
}

func TestPipeline_Verification(t *testing.T) {
	ctx := context.Background()
	img := SubmitRequest{UserIdentifier: "asha", ActivityType: "Planted Tree", Points: 50, ImageType: "image/png"}

	t.Run("accepted", func(t *testing.T) {
		v := &stubVerifier{verdict: verify.Accepted}
		f := newFixture(t, nil, WithVerifier(v))
		f.user(t, "asha")
		req := img
		req.Image = []byte("a")
		res, err := f.pipeline.Submit(ctx, req)
		require.NoError(t, err)
		require.Equal(t, model.VerificationAccepted, res.Activity.Verification)
		require.Equal(t, 1, v.calls)
	})

	t.Run("rejected stores nothing", func(t *testing.T) {
		v := &stubVerifier{verdict: verify.Rejected}
		f := newFixture(t, nil, WithVerifier(v))
		u := f.user(t, "asha")
		req := img
		req.Image = []byte("b")
		_, err := f.pipeline.Submit(ctx, req)
		require.ErrorIs(t, err, errs.ErrInvalidInput)
		list, err := f.acts.FindByUser(ctx, u.ID)
		require.NoError(t, err)
		require.Empty(t, list)

		// a rejected image may be retried with a better photo, not blocked as duplicate
		v.verdict = verify.Accepted
		_, err = f.pipeline.Submit(ctx, req)
		require.NoError(t, err)
	})

	t.Run("verifier down lets it through", func(t *testing.T) {
		v := &stubVerifier{err: errors.New("imagga 503")}
		f := newFixture(t, nil, WithVerifier(v))
		f.user(t, "asha")
		req := img
		req.Image = []byte("c")
		res, err := f.pipeline.Submit(ctx, req)
		require.NoError(t, err)
		require.Equal(t, model.VerificationUnverified, res.Activity.Verification)
	})

	t.Run("no image skips verifier", func(t *testing.T) {
		v := &stubVerifier{verdict: verify.Rejected}
		f := newFixture(t, nil, WithVerifier(v))
		f.user(t, "asha")
		res, err := f.pipeline.Submit(ctx, SubmitRequest{UserIdentifier: "asha", ActivityType: "x", Points: 1})
		require.NoError(t, err)
		require.Equal(t, model.VerificationNone, res.Activity.Verification)
		require.Zero(t, v.calls)
	})
}

func TestPipeline_PartialFailureThenReconcile(t *testing.T) {
	rec := &fakeRecorder{}
	fl := &flakyLedger{applyFails: 1}
	f := newFixture(t, fl, WithRecorder(rec))
	fl.LedgerRepository = f.store.Ledger()
	ctx := context.Background()
	u := f.user(t, "asha")

	_, err := f.pipeline.Submit(ctx, SubmitRequest{UserIdentifier: "asha", ActivityType: "Planted Tree", Points: 50})
	require.Error(t, err)
	require.Equal(t, errs.KindPartialFailure, errs.KindOf(err))
	id, ok := errs.PartialActivityID(err)
	require.True(t, ok)
	require.Equal(t, []recorded{{OutcomePartial, model.VerificationNone}}, rec.got)

	stored, err := f.acts.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, u.ID, stored.UserID)
	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, got.Points)

	res, err := f.pipeline.Reconcile(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 50, res.User.Points)
	require.Equal(t, []string{"Sprout", "Sapling"}, badgeNames(res.NewBadges))

	res, err = f.pipeline.Reconcile(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 50, res.User.Points, "reconcile applies points once")
	require.Empty(t, res.NewBadges)
	require.Len(t, res.User.Calendar, 1)
}

func TestPipeline_BadgeStepFailureKeepsPoints(t *testing.T) {
	fl := &flakyLedger{addFails: 1}
	f := newFixture(t, fl)
	fl.LedgerRepository = f.store.Ledger()
	ctx := context.Background()
	u := f.user(t, "asha")

	_, err := f.pipeline.Submit(ctx, SubmitRequest{UserIdentifier: "asha", ActivityType: "Recycled Trash", Points: 10})
	id, ok := errs.PartialActivityID(err)
	require.True(t, ok)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, got.Points)
	require.Empty(t, got.Badges)

	res, err := f.pipeline.Reconcile(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 10, res.User.Points)
	require.Equal(t, []string{"Sprout"}, badgeNames(res.NewBadges))
}

func TestPipeline_ReconcileUnknownActivity(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.pipeline.Reconcile(context.Background(), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPipeline_PushesScoreToCache(t *testing.T) {
	cache := &fakeCache{setErr: errors.New("redis down")}
	f := newFixture(t, nil, WithLeaderboardCache(cache))
	u := f.user(t, "asha")

	_, err := f.pipeline.Submit(context.Background(), SubmitRequest{UserIdentifier: "asha", ActivityType: "x", Points: 7})
	require.NoError(t, err, "cache errors do not fail the submission")
	require.EqualValues(t, 7, cache.scores[u.ID])
}
