package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/and161185/ecoquest/internal/crypto"
	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/and161185/ecoquest/internal/verify"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Submission outcomes reported to the recorder.
const (
	OutcomeAccepted  = "accepted"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeDuplicate = "duplicate"
	OutcomePartial   = "partial_failure"
	OutcomeError     = "error"
)

// SubmitRequest is one activity submission as received from a client.
type SubmitRequest struct {
	UserIdentifier string // user id, or name for older clients
	ActivityType   string
	Points         float64
	CO2Saved       float64
	Latitude       *float64
	Longitude      *float64
	Date           time.Time // zero means now
	Image          []byte
	ImageType      string
}

// SubmissionResult is what a successful submission returns.
type SubmissionResult struct {
	Activity  model.Activity
	User      *model.User // post-update points and calendar
	NewBadges []model.Badge
	AllBadges []model.Badge
}

// LeaderboardCache receives score updates after each ledger change.
type LeaderboardCache interface {
	SetScore(ctx context.Context, userID uuid.UUID, name string, points int64) error
	Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Prime(ctx context.Context, entries []model.LeaderboardEntry) error
}

// SubmissionRecorder counts submission outcomes.
type SubmissionRecorder interface {
	ObserveSubmission(outcome string, verification string, d time.Duration)
}

// Pipeline runs activity submissions end to end.
type Pipeline struct {
	users      repository.UserRepository
	activities *ActivityService
	guard      *DuplicateGuard
	ledger     *Ledger
	catalog    *BadgeCatalog

	verifier verify.Verifier
	cache    LeaderboardCache
	recorder SubmissionRecorder
	log      *zap.Logger
	now      func() time.Time
}

// PipelineOption configures optional collaborators.
type PipelineOption func(*Pipeline)

// WithVerifier enables image verification.
func WithVerifier(v verify.Verifier) PipelineOption { return func(p *Pipeline) { p.verifier = v } }

// WithLeaderboardCache pushes new totals to a cache.
func WithLeaderboardCache(c LeaderboardCache) PipelineOption { return func(p *Pipeline) { p.cache = c } }

// WithRecorder reports outcomes to r.
func WithRecorder(r SubmissionRecorder) PipelineOption { return func(p *Pipeline) { p.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) PipelineOption { return func(p *Pipeline) { p.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) PipelineOption { return func(p *Pipeline) { p.now = now } }

// NewPipeline wires a submission pipeline.
func NewPipeline(
	users repository.UserRepository,
	activities *ActivityService,
	guard *DuplicateGuard,
	ledger *Ledger,
	catalog *BadgeCatalog,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		users:      users,
		activities: activities,
		guard:      guard,
		ledger:     ledger,
		catalog:    catalog,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

// Submit validates req, stores the activity and credits the user.
// Nothing is written before the duplicate check; once the activity is stored,
// later failures return *errs.PartialFailureError.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (res *SubmissionResult, err error) {
	start := p.now()
	verification := model.VerificationNone
	defer func() { p.observe(err, verification, p.now().Sub(start)) }()

	points, loc, err := req.validate()
	if err != nil {
		return nil, err
	}
	u, err := resolveUser(ctx, p.users, req.UserIdentifier)
	if err != nil {
		return nil, err
	}

	a := &model.Activity{
		UserID:     u.ID,
		Type:       strings.TrimSpace(req.ActivityType),
		Points:     points,
		CO2Saved:   req.CO2Saved,
		Date:       req.Date,
		UploadedAt: p.now().UTC(),
		Location:   loc,
	}
	if len(req.Image) > 0 {
		a.Image = req.Image
		a.ImageType = req.ImageType
		a.ImageHash = crypto.HashImage(req.Image)

		dup, err := p.guard.IsDuplicate(ctx, u.ID, a.ImageHash)
		if err != nil {
			return nil, err
		}
		if dup {
			p.log.Info("duplicate image rejected", zap.String("user_id", u.ID.String()))
			return nil, errs.ErrDuplicateImage
		}
		a.Verification = p.verifyImage(ctx, a)
		verification = a.Verification
		if a.Verification == string(verify.Rejected) {
			return nil, errs.Invalid("image does not match activity %q", a.Type)
		}
	}

	created, err := p.activities.Create(ctx, a)
	if err != nil {
		if errors.Is(err, errs.ErrDuplicateImage) {
			p.log.Info("duplicate image rejected by storage", zap.String("user_id", u.ID.String()))
		}
		return nil, err
	}
	return p.settle(ctx, created)
}

// Reconcile re-runs the ledger and badge steps for a stored activity.
// It is safe to call repeatedly; points are applied once per activity.
func (p *Pipeline) Reconcile(ctx context.Context, activityID uuid.UUID) (*SubmissionResult, error) {
	a, err := p.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	res, err := p.settle(ctx, a)
	if err == nil {
		p.log.Info("activity reconciled", zap.String("activity_id", activityID.String()))
	}
	return res, err
}

// settle applies the ledger entry and records newly unlocked badges.
func (p *Pipeline) settle(ctx context.Context, a *model.Activity) (*SubmissionResult, error) {
	entry := model.CalendarEntry{
		ActivityID:   a.ID,
		ActivityType: a.Type,
		PointsEarned: a.Points,
		CO2Saved:     a.CO2Saved,
		Date:         a.Date,
	}
	u, err := p.ledger.ApplyActivity(ctx, a.UserID, entry)
	if err != nil {
		return nil, p.partial(a, "ledger", err)
	}

	earned := p.catalog.Evaluate(u.BadgeIDs(), u.Points)
	added, u, err := p.ledger.RecordBadges(ctx, a.UserID, earned)
	if err != nil {
		return nil, p.partial(a, "badges", err)
	}

	p.pushScore(ctx, u)
	return &SubmissionResult{
		Activity:  *a,
		User:      u,
		NewBadges: added,
		AllBadges: u.Badges,
	}, nil
}

func (p *Pipeline) partial(a *model.Activity, step string, err error) error {
	p.log.Error("activity stored but not settled",
		zap.String("step", step),
		zap.String("activity_id", a.ID.String()),
		zap.String("user_id", a.UserID.String()),
		zap.Error(err))
	return &errs.PartialFailureError{ActivityID: a.ID, Err: err}
}

func (p *Pipeline) verifyImage(ctx context.Context, a *model.Activity) string {
	if p.verifier == nil {
		return model.VerificationUnverified
	}
	verdict, err := p.verifier.Verify(ctx, a.Type, a.Image, a.ImageType)
	if err != nil {
		p.log.Warn("image verification unavailable", zap.String("activity_type", a.Type), zap.Error(err))
		return model.VerificationUnverified
	}
	switch verdict {
	case verify.Accepted:
		return model.VerificationAccepted
	case verify.Rejected:
		return string(verify.Rejected)
	default:
		return model.VerificationUnverified
	}
}

func (p *Pipeline) pushScore(ctx context.Context, u *model.User) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SetScore(ctx, u.ID, u.Name, u.Points); err != nil {
		p.log.Warn("leaderboard cache update failed", zap.String("user_id", u.ID.String()), zap.Error(err))
	}
}

func (p *Pipeline) observe(err error, verification string, d time.Duration) {
	if p.recorder == nil {
		return
	}
	outcome := OutcomeAccepted
	switch errs.KindOf(err) {
	case errs.KindNone:
	case errs.KindInvalidInput:
		outcome = OutcomeInvalid
	case errs.KindNotFound:
		outcome = OutcomeNotFound
	case errs.KindDuplicateImage:
		outcome = OutcomeDuplicate
	case errs.KindPartialFailure:
		outcome = OutcomePartial
	default:
		outcome = OutcomeError
	}
	p.recorder.ObserveSubmission(outcome, verification, d)
}

// validate checks the request without touching storage.
func (r *SubmitRequest) validate() (int64, *model.Location, error) {
	if strings.TrimSpace(r.UserIdentifier) == "" {
		return 0, nil, errs.Invalid("user identifier required")
	}
	if strings.TrimSpace(r.ActivityType) == "" {
		return 0, nil, errs.Invalid("activity type required")
	}
	if err := checkAmount("points", r.Points); err != nil {
		return 0, nil, err
	}
	if r.Points != math.Trunc(r.Points) || r.Points > math.MaxInt32 {
		return 0, nil, errs.Invalid("points must be a whole number")
	}
	if err := checkAmount("co2Saved", r.CO2Saved); err != nil {
		return 0, nil, err
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return 0, nil, errs.Invalid("latitude and longitude must be sent together")
	}
	var loc *model.Location
	if r.Latitude != nil {
		loc = &model.Location{Latitude: *r.Latitude, Longitude: *r.Longitude}
		if err := checkLocation(loc); err != nil {
			return 0, nil, err
		}
	}
	if (len(r.Image) > 0) != (r.ImageType != "") {
		return 0, nil, errs.Invalid("image and imageType must be sent together")
	}
	return int64(r.Points), loc, nil
}
