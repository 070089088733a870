package service

import (
	"context"
	"time"

	"github.com/and161185/ecoquest/internal/crypto"
	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// ActivityService validates and stores activities.
type ActivityService struct {
	repo repository.ActivityRepository
	now  func() time.Time
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo repository.ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo, now: time.Now}
}

// DayWindow returns [00:00, 24:00) of ref's calendar day in UTC.
func DayWindow(ref time.Time) (from, to time.Time) {
	y, m, d := ref.UTC().Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

// Create validates a and persists it. Missing id and dates are filled in.
func (s *ActivityService) Create(ctx context.Context, a *model.Activity) (*model.Activity, error) {
	if err := validateActivity(a); err != nil {
		return nil, err
	}
	cp := *a
	if cp.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		cp.ID = id
	}
	now := s.now().UTC()
	if cp.UploadedAt.IsZero() {
		cp.UploadedAt = now
	}
	if cp.Date.IsZero() {
		cp.Date = cp.UploadedAt
	}
	cp.Date = cp.Date.UTC()
	cp.UploadedAt = cp.UploadedAt.UTC()

	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// FindByUser returns the user's activities, newest first.
func (s *ActivityService) FindByUser(ctx context.Context, userID uuid.UUID) ([]model.Activity, error) {
	return s.repo.ListByUser(ctx, userID)
}

// FindToday returns activities dated on ref's UTC day.
func (s *ActivityService) FindToday(ctx context.Context, userID uuid.UUID, ref time.Time) ([]model.Activity, error) {
	from, to := DayWindow(ref)
	return s.repo.ListBetween(ctx, userID, from, to)
}

// Get returns one activity.
func (s *ActivityService) Get(ctx context.Context, id uuid.UUID) (*model.Activity, error) {
	return s.repo.Get(ctx, id)
}

func validateActivity(a *model.Activity) error {
	switch {
	case a.UserID == uuid.Nil:
		return errs.Invalid("user required")
	case a.Type == "":
		return errs.Invalid("activity type required")
	case a.Points < 0:
		return errs.Invalid("points must be non-negative")
	}
	if err := checkAmount("co2Saved", a.CO2Saved); err != nil {
		return err
	}
	if err := checkLocation(a.Location); err != nil {
		return err
	}
	if a.HasImage() != (a.ImageType != "") {
		return errs.Invalid("image and imageType must be sent together")
	}
	if a.HasImage() && len(a.ImageHash) != crypto.ImageHashLen {
		return errs.Invalid("image hash missing")
	}
	if !a.HasImage() && a.ImageHash != "" {
		return errs.Invalid("image hash without image")
	}
	return nil
}
