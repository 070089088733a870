package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ActivityRepo implements repository.ActivityRepository.
type ActivityRepo struct{ s *Store }

// Create stores the activity, enforcing one image fingerprint per user.
func (r *ActivityRepo) Create(_ context.Context, a *model.Activity) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[a.UserID]; !ok {
		return fmt.Errorf("%w: user %s", errs.ErrNotFound, a.UserID)
	}
	if _, ok := s.activities[a.ID]; ok {
		return fmt.Errorf("%w: activity %s", errs.ErrAlreadyExists, a.ID)
	}
	if a.ImageHash != "" {
		k := imageKey{user: a.UserID, hash: a.ImageHash}
		if _, ok := s.images[k]; ok {
			return errs.ErrDuplicateImage
		}
		s.images[k] = a.ID
	}
	cp := *a
	cp.Image = append([]byte(nil), a.Image...)
	if a.Location != nil {
		loc := *a.Location
		cp.Location = &loc
	}
	s.activities[a.ID] = cp
	s.byUser[a.UserID] = append(s.byUser[a.UserID], a.ID)
	return nil
}

// Get returns one activity.
func (r *ActivityRepo) Get(_ context.Context, id uuid.UUID) (*model.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.activities[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

// ExistsImage reports whether the fingerprint is taken for this user.
func (r *ActivityRepo) ExistsImage(_ context.Context, userID uuid.UUID, imageHash string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.images[imageKey{user: userID, hash: imageHash}]
	return ok, nil
}

// ListByUser returns the user's activities newest first.
func (r *ActivityRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Activity, error) {
	return r.filter(userID, func(model.Activity) bool { return true }), nil
}

// ListBetween returns activities dated in [from, to).
func (r *ActivityRepo) ListBetween(_ context.Context, userID uuid.UUID, from, to time.Time) ([]model.Activity, error) {
	return r.filter(userID, func(a model.Activity) bool {
		return !a.Date.Before(from) && a.Date.Before(to)
	}), nil
}

func (r *ActivityRepo) filter(userID uuid.UUID, keep func(model.Activity) bool) []model.Activity {
	r.s.mu.RLock()
	out := make([]model.Activity, 0, len(r.s.byUser[userID]))
	for _, id := range r.s.byUser[userID] {
		if a := r.s.activities[id]; keep(a) {
			out = append(out, a)
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}
