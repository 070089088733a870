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

// UserRepo implements repository.UserRepository.
type UserRepo struct{ s *Store }

// Create stores a new user.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: user id", errs.ErrAlreadyExists)
	}
	if _, ok := s.byName[u.Name]; ok {
		return fmt.Errorf("%w: name", errs.ErrAlreadyExists)
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("%w: email", errs.ErrAlreadyExists)
	}
	cp := *u
	cp.Badges = nil
	cp.Calendar = nil
	cp.Points = 0
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &cp
	s.byName[u.Name] = u.ID
	s.byEmail[u.Email] = u.ID
	return nil
}

// GetByID returns a copy of the user.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return r.s.snapshot(u), nil
}

// GetByName looks a user up by display name.
func (r *UserRepo) GetByName(ctx context.Context, name string) (*model.User, error) {
	r.s.mu.RLock()
	id, ok := r.s.byName[name]
	r.s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// GetByEmail looks a user up by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	id, ok := r.s.byEmail[email]
	r.s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Top ranks users by points, ties by name.
func (r *UserRepo) Top(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	r.s.mu.RLock()
	out := make([]model.LeaderboardEntry, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, model.LeaderboardEntry{UserID: u.ID, Name: u.Name, Points: u.Points})
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Name < out[j].Name
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// AdvanceLevel moves the quest ladder one step.
func (r *UserRepo) AdvanceLevel(_ context.Context, id uuid.UUID, level int, gamePoints int64) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if u.HighestCompletedLevel != level-1 {
		return nil, errs.Invalid("level %d does not follow completed level %d", level, u.HighestCompletedLevel)
	}
	u.HighestCompletedLevel = level
	u.GamePoints += gamePoints
	return s.snapshot(u), nil
}

// ClaimBonus grants the daily bonus once per day.
func (r *UserRepo) ClaimBonus(_ context.Context, id uuid.UUID, day time.Time, gamePoints int64) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if !u.LastBonusDay.IsZero() && !u.LastBonusDay.Before(day) {
		return nil, fmt.Errorf("%w: daily bonus already claimed", errs.ErrAlreadyExists)
	}
	u.LastBonusDay = day
	u.GamePoints += gamePoints
	return s.snapshot(u), nil
}
