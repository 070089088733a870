package memory

import (
	"context"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

// LedgerRepo implements repository.LedgerRepository.
type LedgerRepo struct{ s *Store }

// ApplyActivity credits the entry once per activity id.
func (r *LedgerRepo) ApplyActivity(_ context.Context, userID uuid.UUID, entry model.CalendarEntry) (*model.User, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, false, errs.ErrNotFound
	}
	if _, done := s.applied[entry.ActivityID]; done {
		return s.snapshot(u), false, nil
	}
	s.applied[entry.ActivityID] = struct{}{}
	u.Points += entry.PointsEarned
	u.Calendar = append(u.Calendar, entry)
	return s.snapshot(u), true, nil
}

// AddBadges adds ids to the user's set and returns those newly added.
func (r *LedgerRepo) AddBadges(_ context.Context, userID uuid.UUID, badgeIDs []uuid.UUID) ([]uuid.UUID, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, errs.ErrNotFound
	}
	set := s.owned[userID]
	if set == nil {
		set = make(map[uuid.UUID]struct{})
		s.owned[userID] = set
	}
	var added []uuid.UUID
	for _, id := range badgeIDs {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		added = append(added, id)
	}
	return added, nil
}
