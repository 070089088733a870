package memory

import (
	"context"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

// BadgeRepo implements repository.BadgeRepository.
type BadgeRepo struct{ s *Store }

// List returns all badges by threshold.
func (r *BadgeRepo) List(_ context.Context) ([]model.Badge, error) {
	r.s.mu.RLock()
	out := make([]model.Badge, 0, len(r.s.badges))
	for _, b := range r.s.badges {
		out = append(out, b)
	}
	r.s.mu.RUnlock()
	sortBadges(out)
	return out, nil
}

// Upsert stores b keyed by name.
func (r *BadgeRepo) Upsert(_ context.Context, b *model.Badge) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.badgeByName[b.Name]; ok {
		b.ID = id
	} else if b.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		b.ID = id
	}
	s.badges[b.ID] = *b
	s.badgeByName[b.Name] = b.ID
	return nil
}
