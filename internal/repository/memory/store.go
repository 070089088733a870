// Package memory contains mutex-guarded in-process implementations of the
// repository interfaces. It backs dev mode and service tests.
package memory

import (
	"sort"
	"sync"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

type imageKey struct {
	user uuid.UUID
	hash string
}

// Store holds all state; the repo types below are views over it.
type Store struct {
	mu sync.RWMutex

	users   map[uuid.UUID]*model.User
	byName  map[string]uuid.UUID
	byEmail map[string]uuid.UUID
	owned   map[uuid.UUID]map[uuid.UUID]struct{} // user -> badge ids

	activities map[uuid.UUID]model.Activity
	byUser     map[uuid.UUID][]uuid.UUID
	images     map[imageKey]uuid.UUID
	applied    map[uuid.UUID]struct{} // activity ids already in a calendar

	badges      map[uuid.UUID]model.Badge
	badgeByName map[string]uuid.UUID
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[uuid.UUID]*model.User),
		byName:      make(map[string]uuid.UUID),
		byEmail:     make(map[string]uuid.UUID),
		owned:       make(map[uuid.UUID]map[uuid.UUID]struct{}),
		activities:  make(map[uuid.UUID]model.Activity),
		byUser:      make(map[uuid.UUID][]uuid.UUID),
		images:      make(map[imageKey]uuid.UUID),
		applied:     make(map[uuid.UUID]struct{}),
		badges:      make(map[uuid.UUID]model.Badge),
		badgeByName: make(map[string]uuid.UUID),
	}
}

// Users returns the user repository view.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Activities returns the activity repository view.
func (s *Store) Activities() *ActivityRepo { return &ActivityRepo{s: s} }

// Badges returns the badge repository view.
func (s *Store) Badges() *BadgeRepo { return &BadgeRepo{s: s} }

// Ledger returns the ledger repository view.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// snapshot copies a stored user with resolved badges; caller holds s.mu.
func (s *Store) snapshot(u *model.User) *model.User {
	out := *u
	out.PwdHash = append([]byte(nil), u.PwdHash...)
	out.Salt = append([]byte(nil), u.Salt...)
	out.Calendar = append([]model.CalendarEntry(nil), u.Calendar...)

	out.Badges = make([]model.Badge, 0, len(s.owned[u.ID]))
	for id := range s.owned[u.ID] {
		if b, ok := s.badges[id]; ok {
			out.Badges = append(out.Badges, b)
		}
	}
	sortBadges(out.Badges)
	return &out
}

func sortBadges(bs []model.Badge) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Threshold != bs[j].Threshold {
			return bs[i].Threshold < bs[j].Threshold
		}
		return bs[i].Name < bs[j].Name
	})
}
