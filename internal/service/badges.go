package service

import (
	"context"
	"sort"
	"sync"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// DefaultBadges is seeded on startup when seeding is enabled.
var DefaultBadges = []model.Badge{
	{Name: "Sprout", Description: "Logged your first eco points", Icon: "🌱", Threshold: 10},
	{Name: "Sapling", Description: "Reached 50 points", Icon: "🌿", Threshold: 50},
	{Name: "Tree", Description: "Reached 100 points", Icon: "🌳", Threshold: 100},
	{Name: "Forest", Description: "Reached 250 points", Icon: "🌲", Threshold: 250},
	{Name: "Guardian", Description: "Reached 500 points", Icon: "🌍", Threshold: 500},
}

// BadgeCatalog is an in-memory snapshot of badge definitions.
type BadgeCatalog struct {
	repo repository.BadgeRepository

	mu     sync.RWMutex
	badges []model.Badge // ascending threshold
}

// NewBadgeCatalog constructs an empty catalog; call Refresh or Seed to load it.
func NewBadgeCatalog(repo repository.BadgeRepository) *BadgeCatalog {
	return &BadgeCatalog{repo: repo}
}

// Refresh reloads definitions from storage.
func (c *BadgeCatalog) Refresh(ctx context.Context) error {
	list, err := c.repo.List(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Threshold < list[j].Threshold })

	c.mu.Lock()
	c.badges = list
	c.mu.Unlock()
	return nil
}

// Seed upserts defs by name and reloads the snapshot.
func (c *BadgeCatalog) Seed(ctx context.Context, defs []model.Badge) error {
	for i := range defs {
		b := defs[i]
		if b.Name == "" || b.Threshold < 0 {
			return errInvalidBadge(b)
		}
		if err := c.repo.Upsert(ctx, &b); err != nil {
			return err
		}
	}
	return c.Refresh(ctx)
}

// All returns a copy of the snapshot.
func (c *BadgeCatalog) All() []model.Badge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Badge(nil), c.badges...)
}

// Evaluate returns badges unlocked at points that are not in owned, ascending threshold.
func (c *BadgeCatalog) Evaluate(owned map[uuid.UUID]struct{}, points int64) []model.Badge {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.Badge
	for _, b := range c.badges {
		if b.Threshold > points {
			break
		}
		if _, ok := owned[b.ID]; ok {
			continue
		}
		out = append(out, b)
	}
	return out
}
