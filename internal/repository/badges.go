package repository

import (
	"context"

	"github.com/and161185/ecoquest/internal/model"
)

// BadgeRepository stores badge definitions.
type BadgeRepository interface {
	// List returns all badges ordered by threshold, then name.
	List(ctx context.Context) ([]model.Badge, error)
	// Upsert inserts or updates a badge keyed by name; b.ID is set to the stored id.
	Upsert(ctx context.Context, b *model.Badge) error
}
