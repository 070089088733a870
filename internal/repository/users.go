// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides account lookups and the non-ledger user counters.
// Loaded users always carry their badges and calendar.
type UserRepository interface {
	// Create inserts a new user; ErrAlreadyExists on name/email collision.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by its stable id.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByName loads a user by display name (compatibility lookup).
	GetByName(ctx context.Context, name string) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Top returns users ordered by points descending.
	Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	// AdvanceLevel sets highest level to level and adds gamePoints, only if level is the next one.
	AdvanceLevel(ctx context.Context, id uuid.UUID, level int, gamePoints int64) (*model.User, error)
	// ClaimBonus adds gamePoints once per UTC day; ErrAlreadyExists if day was claimed.
	ClaimBonus(ctx context.Context, id uuid.UUID, day time.Time, gamePoints int64) (*model.User, error)
}
