package service

import (
	"context"
	"time"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// DefaultDailyBonus is the game-point bonus for the first claim of a day.
const DefaultDailyBonus = 100

// QuestService drives the level ladder and the daily bonus.
// It only touches GamePoints, never the activity points.
type QuestService struct {
	users repository.UserRepository
	bonus int64
	now   func() time.Time
}

// NewQuestService constructs a QuestService; bonus <= 0 selects DefaultDailyBonus.
func NewQuestService(users repository.UserRepository, bonus int64) *QuestService {
	if bonus <= 0 {
		bonus = DefaultDailyBonus
	}
	return &QuestService{users: users, bonus: bonus, now: time.Now}
}

// CompleteLevel records level as completed if it is the next one and adds gamePoints.
func (s *QuestService) CompleteLevel(ctx context.Context, userID uuid.UUID, level int, gamePoints int64) (*model.User, error) {
	if level < 1 {
		return nil, errs.Invalid("level must be positive")
	}
	if gamePoints < 0 {
		return nil, errs.Invalid("points must be non-negative")
	}
	return s.users.AdvanceLevel(ctx, userID, level, gamePoints)
}

// ClaimDailyBonus grants the bonus once per UTC day; at zero means now.
func (s *QuestService) ClaimDailyBonus(ctx context.Context, userID uuid.UUID, at time.Time) (*model.User, error) {
	if at.IsZero() {
		at = s.now()
	}
	day, _ := DayWindow(at)
	return s.users.ClaimBonus(ctx, userID, day, s.bonus)
}

// Bonus reports the configured daily bonus.
func (s *QuestService) Bonus() int64 { return s.bonus }
