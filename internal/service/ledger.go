package service

import (
	"context"

	"github.com/and161185/ecoquest/internal/errs"
	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Ledger updates a user's points, calendar and badge set.
type Ledger struct {
	repo  repository.LedgerRepository
	users repository.UserRepository
	log   *zap.Logger
}

// NewLedger constructs a Ledger.
func NewLedger(repo repository.LedgerRepository, users repository.UserRepository, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{repo: repo, users: users, log: log}
}

// ApplyActivity credits entry once per activity id and returns the user after the update.
func (l *Ledger) ApplyActivity(ctx context.Context, userID uuid.UUID, entry model.CalendarEntry) (*model.User, error) {
	if entry.ActivityID == uuid.Nil {
		return nil, errs.Invalid("calendar entry without activity id")
	}
	if entry.PointsEarned < 0 {
		return nil, errs.Invalid("points must be non-negative")
	}
	if err := checkAmount("co2Saved", entry.CO2Saved); err != nil {
		return nil, err
	}
	entry.Date = entry.Date.UTC()

	u, applied, err := l.repo.ApplyActivity(ctx, userID, entry)
	if err != nil {
		return nil, err
	}
	if !applied {
		l.log.Debug("ledger entry already applied",
			zap.String("user_id", userID.String()),
			zap.String("activity_id", entry.ActivityID.String()))
	}
	return u, nil
}

// RecordBadges adds badges to the user's set and returns the ones that were new.
func (l *Ledger) RecordBadges(ctx context.Context, userID uuid.UUID, badges []model.Badge) ([]model.Badge, *model.User, error) {
	added := []model.Badge{}
	if len(badges) > 0 {
		ids := make([]uuid.UUID, len(badges))
		byID := make(map[uuid.UUID]model.Badge, len(badges))
		for i, b := range badges {
			ids[i] = b.ID
			byID[b.ID] = b
		}
		inserted, err := l.repo.AddBadges(ctx, userID, ids)
		if err != nil {
			return nil, nil, err
		}
		for _, id := range inserted {
			added = append(added, byID[id])
		}
	}
	u, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return added, u, nil
}
