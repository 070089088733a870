package service

import (
	"context"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/and161185/ecoquest/internal/repository"
	"go.uber.org/zap"
)

// Leaderboard page bounds.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// LeaderboardService ranks users by points.
type LeaderboardService struct {
	users repository.UserRepository
	cache LeaderboardCache // optional
	log   *zap.Logger
}

// NewLeaderboardService constructs the service; cache may be nil.
func NewLeaderboardService(users repository.UserRepository, cache LeaderboardCache, log *zap.Logger) *LeaderboardService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaderboardService{users: users, cache: cache, log: log}
}

// ClampLimit applies the default and the maximum page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

// Top returns the first limit users. A full page from the cache is served as is;
// otherwise storage answers and the cache is primed.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	limit = ClampLimit(limit)
	if s.cache != nil {
		entries, err := s.cache.Top(ctx, limit)
		switch {
		case err != nil:
			s.log.Warn("leaderboard cache read failed", zap.Error(err))
		case len(entries) == limit:
			return entries, nil
		}
	}

	entries, err := s.users.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(entries) > 0 {
		if err := s.cache.Prime(ctx, entries); err != nil {
			s.log.Warn("leaderboard cache prime failed", zap.Error(err))
		}
	}
	return entries, nil
}

// Warm loads the largest page into the cache.
func (s *LeaderboardService) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	entries, err := s.users.Top(ctx, MaxLeaderboardLimit)
	if err != nil {
		return err
	}
	return s.cache.Prime(ctx, entries)
}
