// Package cache keeps the leaderboard in a Redis sorted set so ranking reads
// skip the database.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid/v5"
)

const (
	rankingSuffix = ":leaderboard"
	namesSuffix   = ":leaderboard:names"
)

type redisClient interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Leaderboard implements service.LeaderboardCache on Redis.
// Scores live in a sorted set keyed by user id, display names in a hash.
type Leaderboard struct {
	rdb     redisClient
	ranking string
	names   string
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, "ecoquest" when empty
	Timeout  time.Duration
}

// Connect dials Redis and checks the connection.
func Connect(ctx context.Context, o Options) (*redis.Client, error) {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewLeaderboard wraps a client. prefix defaults to "ecoquest".
func NewLeaderboard(rdb redisClient, prefix string) *Leaderboard {
	if prefix == "" {
		prefix = "ecoquest"
	}
	return &Leaderboard{rdb: rdb, ranking: prefix + rankingSuffix, names: prefix + namesSuffix}
}

// SetScore records the user's current total. Totals only grow, so a lower
// score arriving late never replaces a higher one (ZADD GT, Redis 6.2+).
func (l *Leaderboard) SetScore(ctx context.Context, userID uuid.UUID, name string, points int64) error {
	id := userID.String()
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddArgs(ctx, l.ranking, redis.ZAddArgs{
			GT:      true,
			Members: []redis.Z{{Score: float64(points), Member: id}},
		})
		pipe.HSet(ctx, l.names, id, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard set score: %w", err)
	}
	return nil
}

// Prime replaces the cached ranking with entries.
func (l *Leaderboard) Prime(ctx context.Context, entries []model.LeaderboardEntry) error {
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.ranking, l.names)
		if len(entries) == 0 {
			return nil
		}
		members := make([]*redis.Z, 0, len(entries))
		names := make(map[string]interface{}, len(entries))
		for _, e := range entries {
			id := e.UserID.String()
			members = append(members, &redis.Z{Score: float64(e.Points), Member: id})
			names[id] = e.Name
		}
		pipe.ZAdd(ctx, l.ranking, members...)
		pipe.HSet(ctx, l.names, names)
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard prime: %w", err)
	}
	return nil
}

// Top returns up to limit entries, highest score first.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	zs, err := l.rdb.ZRevRangeWithScores(ctx, l.ranking, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard range: %w", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i], _ = z.Member.(string)
	}
	names, err := l.rdb.HMGet(ctx, l.names, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard names: %w", err)
	}
	return toEntries(zs, names), nil
}

// Ping checks the connection.
func (l *Leaderboard) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// toEntries joins scores with names; members that are not valid ids are skipped.
func toEntries(zs []redis.Z, names []interface{}) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.FromString(member)
		if err != nil {
			continue
		}
		var name string
		if i < len(names) {
			name, _ = names[i].(string)
		}
		out = append(out, model.LeaderboardEntry{
			UserID: id,
			Name:   name,
			Points: int64(z.Score),
			Rank:   len(out) + 1,
		})
	}
	return out
}
