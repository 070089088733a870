package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/and161185/ecoquest/internal/config"
	"github.com/and161185/ecoquest/internal/limiter"
	"github.com/and161185/ecoquest/internal/migrate"
	"github.com/and161185/ecoquest/internal/repository"
	"github.com/and161185/ecoquest/internal/repository/memory"
	mongorepo "github.com/and161185/ecoquest/internal/repository/mongo"
	"github.com/and161185/ecoquest/internal/repository/postgres"
)

// stores bundles the repositories of one storage driver.
type stores struct {
	users      repository.UserRepository
	activities repository.ActivityRepository
	badges     repository.BadgeRepository
	ledger     repository.LedgerRepository
	limiter    limiter.Limiter
	ping       func(ctx context.Context) error
	close      func()
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return openPostgres(ctx, cfg, log)
	case config.StoreMongo:
		return openMongo(ctx, cfg, log)
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		st := memory.New()
		return &stores{
			users:      st.Users(),
			activities: st.Activities(),
			badges:     st.Badges(),
			ledger:     st.Ledger(),
			limiter:    limiter.NewMemory(cfg.Auth.LimiterWindow, cfg.Auth.MaxFails, cfg.Auth.BlockFor),
			ping:       func(context.Context) error { return nil },
			close:      func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.Postgres.Migrate {
		if err := migrate.Up(ctx, cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		if v, err := migrate.Version(ctx, cfg.Postgres.DSN); err == nil {
			log.Info("schema ready", zap.Int64("version", v))
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	db := &postgres.DB{Pool: pool}
	return &stores{
		users:      postgres.NewUserRepo(db),
		activities: postgres.NewActivityRepo(db),
		badges:     postgres.NewBadgeRepo(db),
		ledger:     postgres.NewLedgerRepo(db),
		limiter:    limiter.NewPG(pool, cfg.Auth.LimiterWindow, cfg.Auth.MaxFails, cfg.Auth.BlockFor),
		ping:       db.Ping,
		close:      db.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	client, db, err := mongorepo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info("mongodb ready", zap.String("database", cfg.Mongo.Database))
	return &stores{
		users:      mongorepo.NewUserRepo(db),
		activities: mongorepo.NewActivityRepo(db),
		badges:     mongorepo.NewBadgeRepo(db),
		ledger:     mongorepo.NewLedgerRepo(db),
		// login lockouts stay process-local on the document store
		limiter: limiter.NewMemory(cfg.Auth.LimiterWindow, cfg.Auth.MaxFails, cfg.Auth.BlockFor),
		ping:    func(ctx context.Context) error { return client.Ping(ctx, nil) },
		close:   func() { _ = client.Disconnect(context.Background()) },
	}, nil
}
