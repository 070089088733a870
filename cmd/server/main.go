// Command ecoquest-server serves the EcoQuest HTTP and gRPC APIs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/ecoquest/internal/cache"
	"github.com/and161185/ecoquest/internal/config"
	"github.com/and161185/ecoquest/internal/gemini"
	"github.com/and161185/ecoquest/internal/metrics"
	"github.com/and161185/ecoquest/internal/rpc"
	grpcserver "github.com/and161185/ecoquest/internal/server/grpc"
	httpserver "github.com/and161185/ecoquest/internal/server/http"
	"github.com/and161185/ecoquest/internal/service"
	"github.com/and161185/ecoquest/internal/verify"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("store", cfg.Store),
		zap.String("http", cfg.HTTPAddr),
		zap.String("grpc", cfg.GRPCAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Optional collaborators
	var board service.LeaderboardCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cache.Options{
			Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB, Prefix: cfg.Redis.Prefix,
		})
		if err != nil {
			logger.Warn("redis unavailable, leaderboard served from store", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			board = cache.NewLeaderboard(rdb, cfg.Redis.Prefix)
		}
	}

	pipelineOpts := []service.PipelineOption{service.WithLogger(logger), service.WithRecorder(m)}
	if board != nil {
		pipelineOpts = append(pipelineOpts, service.WithLeaderboardCache(board))
	}
	if cfg.Imagga.Key != "" {
		pipelineOpts = append(pipelineOpts, service.WithVerifier(
			verify.NewImagga(cfg.Imagga.URL, cfg.Imagga.Key, cfg.Imagga.Secret, cfg.Imagga.Timeout, logger)))
	}

	var gen service.Generator
	if cfg.Gemini.APIKey != "" {
		g, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			logger.Warn("gemini unavailable, assistant uses fallbacks", zap.Error(err))
		} else {
			defer func() { _ = g.Close() }()
			gen = g
		}
	}

	// Services
	catalog := service.NewBadgeCatalog(st.badges)
	if cfg.SeedBadges {
		if err := catalog.Seed(ctx, service.DefaultBadges); err != nil {
			return fmt.Errorf("seed badges: %w", err)
		}
	} else if err := catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("load badges: %w", err)
	}

	authSvc := service.NewAuthService(st.users, []byte(cfg.Auth.JWTKey), cfg.Auth.AccessTTL, st.limiter)
	activities := service.NewActivityService(st.activities)
	ledger := service.NewLedger(st.ledger, st.users, logger)
	pipeline := service.NewPipeline(st.users, activities, service.NewDuplicateGuard(st.activities), ledger, catalog, pipelineOpts...)
	leaderboard := service.NewLeaderboardService(st.users, board, logger)
	if err := leaderboard.Warm(ctx); err != nil {
		logger.Warn("leaderboard warm-up failed", zap.Error(err))
	}
	quests := service.NewQuestService(st.users, cfg.DailyBonus)
	assistant := service.NewAssistantService(gen, st.users, activities, cfg.Gemini.Timeout, logger)

	// gRPC
	grpcOpts := []grpc.ServerOption{
		grpc.ChainStreamInterceptor(grpcserver.RecoverStream(logger)),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			m.UnaryInterceptor(),
			grpcserver.AuthUnary(authSvc.VerifyToken,
				rpc.FullMethod(rpc.MethodRegister),
				rpc.FullMethod(rpc.MethodLogin),
				rpc.FullMethod(rpc.MethodLeaderboard),
				healthpb.Health_Check_FullMethodName,
				healthpb.Health_Watch_FullMethodName,
			),
		),
	}
	if cfg.TLS.Cert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		grpcOpts = append(grpcOpts, grpc.Creds(creds))
	}
	gs := grpc.NewServer(grpcOpts...)
	rpc.RegisterEcoQuestServer(gs, grpcserver.New(authSvc, pipeline, activities, leaderboard))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	if cfg.Dev {
		reflection.Register(gs)
	}

	// HTTP
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpserver.NewRouter(httpserver.Services{
			Auth:        authSvc,
			Pipeline:    pipeline,
			Activities:  activities,
			Leaderboard: leaderboard,
			Quests:      quests,
			Assistant:   assistant,
		}, httpserver.Options{
			CORSOrigins: cfg.CORSOrigins,
			RPS:         cfg.RateLimit.RPS,
			Burst:       cfg.RateLimit.Burst,
			Metrics:     m,
			Ready:       st.ping,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", cfg.TLS.Cert != ""))
		errCh <- gs.Serve(lis)
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	hs.Shutdown()

	// graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		gs.Stop()
	}
	return serveErr
}
